package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func append100(t *testing.T, dir string, segSize int64) {
	t.Helper()
	w, err := Open(Config{Dir: dir, SegmentSize: segSize})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	for i := 1; i <= 100; i++ {
		rec := NewRecord(RecordPlace, uint64(i), []byte(fmt.Sprintf("order-%d", i)))
		if err := w.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
		if i%20 == 0 {
			_ = w.Sync()
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWAL_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	append100(t, dir, 0)

	count := 0
	lastSeq, err := Replay(dir, func(rec *Record) error {
		count++
		if rec.Type != RecordPlace {
			t.Fatalf("unexpected record type: %v", rec.Type)
		}
		if string(rec.Data) != fmt.Sprintf("order-%d", rec.Seq) {
			t.Fatalf("payload mismatch at seq %d: %q", rec.Seq, rec.Data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 100 || lastSeq != 100 {
		t.Fatalf("expected 100 records ending at seq 100, got %d/%d", count, lastSeq)
	}
}

func TestWAL_Rotation(t *testing.T) {
	dir := t.TempDir()
	append100(t, dir, 256) // tiny segments force rotation

	segs, err := segmentIndexes(dir)
	if err != nil {
		t.Fatalf("segment scan: %v", err)
	}
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}

	count := 0
	if _, err := Replay(dir, func(*Record) error { count++; return nil }); err != nil {
		t.Fatalf("replay across segments: %v", err)
	}
	if count != 100 {
		t.Fatalf("expected 100 records across segments, got %d", count)
	}
}

func TestWAL_ResumeAppending(t *testing.T) {
	dir := t.TempDir()
	append100(t, dir, 0)

	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w.Append(NewRecord(RecordCancel, 101, []byte("cancel"))); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	_ = w.Close()

	lastSeq, err := Replay(dir, func(*Record) error { return nil })
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if lastSeq != 101 {
		t.Fatalf("expected seq 101 after reopen, got %d", lastSeq)
	}
}

func TestWAL_TornTailStopsClean(t *testing.T) {
	dir := t.TempDir()
	append100(t, dir, 0)

	// Simulate a crash mid-write by appending half a header.
	path := segmentPath(dir, 0)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	f.Write([]byte{0x01, 0x02, 0x03})
	f.Close()

	lastSeq, err := Replay(dir, func(*Record) error { return nil })
	if err != nil {
		t.Fatalf("torn tail should not fail replay: %v", err)
	}
	if lastSeq != 100 {
		t.Fatalf("expected all intact records, got seq %d", lastSeq)
	}
}

func TestWAL_CorruptionDetected(t *testing.T) {
	dir := t.TempDir()
	append100(t, dir, 0)

	// Flip one byte inside the first record's payload.
	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	data[headerSize+1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	if _, err := Replay(dir, func(*Record) error { return nil }); err == nil {
		t.Fatal("corrupted record should fail replay")
	}
}

func TestWAL_CorruptLengthFieldRejected(t *testing.T) {
	dir := t.TempDir()
	append100(t, dir, 0)

	// Overwrite the first record's length field with a near-max value.
	// Replay must report corruption; naively trusting the field either
	// wraps the frame allocation or tries to allocate 4GB.
	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	data[17], data[18], data[19], data[20] = 0xFF, 0xFF, 0xFF, 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	if _, err := Replay(dir, func(*Record) error { return nil }); err == nil {
		t.Fatal("corrupt length field should fail replay")
	}

	// Truncation scans must survive the same frame.
	if _, err := maxSeqInSegment(path); err == nil {
		t.Fatal("corrupt length field should fail the segment scan")
	}
}

func TestWAL_ConcurrentAppendsAllSurvive(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 4096})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}

	// Writers own disjoint sequence ranges, so every frame must come
	// back intact regardless of interleaving; an unguarded segment
	// write would tear frames into each other.
	const writers, perWriter = 8, 200
	var wg sync.WaitGroup
	for wr := 0; wr < writers; wr++ {
		base := uint64(wr * perWriter)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint64(1); i <= perWriter; i++ {
				rec := NewRecord(RecordPlace, base+i, []byte("payload"))
				if err := w.Append(rec); err != nil {
					t.Errorf("append seq %d: %v", base+i, err)
				}
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	seen := make(map[uint64]bool)
	for _, idx := range mustSegmentIndexes(t, dir) {
		f, err := os.Open(segmentPath(dir, idx))
		if err != nil {
			t.Fatalf("open segment: %v", err)
		}
		for {
			rec, err := readRecord(f)
			if err != nil {
				if err == io.EOF {
					break
				}
				t.Fatalf("read record: %v", err)
			}
			if seen[rec.Seq] {
				t.Fatalf("seq %d appears twice", rec.Seq)
			}
			seen[rec.Seq] = true
		}
		f.Close()
	}
	if len(seen) != writers*perWriter {
		t.Fatalf("expected %d records, got %d", writers*perWriter, len(seen))
	}
}

func mustSegmentIndexes(t *testing.T, dir string) []int {
	t.Helper()
	segs, err := segmentIndexes(dir)
	if err != nil {
		t.Fatalf("segment scan: %v", err)
	}
	return segs
}

func TestWAL_TruncateBefore(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 256})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	for i := 1; i <= 100; i++ {
		if err := w.Append(NewRecord(RecordPlace, uint64(i), []byte("payload"))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	before, _ := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err := w.TruncateBefore(100); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	after, _ := filepath.Glob(filepath.Join(dir, "segment-*.wal"))

	if len(after) >= len(before) {
		t.Fatalf("expected segments removed: %d -> %d", len(before), len(after))
	}
	if len(after) == 0 {
		t.Fatal("live segment must survive truncation")
	}
	_ = w.Close()

	// Remaining records still replay, starting past the truncation point.
	first := uint64(0)
	if _, err := Replay(dir, func(rec *Record) error {
		if first == 0 {
			first = rec.Seq
		}
		return nil
	}); err != nil {
		t.Fatalf("replay after truncate: %v", err)
	}
	if first == 1 {
		t.Error("truncated records should not replay")
	}
}
