// Package wal is the intake journal: every admitted command is framed,
// checksummed and appended before it reaches a matching loop, so the
// full book state can be rebuilt by replay after a restart.
package wal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const headerSize = 1 + 8 + 8 + 4

// Commands are small JSON payloads; anything past this is corruption.
const maxPayloadSize = 1 << 20

type Config struct {
	Dir         string
	SegmentSize int64
}

// WAL appends framed records to rotating segment files.
// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
//
// All methods are safe for concurrent use. Callers that assign record
// sequence numbers outside the WAL must still take the number and
// append under one lock, or records land out of order on disk.
type WAL struct {
	mu       sync.Mutex
	dir      string
	segSize  int64
	current  *segment
	segIndex int
}

func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 16 << 20
	}

	// Resume appending to the newest existing segment.
	index := 0
	if existing, err := segmentIndexes(cfg.Dir); err != nil {
		return nil, err
	} else if len(existing) > 0 {
		index = existing[len(existing)-1]
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		current:  seg,
		segIndex: index,
	}, nil
}

func (w *WAL) Append(r *Record) error {
	payloadLen := uint32(len(r.Data))

	buf := make([]byte, headerSize+payloadLen+4)
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.append(buf); err != nil {
		return err
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.close()
}

func (w *WAL) rotate() error {
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// TruncateBefore removes whole segments whose records are all covered
// by a snapshot at seq. Called by the snapshot job.
func (w *WAL) TruncateBefore(seq uint64) error {
	files, err := filepath.Glob(filepath.Join(w.dir, "segment-*.wal"))
	if err != nil {
		return err
	}

	w.mu.Lock()
	live := segmentPath(w.dir, w.segIndex)
	w.mu.Unlock()

	for _, path := range files {
		if path == live {
			continue // never remove the live segment
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

func segmentIndexes(dir string) ([]int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(files))
	for _, path := range files {
		var idx int
		if _, err := fmtSscanfSegment(filepath.Base(path), &idx); err == nil {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out, nil
}
