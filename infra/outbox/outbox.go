// Package outbox is the durable stage between the matching core and
// Kafka. Events are written here in the same call path that produced
// them; the broadcaster drains NEW/FAILED entries and marks progress,
// giving at-least-once delivery without ever rolling back engine state.
package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recHeaderLen = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload...]
func encodeRecord(r Record) []byte {
	buf := make([]byte, recHeaderLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recHeaderLen:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < recHeaderLen {
		return Record{}, errors.New("outbox record too short")
	}
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recHeaderLen:]...),
	}, nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability is the point
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// PutNew stages an event payload for delivery.
func (o *Outbox) PutNew(seq uint64, payload []byte) error {
	rec := Record{
		Seq:     seq,
		State:   StateNew,
		Payload: payload,
	}
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// MarkSent flags an entry as in flight.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.setState(seq, StateSent)
}

// MarkAcked flags an entry as delivered.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.setState(seq, StateAcked)
}

// MarkFailed flags a delivery failure and bumps the retry count.
func (o *Outbox) MarkFailed(seq uint64) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = StateFailed
	rec.Retries++
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (o *Outbox) setState(seq uint64, state State) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// -------------------- Scan --------------------

// ScanPending iterates NEW and FAILED entries in seq order.
// Used by the broadcaster.
func (o *Outbox) ScanPending(fn func(Record) error) error {
	return o.scan(func(rec Record) error {
		if rec.State != StateNew && rec.State != StateFailed {
			return nil
		}
		return fn(rec)
	})
}

// RequeueSent returns in-flight entries to the pending set. A SENT
// entry that survived a restart was handed to the producer but never
// acknowledged, so it must be retried. Called once before the
// broadcaster starts draining; returns how many were requeued.
func (o *Outbox) RequeueSent() (int, error) {
	n := 0
	err := o.scan(func(rec Record) error {
		if rec.State != StateSent {
			return nil
		}
		rec.State = StateFailed
		rec.Retries++
		rec.LastAttempt = time.Now().UnixNano()
		n++
		return o.db.Set(keyFor(rec.Seq), encodeRecord(rec), pebble.Sync)
	})
	return n, err
}

// MaxSeq reports the highest staged event sequence, delivered or not.
// The event sequencer must resume above it after a restart or fresh
// events would overwrite undelivered entries.
func (o *Outbox) MaxSeq() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("ev/"),
		UpperBound: []byte("ev/~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// TruncateAckedUpTo removes delivered entries with seq <= n.
func (o *Outbox) TruncateAckedUpTo(n uint64) error {
	return o.scan(func(rec Record) error {
		if rec.State == StateAcked && rec.Seq <= n {
			return o.db.Delete(keyFor(rec.Seq), pebble.Sync)
		}
		return nil
	})
}

func (o *Outbox) scan(fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("ev/"),
		UpperBound: []byte("ev/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

// Zero-padded keys keep pebble iteration in seq order.
func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("ev/%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("ev/"))), "%d", &seq)
	return seq, err
}
