package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Outbox {
	t.Helper()
	ob, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ob.Close() })
	return ob
}

func TestOutboxPutAndGet(t *testing.T) {
	ob := openTest(t)

	require.NoError(t, ob.PutNew(1, []byte("event-1")))

	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, []byte("event-1"), rec.Payload)
	assert.Zero(t, rec.Retries)
}

func TestOutboxStateTransitions(t *testing.T) {
	ob := openTest(t)
	require.NoError(t, ob.PutNew(1, []byte("e")))

	require.NoError(t, ob.MarkSent(1))
	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateSent, rec.State)

	require.NoError(t, ob.MarkFailed(1))
	rec, err = ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	require.NoError(t, ob.MarkAcked(1))
	rec, err = ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateAcked, rec.State)
}

func TestOutboxScanPending(t *testing.T) {
	ob := openTest(t)

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, ob.PutNew(seq, []byte{byte(seq)}))
	}
	require.NoError(t, ob.MarkSent(2))
	require.NoError(t, ob.MarkAcked(2))
	require.NoError(t, ob.MarkSent(4))
	require.NoError(t, ob.MarkFailed(4))

	var seen []uint64
	require.NoError(t, ob.ScanPending(func(rec Record) error {
		seen = append(seen, rec.Seq)
		return nil
	}))

	// NEW and FAILED are pending; ACKED and in-flight SENT are not.
	assert.Equal(t, []uint64{1, 3, 4, 5}, seen)
}

func TestOutboxScanOrder(t *testing.T) {
	ob := openTest(t)

	// Insert out of order; the key encoding must keep seq order.
	for _, seq := range []uint64{100, 3, 50, 7} {
		require.NoError(t, ob.PutNew(seq, nil))
	}

	var seen []uint64
	require.NoError(t, ob.ScanPending(func(rec Record) error {
		seen = append(seen, rec.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{3, 7, 50, 100}, seen)
}

func TestOutboxTruncateAcked(t *testing.T) {
	ob := openTest(t)

	for seq := uint64(1); seq <= 4; seq++ {
		require.NoError(t, ob.PutNew(seq, nil))
	}
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, ob.MarkSent(seq))
		require.NoError(t, ob.MarkAcked(seq))
	}

	require.NoError(t, ob.TruncateAckedUpTo(2))

	_, err := ob.Get(1)
	assert.Error(t, err, "acked and truncated")
	_, err = ob.Get(2)
	assert.Error(t, err, "acked and truncated")

	rec, err := ob.Get(3)
	require.NoError(t, err, "acked but past the floor survives")
	assert.Equal(t, StateAcked, rec.State)
	_, err = ob.Get(4)
	require.NoError(t, err, "pending records survive truncation")
}

func TestOutboxRequeueSent(t *testing.T) {
	ob := openTest(t)

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, ob.PutNew(seq, nil))
	}
	// 1 delivered, 2 stranded mid-flight, 3 untouched.
	require.NoError(t, ob.MarkSent(1))
	require.NoError(t, ob.MarkAcked(1))
	require.NoError(t, ob.MarkSent(2))

	n, err := ob.RequeueSent()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := ob.Get(2)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries, "the lost attempt counts")

	// The stranded entry is pending again; the delivered one is not.
	var seen []uint64
	require.NoError(t, ob.ScanPending(func(rec Record) error {
		seen = append(seen, rec.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{2, 3}, seen)
}

func TestOutboxMaxSeq(t *testing.T) {
	ob := openTest(t)

	max, err := ob.MaxSeq()
	require.NoError(t, err)
	assert.Zero(t, max)

	for _, seq := range []uint64{5, 42, 17} {
		require.NoError(t, ob.PutNew(seq, nil))
	}
	// Delivery state must not affect the high-water mark.
	require.NoError(t, ob.MarkSent(42))
	require.NoError(t, ob.MarkAcked(42))

	max, err = ob.MaxSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), max)
}

func TestOutboxSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	ob, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, ob.PutNew(9, []byte("durable")))
	require.NoError(t, ob.Close())

	ob, err = Open(dir)
	require.NoError(t, err)
	defer ob.Close()

	rec, err := ob.Get(9)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), rec.Payload)
	assert.Equal(t, StateNew, rec.State)
}
