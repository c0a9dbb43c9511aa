package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orderable/matchcore/infra/outbox"
	"github.com/orderable/matchcore/snapshot"
)

// StartSnapshotJob periodically persists every book and truncates the
// journal and the delivered part of the outbox. Coverage is capped at
// the lowest in-flight command so a crash between the snapshot and the
// next journal write loses nothing.
func (s *OrderService) StartSnapshotJob(
	ctx context.Context,
	dir string,
	interval time.Duration,
	ob *outbox.Outbox,
) {
	w := &snapshot.Writer{Dir: dir}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.snapshotOnce(ctx, w, ob)
			}
		}
	}()
}

func (s *OrderService) snapshotOnce(ctx context.Context, w *snapshot.Writer, ob *outbox.Outbox) {
	// The floor is read before the books: every command at or below it
	// finished before the capture starts, so the snapshot covers it.
	// A command above the floor can still land in the captured books;
	// replay recognizes those by order id and skips them.
	safeSeq := s.inflight.floor(s.ids.Current())
	eventSeq := s.pub.EventSeq()

	snaps, err := s.gateway.SnapshotAll(ctx)
	if err != nil {
		s.log.Warn("snapshot collection failed", zap.Error(err))
		return
	}

	if err := w.Write(safeSeq, eventSeq, snaps); err != nil {
		s.log.Warn("snapshot write failed", zap.Error(err))
		return
	}

	if err := s.journal.TruncateBefore(safeSeq); err != nil {
		s.log.Warn("journal truncation failed", zap.Error(err))
	}
	if ob != nil {
		if err := ob.TruncateAckedUpTo(eventSeq); err != nil {
			s.log.Warn("outbox truncation failed", zap.Error(err))
		}
	}

	s.log.Debug("snapshot written",
		zap.Uint64("globalSeq", safeSeq),
		zap.Uint64("eventSeq", eventSeq),
		zap.Int("symbols", len(snaps)),
	)
}

// StartReclaimJob periodically returns retired orders to the pool.
func (s *OrderService) StartReclaimJob(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.gateway.Reclaim()
			}
		}
	}()
}
