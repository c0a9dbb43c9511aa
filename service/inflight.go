package service

import "sync"

// inflight tracks journaled commands whose matching pass has not yet
// completed. The snapshot job must not truncate the journal past the
// lowest in-flight sequence, or a restart would lose that command.
type inflight struct {
	mu  sync.Mutex
	ids map[uint64]struct{}
}

func (f *inflight) init() {
	f.ids = make(map[uint64]struct{})
}

func (f *inflight) add(id uint64) {
	f.mu.Lock()
	f.ids[id] = struct{}{}
	f.mu.Unlock()
}

func (f *inflight) remove(id uint64) {
	f.mu.Lock()
	delete(f.ids, id)
	f.mu.Unlock()
}

// floor returns the highest sequence known to be fully applied:
// one below the lowest in-flight id, or fallback when nothing is in
// flight.
func (f *inflight) floor(fallback uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.ids) == 0 {
		return fallback
	}
	min := uint64(0)
	for id := range f.ids {
		if min == 0 || id < min {
			min = id
		}
	}
	return min - 1
}
