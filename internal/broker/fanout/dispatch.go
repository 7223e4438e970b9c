package fanout

import (
	"sync"

	"github.com/streamhub/streamhub/internal/core/domain"
)

// Dispatcher tracks, per shard slot, which channels have a pending
// delivery after a publish. MarkPending is called from inside the
// publish critical section; Drain is called by a shard's wake handler,
// outside the arena mutex, to learn which channels it must fan out to.
// Its own mutex is independent of the arena's: the pending set is a
// delivery work-queue, not core broker structural state.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[int]map[*domain.Channel]struct{}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{pending: make(map[int]map[*domain.Channel]struct{})}
}

// MarkPending records that slot has a delivery pending for ch.
func (d *Dispatcher) MarkPending(slot int, ch *domain.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.pending[slot]
	if !ok {
		set = make(map[*domain.Channel]struct{})
		d.pending[slot] = set
	}
	set[ch] = struct{}{}
}

// Drain returns the channels pending for slot and clears them.
func (d *Dispatcher) Drain(slot int) []*domain.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.pending[slot]
	if !ok || len(set) == 0 {
		return nil
	}
	out := make([]*domain.Channel, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	delete(d.pending, slot)
	return out
}
