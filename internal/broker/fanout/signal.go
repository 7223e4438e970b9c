// Package fanout is the subscriber fabric: the lock-free live-channel
// index used for read-only lookups, and the inter-worker wake signal that
// drives delivery after a publish. Workers are modelled as logical shards
// within one process (see DESIGN.md) rather than OS processes; Signal is
// the in-process stand-in for the host runtime's inter-worker wake.
package fanout

import "sync"

// Signal implements ports.WorkerSignal as a set of coalescing wake
// channels, one per shard slot, each served by its own goroutine that
// invokes the shard's registered handler. A Wake arriving while the
// previous one is still being handled is coalesced into a single extra
// run, matching the "wake causes the handler to run the fan-out, however
// many publishes queued up" semantics - the handler always re-scans the
// current bucket state rather than consuming a per-wake payload.
type Signal struct {
	mu       sync.Mutex
	wakes    map[int]chan struct{}
	handlers map[int]func()
	done     chan struct{}
}

// NewSignal creates an empty signal. Shards register with Register as
// they start.
func NewSignal() *Signal {
	return &Signal{
		wakes:    make(map[int]chan struct{}),
		handlers: make(map[int]func()),
		done:     make(chan struct{}),
	}
}

// Register starts the dispatch goroutine for slot and stores its handler.
// Calling Register twice for the same slot replaces the handler without
// starting a second goroutine.
func (s *Signal) Register(slot int, handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[slot] = handler
	if _, exists := s.wakes[slot]; exists {
		return
	}
	ch := make(chan struct{}, 1)
	s.wakes[slot] = ch
	go s.run(slot, ch)
}

func (s *Signal) run(slot int, ch chan struct{}) {
	for {
		select {
		case <-ch:
			s.mu.Lock()
			h := s.handlers[slot]
			s.mu.Unlock()
			if h != nil {
				h()
			}
		case <-s.done:
			return
		}
	}
}

// Wake signals slot's shard to run its fan-out handler. Non-blocking: a
// wake already pending for this slot is not duplicated.
func (s *Signal) Wake(slot int) {
	s.mu.Lock()
	ch, ok := s.wakes[slot]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Shutdown stops every dispatch goroutine. Re-arming after Shutdown is a
// no-op, matching the "re-arming is a no-op when the process is exiting"
// requirement.
func (s *Signal) Shutdown() {
	close(s.done)
}
