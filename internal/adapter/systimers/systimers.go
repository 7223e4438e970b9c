// Package systimers is the production implementation of ports.Timers and
// ports.TimerHandle, backed directly by time.Ticker/time.AfterFunc. There
// is nothing domain-specific here to ground in a third-party scheduling
// library - it is the same small wrapper every caller of ports.Timers
// needs, so it stays on the standard library (see DESIGN.md).
package systimers

import (
	"sync"
	"time"

	"github.com/streamhub/streamhub/internal/core/ports"
)

// Timers is the host-runtime implementation handed to broker.New.
type Timers struct{}

// New creates a production Timers.
func New() *Timers { return &Timers{} }

// Every arms a recurring timer, invoking fn on each tick until Stop.
func (t *Timers) Every(interval time.Duration, fn func()) ports.TimerHandle {
	h := &handle{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// After arms a one-shot timer, invoking fn once after d unless Stop fires
// first.
func (t *Timers) After(d time.Duration, fn func()) ports.TimerHandle {
	h := &handle{stop: make(chan struct{})}
	timer := time.AfterFunc(d, func() {
		select {
		case <-h.stop:
		default:
			fn()
		}
	})
	go func() {
		<-h.stop
		timer.Stop()
	}()
	return h
}

// handle implements ports.TimerHandle. Stop is idempotent, matching the
// "re-arming after Stop is a no-op" contract every caller relies on.
type handle struct {
	once sync.Once
	stop chan struct{}
}

func (h *handle) Stop() {
	h.once.Do(func() { close(h.stop) })
}
