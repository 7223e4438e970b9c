// Package reclaim implements the two-phase mark/sweep reclamation of
// deleted channels and expired messages: mark moves an entity into a
// trash structure with an expiry, sweep later frees anything past that
// expiry so concurrent readers across shards never chase freed memory.
package reclaim

import (
	"time"

	"github.com/streamhub/streamhub/internal/broker/arena"
	"github.com/streamhub/streamhub/internal/broker/fanout"
	"github.com/streamhub/streamhub/internal/broker/registry"
	"github.com/streamhub/streamhub/internal/broker/store"
	"github.com/streamhub/streamhub/internal/core/domain"
)

// Sweeper owns the mark and sweep passes. Every method assumes the caller
// holds the owning arena's mutex.
type Sweeper struct {
	arena    *arena.Arena
	registry *registry.Registry
	index    *fanout.Index
	store    *store.Store
	cleanupTTL time.Duration
}

// New creates a sweeper wired to the broker's shared state.
func New(a *arena.Arena, r *registry.Registry, idx *fanout.Index, s *store.Store, cleanupTTL time.Duration) *Sweeper {
	return &Sweeper{arena: a, registry: r, index: idx, store: s, cleanupTTL: cleanupTTL}
}

// CollectEmptyAndExpired traverses the live tree iteratively (bounding
// stack depth regardless of tree shape), drops expired retained messages
// from every channel, and marks any channel with no retained messages and
// no subscribers as deleted, moving it to the trash tree with an expiry
// of now + cleanup_ttl. The force flag has no effect: every pass drops
// expired messages first and then collects every channel left empty.
func (sw *Sweeper) CollectEmptyAndExpired(now time.Time, force bool) (collected, droppedMessages int) {
	var live []*domain.Channel
	sw.registry.EachLive(func(ch *domain.Channel) bool {
		live = append(live, ch)
		return true
	})

	var toTrash []*domain.Channel
	for _, ch := range live {
		droppedMessages += sw.store.DropExpired(ch, now, sw.cleanupTTL)
		if ch.Empty() {
			toTrash = append(toTrash, ch)
		}
	}

	for _, ch := range toTrash {
		ch.Deleted = true
		ch.Expires = now.Add(sw.cleanupTTL)
		sw.index.Remove(ch)
		sw.registry.MoveToTrash(ch)
		collected++
	}
	return collected, droppedMessages
}

// DropExpiredMessages traverses the live tree dropping expired retained
// messages without removing any channel. Used by the buffer-cleanup
// timer, distinct from the memory-cleanup timer's CollectEmptyAndExpired.
func (sw *Sweeper) DropExpiredMessages(now time.Time) int {
	var live []*domain.Channel
	sw.registry.EachLive(func(ch *domain.Channel) bool {
		live = append(live, ch)
		return true
	})

	dropped := 0
	for _, ch := range live {
		dropped += sw.store.DropExpired(ch, now, sw.cleanupTTL)
	}
	return dropped
}

// SweepTrash frees every channel in the trash tree whose Expires has
// passed (or every one, if force is set), and sweeps the global message
// trash list the same way. Freeing a channel releases its arena slot.
func (sw *Sweeper) SweepTrash(now time.Time, force bool) (channelsFreed, messagesFreed int) {
	var expired []*domain.Channel
	sw.registry.EachTrash(func(ch *domain.Channel) bool {
		if force || ch.Expires.Before(now) {
			expired = append(expired, ch)
		}
		return true
	})

	for _, ch := range expired {
		sw.registry.FreeFromTrash(ch)
		sw.arena.FreeChannel()
		channelsFreed++
	}

	messagesFreed = sw.store.Sweep(now, force)
	return channelsFreed, messagesFreed
}

// FreeUnrecoverable frees ch immediately once the last worker has
// evicted its local subscribers, as required for channels in the
// unrecoverable tree (administratively deleted). Callers verify
// ch.Subscribers == 0 before calling.
func (sw *Sweeper) FreeUnrecoverable(ch *domain.Channel) {
	sw.registry.FreeFromUnrecoverable(ch)
	sw.arena.FreeChannel()
}
