// Package store implements the per-channel bounded message FIFO and the
// global trash list used during two-phase reclamation of messages.
package store

import (
	"time"

	"github.com/streamhub/streamhub/internal/broker/arena"
	"github.com/streamhub/streamhub/internal/core/domain"
)

// Store owns the global message trash list. Per-channel retained queues
// live directly on domain.Channel.Messages; Store's job is enforcing the
// max-messages/TTL bound on append and sweeping the trash list later.
// Every method assumes the caller holds the owning arena's mutex.
type Store struct {
	arena *arena.Arena
	trash []*domain.Message
}

// New creates a message store bound to arena for allocation accounting.
func New(a *arena.Arena) *Store {
	return &Store{arena: a}
}

// Append adds msg to channel's retained FIFO, then evicts from the head
// while the queue exceeds MaxMessages or the head has expired, moving
// evicted messages to the global trash list with the given cleanup TTL.
func (s *Store) Append(ch *domain.Channel, msg *domain.Message, now time.Time, cleanupTTL time.Duration) {
	ch.Messages = append(ch.Messages, msg)
	ch.StoredMessages++

	for len(ch.Messages) > 0 {
		head := ch.Messages[0]
		overBound := ch.MaxMessages > 0 && len(ch.Messages) > ch.MaxMessages
		expired := head.Expired(now)
		if !overBound && !expired {
			break
		}
		ch.Messages = ch.Messages[1:]
		ch.StoredMessages--
		s.evict(head, now, cleanupTTL)
	}
}

func (s *Store) evict(msg *domain.Message, now time.Time, cleanupTTL time.Duration) {
	msg.Deleted = true
	msg.Expires = now.Add(cleanupTTL)
	s.trash = append(s.trash, msg)
}

// DropExpired removes any retained message from channel whose TTL has
// elapsed, without touching subscriber or structural state. Used by the
// buffer-cleanup timer.
func (s *Store) DropExpired(ch *domain.Channel, now time.Time, cleanupTTL time.Duration) int {
	kept := ch.Messages[:0:0]
	dropped := 0
	for _, m := range ch.Messages {
		if m.Expired(now) {
			s.evict(m, now, cleanupTTL)
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	ch.Messages = kept
	ch.StoredMessages -= int64(dropped)
	return dropped
}

// DrainToTrash moves every retained message of channel into the global
// trash list, used when a channel is administratively deleted.
func (s *Store) DrainToTrash(ch *domain.Channel, now time.Time, cleanupTTL time.Duration) {
	for _, m := range ch.Messages {
		s.evict(m, now, cleanupTTL)
	}
	ch.Messages = nil
	ch.StoredMessages = 0
}

// Sweep frees every trashed message whose Expires has passed (or every
// trashed message if force is set), releasing its arena accounting slot.
// Returns the number of messages freed.
func (s *Store) Sweep(now time.Time, force bool) int {
	kept := s.trash[:0:0]
	freed := 0
	for _, m := range s.trash {
		if force || m.Expires.Before(now) {
			s.arena.FreeMessage()
			freed++
			continue
		}
		kept = append(kept, m)
	}
	s.trash = kept
	return freed
}

// TrashLen reports the size of the global message trash list, for query.
func (s *Store) TrashLen() int {
	return len(s.trash)
}
