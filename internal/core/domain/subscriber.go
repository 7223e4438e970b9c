package domain

import "github.com/streamhub/streamhub/internal/core/ports"

// Subscriber is one live streaming or long-poll HTTP request. It is
// created by Subscribe and torn down through exactly one cleanup path
// regardless of which of the four exits (client disconnect, disconnect
// timer, channel deletion, server shutdown) triggered it.
type Subscriber struct {
	ID            string
	WorkerSlot    int
	Subscriptions []*Subscription
	LongPoll      bool
	Sink          ports.ResponseSink
	PingTimer     ports.TimerHandle
	DisconnectTimer ports.TimerHandle

	// cleanedUp guards against the idempotent-cleanup requirement: two
	// exit paths racing to tear down the same subscriber must not double
	// finalize the response or double count the unlink.
	cleanedUp bool
}

// NewSubscriber creates a subscriber bound to slot's worker shard.
func NewSubscriber(id string, slot int, sink ports.ResponseSink, longPoll bool) *Subscriber {
	return &Subscriber{
		ID:         id,
		WorkerSlot: slot,
		Sink:       sink,
		LongPoll:   longPoll,
	}
}

// AddSubscription appends a new subscription to this subscriber's edge
// list; the caller is responsible for the matching bucket-side link.
func (s *Subscriber) AddSubscription(sub *Subscription) {
	s.Subscriptions = append(s.Subscriptions, sub)
}

// RemoveSubscription unlinks sub from this subscriber's edge list.
func (s *Subscriber) RemoveSubscription(sub *Subscription) bool {
	for i, existing := range s.Subscriptions {
		if existing == sub {
			s.Subscriptions = append(s.Subscriptions[:i], s.Subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// MarkCleanedUp reports whether this is the first cleanup attempt for the
// subscriber, flipping the guard atomically under the arena mutex (callers
// always hold it here, since cleanup is invoked from within a locked
// section).
func (s *Subscriber) MarkCleanedUp() bool {
	if s.cleanedUp {
		return false
	}
	s.cleanedUp = true
	return true
}

// Subscription is the edge between one Subscriber and one Channel. It
// carries back-pointers into both the subscriber's subscription list and
// the channel's per-worker bucket so either side can be unlinked in O(1)
// once its index within the owning slice is known.
type Subscription struct {
	Channel    *Channel
	Subscriber *Subscriber
	Bucket     *WorkerBucket
	LastSeenID int64
}

// NewSubscription links subscriber to channel via bucket. The caller must
// still append it to subscriber.Subscriptions and bucket.Subscribers.
func NewSubscription(channel *Channel, subscriber *Subscriber, bucket *WorkerBucket, lastSeenID int64) *Subscription {
	return &Subscription{
		Channel:    channel,
		Subscriber: subscriber,
		Bucket:     bucket,
		LastSeenID: lastSeenID,
	}
}
