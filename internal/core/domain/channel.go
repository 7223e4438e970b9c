package domain

import "time"

// Location identifies which of the three registry trees currently owns a
// channel. A channel belongs to exactly one at any time.
type Location int

const (
	LocationLive Location = iota
	LocationTrash
	LocationUnrecoverable
)

// WorkerBucket holds the subscriber records for one channel living in one
// worker shard. It exists only while that shard holds at least one
// subscriber for the channel; DropBucketIfEmpty removes it once empty.
type WorkerBucket struct {
	Slot        int
	Subscribers []*Subscriber
}

// indexOf returns the position of sub within the bucket, or -1.
func (b *WorkerBucket) indexOf(sub *Subscriber) int {
	for i, s := range b.Subscribers {
		if s == sub {
			return i
		}
	}
	return -1
}

// Remove unlinks sub from the bucket in O(n) (bucket sizes are expected to
// stay small - one entry per live connection in one shard for one channel).
func (b *WorkerBucket) Remove(sub *Subscriber) bool {
	i := b.indexOf(sub)
	if i < 0 {
		return false
	}
	b.Subscribers = append(b.Subscribers[:i], b.Subscribers[i+1:]...)
	return true
}

// Channel is a named topic. Every structural field is only ever mutated
// while the owning arena's mutex is held.
type Channel struct {
	ID          string
	Key         uint32
	Broadcast   bool
	Location    Location

	MaxMessages int
	MessageTTL  time.Duration

	StoredMessages int64
	Subscribers    int64

	Messages []*Message // retained FIFO, oldest first

	WorkersWithSubscribers map[int]*WorkerBucket

	Deleted bool
	Expires time.Time

	ChannelDeletedMessage *Message

	nextMessageID int64

	LastMessageTime time.Time
	LastMessageID   int64
}

// NewChannel allocates a channel in the live state. Callers insert it into
// the registry's live tree under the arena mutex.
func NewChannel(id string, key uint32, maxMessages int, ttl time.Duration, broadcast bool) *Channel {
	return &Channel{
		ID:                     id,
		Key:                    key,
		Broadcast:              broadcast,
		Location:               LocationLive,
		MaxMessages:            maxMessages,
		MessageTTL:             ttl,
		WorkersWithSubscribers: make(map[int]*WorkerBucket),
	}
}

// NextMessageID returns the next monotonically increasing message id for
// this channel, starting at 1. Negative ids are reserved for system
// messages (see constants.MessageIDChannelDeleted / MessageIDPing).
func (c *Channel) NextMessageID() int64 {
	c.nextMessageID++
	return c.nextMessageID
}

// BucketFor returns the worker-subscriber bucket for slot, creating it if
// this is the first subscriber for that channel in that worker.
func (c *Channel) BucketFor(slot int) *WorkerBucket {
	b, ok := c.WorkersWithSubscribers[slot]
	if !ok {
		b = &WorkerBucket{Slot: slot}
		c.WorkersWithSubscribers[slot] = b
	}
	return b
}

// DropBucketIfEmpty removes the bucket for slot once it has no remaining
// subscribers, satisfying the "exists iff >=1 subscriber" invariant.
func (c *Channel) DropBucketIfEmpty(slot int) {
	if b, ok := c.WorkersWithSubscribers[slot]; ok && len(b.Subscribers) == 0 {
		delete(c.WorkersWithSubscribers, slot)
	}
}

// IncrSubscribers increments the channel's connected-subscriber count.
func (c *Channel) IncrSubscribers() {
	c.Subscribers++
}

// DecrSubscribers decrements the channel's connected-subscriber count,
// floor-clamped at zero so a double-unlink never underflows it.
func (c *Channel) DecrSubscribers() {
	if c.Subscribers > 0 {
		c.Subscribers--
	}
}

// Empty reports whether the channel retains nothing and has no connected
// subscribers, the condition under which cleanup may reclaim it.
func (c *Channel) Empty() bool {
	return c.StoredMessages == 0 && c.Subscribers == 0
}
