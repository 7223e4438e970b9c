// Package broker wires the arena, registry, store, template engine and
// subscriber fabric into the four admin-plane operations the HTTP layer
// consumes: publish, delete, subscribe and query. Every operation takes
// the arena's single mutex for its structural mutation and releases it
// before doing any I/O.
package broker

import (
	"fmt"
	"time"

	"github.com/streamhub/streamhub/internal/broker/arena"
	"github.com/streamhub/streamhub/internal/broker/fanout"
	"github.com/streamhub/streamhub/internal/broker/reclaim"
	"github.com/streamhub/streamhub/internal/broker/registry"
	"github.com/streamhub/streamhub/internal/broker/render"
	"github.com/streamhub/streamhub/internal/broker/sched"
	"github.com/streamhub/streamhub/internal/broker/store"
	"github.com/streamhub/streamhub/internal/core/constants"
	"github.com/streamhub/streamhub/internal/core/domain"
	"github.com/streamhub/streamhub/internal/core/ports"
)

// Config is the broker's runtime configuration, translated from
// internal/config.Config by the application bootstrap.
type Config struct {
	MaxMessagesPerChannel int
	MaxChannels           int
	MaxArenaMessages      int
	MessageTTL            time.Duration
	CleanupTTL            time.Duration

	Templates      []render.Template
	HeaderTemplate string
	FooterTemplate string

	SSEEnabled            bool
	ChannelDeletedMessage string
	PingMessage           string

	AutoCreateChannels bool
	Broadcast          bool

	WorkerCount int
	Intervals   sched.Intervals
}

// Hub is the broker core. One Hub is one independent broker instance;
// tests construct several to run in parallel without shared global state.
type Hub struct {
	cfg Config

	arena      *arena.Arena
	registry   *registry.Registry
	index      *fanout.Index
	store      *store.Store
	engine     *render.Engine
	signal     *fanout.Signal
	dispatcher *fanout.Dispatcher
	sweeper    *reclaim.Sweeper
	scheduler  *sched.Scheduler

	clock  ports.Clock
	logger ports.Logger

	deliver func(slot int, jobs []DeliveryJob)
}

// DeliveryJob is a point-in-time snapshot of exactly what one subscriber
// must receive after a wake: either the channel-deleted message, or the
// retained messages newer than the subscriber's last-seen id. It is built
// entirely under the arena lock by handleWake so the deliver callback -
// which runs unlocked, since it does I/O - never reads ch.Messages,
// ch.Deleted or a subscription's LastSeenID while Publish, Delete or the
// reclaimer may be mutating them concurrently under the lock.
type DeliveryJob struct {
	Sub                   *domain.Subscriber
	Subscription          *domain.Subscription
	Deleted               bool
	ChannelDeletedMessage *domain.Message
	Pending               []*domain.Message // newer than Subscription.LastSeenID, oldest first
}

// New builds a Hub and arms its process-wide cleanup timers. The caller
// supplies the host's timer and clock implementations; the deliver
// callback, invoked outside the arena mutex whenever a shard wakes up
// with channels to fan out to, is installed afterwards with SetDeliver.
func New(cfg Config, timers ports.Timers, clock ports.Clock, logger ports.Logger) *Hub {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	a := arena.New(cfg.MaxChannels, cfg.MaxArenaMessages)
	reg := registry.New()
	idx := fanout.NewIndex()
	st := store.New(a)
	eng := render.New(cfg.Templates)
	sig := fanout.NewSignal()
	disp := fanout.NewDispatcher()
	sw := reclaim.New(a, reg, idx, st, cfg.CleanupTTL)
	sc := sched.New(timers, cfg.Intervals)

	h := &Hub{
		cfg:        cfg,
		arena:      a,
		registry:   reg,
		index:      idx,
		store:      st,
		engine:     eng,
		signal:     sig,
		dispatcher: disp,
		sweeper:    sw,
		scheduler:  sc,
		clock:      clock,
		logger:     logger,
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}
	for slot := 0; slot < workerCount; slot++ {
		s := slot
		sig.Register(s, func() { h.handleWake(s) })
	}

	sc.StartCleanupTimers(h.runMemoryCleanup, h.runBufferCleanup)

	return h
}

// Shutdown stops the cleanup timers and the wake dispatch goroutines.
func (h *Hub) Shutdown() {
	h.scheduler.Stop()
	h.signal.Shutdown()
}

func (h *Hub) now() time.Time { return h.clock.Now() }

// findOrCreate locates id in the live index/tree, creating it if missing
// and channel auto-creation is enabled. Must be called under the lock.
func (h *Hub) findOrCreate(id string) (*domain.Channel, error) {
	if ch, ok := h.registry.Find(id); ok {
		return ch, nil
	}
	if !h.cfg.AutoCreateChannels {
		return nil, domain.NewChannelNotFoundError(id, false)
	}
	if err := h.arena.AllocChannel(); err != nil {
		return nil, err
	}
	ch := domain.NewChannel(id, registry.HashID(id), h.cfg.MaxMessagesPerChannel, h.cfg.MessageTTL, h.cfg.Broadcast)
	h.registry.Insert(ch)
	h.index.Put(ch)
	return ch, nil
}

// Find is the read-only lookup, served from the lock-free index without
// taking the arena mutex.
func (h *Hub) Find(id string) (*domain.Channel, bool) {
	return h.index.Find(id)
}

// Publish builds a new message from payload, renders every configured
// template, appends it to the channel's retained queue (enforcing the
// max-messages/TTL bound) and wakes every worker shard that currently
// holds a subscriber for the channel.
func (h *Hub) Publish(channelID string, payload []byte, eventID string) (*domain.Message, error) {
	h.arena.Lock()
	ch, err := h.findOrCreate(channelID)
	if err != nil {
		h.arena.Unlock()
		return nil, err
	}
	if ch.Deleted {
		h.arena.Unlock()
		return nil, domain.NewChannelNotFoundError(channelID, true)
	}

	if err := h.arena.AllocMessage(); err != nil {
		h.arena.Unlock()
		return nil, err
	}

	now := h.now()
	msg := domain.NewMessage(ch.NextMessageID(), payload, eventID, now)
	if h.cfg.MessageTTL > 0 {
		msg.Expires = now.Add(h.cfg.MessageTTL)
	}
	if eventID != "" {
		msg.EventIDChunk = render.RenderEventIDChunk(eventID)
	}
	msg.FormattedMessages = h.engine.RenderAll(channelID, msg.ID, eventID, payload)

	h.store.Append(ch, msg, now, h.cfg.CleanupTTL)
	ch.LastMessageTime = now
	ch.LastMessageID = msg.ID

	slots := make([]int, 0, len(ch.WorkersWithSubscribers))
	for slot := range ch.WorkersWithSubscribers {
		slots = append(slots, slot)
	}
	h.arena.Unlock()

	for _, slot := range slots {
		h.dispatcher.MarkPending(slot, ch)
		h.signal.Wake(slot)
	}

	return msg, nil
}

// Delete administratively removes channelID: it is detached from the live
// tree, moved to the unrecoverable tree, its retained messages drained to
// the global trash list, a channel_deleted_message is built, and every
// worker holding a subscriber for it is woken so it can deliver that
// message and unsubscribe its local subscribers.
func (h *Hub) Delete(channelID string) error {
	h.arena.Lock()
	ch, ok := h.registry.Find(channelID)
	if !ok || ch.Deleted {
		h.arena.Unlock()
		return domain.NewChannelNotFoundError(channelID, ok && ch.Deleted)
	}

	now := h.now()
	ch.Deleted = true

	deletedText := render.RenderText(firstTemplate(h.cfg.Templates), channelID, constants.MessageIDChannelDeleted, "", h.cfg.ChannelDeletedMessage)
	dm := domain.NewMessage(constants.MessageIDChannelDeleted, []byte(deletedText), "", now)
	dm.FormattedMessages = h.engine.RenderAll(channelID, constants.MessageIDChannelDeleted, "", []byte(h.cfg.ChannelDeletedMessage))
	ch.ChannelDeletedMessage = dm

	h.index.Remove(ch)
	h.registry.MoveToUnrecoverable(ch)
	h.store.DrainToTrash(ch, now, h.cfg.CleanupTTL)

	slots := make([]int, 0, len(ch.WorkersWithSubscribers))
	for slot := range ch.WorkersWithSubscribers {
		slots = append(slots, slot)
	}
	h.arena.Unlock()

	for _, slot := range slots {
		h.dispatcher.MarkPending(slot, ch)
		h.signal.Wake(slot)
	}
	return nil
}

func firstTemplate(templates []render.Template) render.Template {
	if len(templates) == 0 {
		return render.Template{Body: constants.TokenText}
	}
	return templates[0]
}

// Subscribe creates a subscriber bound to slot and joins it to every
// channel in channelIDs, creating channels as configured. It returns the
// subscriber and, per joined channel, any retained messages with id >
// lastSeenID for backlog replay - the caller writes those outside the
// lock, exactly as it would a live delivery. A lastSeenID of 0 (or less)
// returns no backlog.
func (h *Hub) Subscribe(channelIDs []string, slot int, sink ports.ResponseSink, longPoll bool, subscriberID string, lastSeenID int64) (*domain.Subscriber, map[string][]*domain.Message, error) {
	sub := domain.NewSubscriber(subscriberID, slot, sink, longPoll)
	backlog := make(map[string][]*domain.Message, len(channelIDs))

	h.arena.Lock()
	for _, id := range channelIDs {
		ch, err := h.findOrCreate(id)
		if err != nil {
			h.arena.Unlock()
			return nil, nil, err
		}
		if ch.Deleted {
			h.arena.Unlock()
			return nil, nil, domain.NewChannelNotFoundError(id, true)
		}

		bucket := ch.BucketFor(slot)
		subscription := domain.NewSubscription(ch, sub, bucket, lastSeenID)
		sub.AddSubscription(subscription)
		bucket.Subscribers = append(bucket.Subscribers, sub)
		ch.IncrSubscribers()

		if lastSeenID > 0 {
			var replay []*domain.Message
			for _, m := range ch.Messages {
				if m.ID > lastSeenID {
					replay = append(replay, m)
				}
			}
			if len(replay) > 0 {
				backlog[id] = replay
			}
		}
	}
	h.arena.Unlock()

	return sub, backlog, nil
}

// handleWake runs on a shard's dispatch goroutine: it drains the channels
// marked pending for this slot and, under the lock, builds one DeliveryJob
// per subscriber in this shard's bucket - copying out whatever that
// subscriber needs to receive from currently-live channel state. The lock
// is released before the deliver callback runs, since that callback does
// I/O.
func (h *Hub) handleWake(slot int) {
	channels := h.dispatcher.Drain(slot)
	var jobs []DeliveryJob

	for _, ch := range channels {
		h.arena.Lock()
		bucket, ok := ch.WorkersWithSubscribers[slot]
		if ok {
			for _, sub := range bucket.Subscribers {
				subscription := subscriptionFor(sub, ch)
				if subscription == nil {
					continue
				}
				job := DeliveryJob{Sub: sub, Subscription: subscription, Deleted: ch.Deleted}
				if ch.Deleted {
					job.ChannelDeletedMessage = ch.ChannelDeletedMessage
				} else {
					for _, m := range ch.Messages {
						if m.ID > subscription.LastSeenID {
							job.Pending = append(job.Pending, m)
						}
					}
				}
				jobs = append(jobs, job)
			}
		}
		h.arena.Unlock()
	}

	if len(jobs) == 0 || h.deliver == nil {
		return
	}
	h.deliver(slot, jobs)
}

func subscriptionFor(sub *domain.Subscriber, ch *domain.Channel) *domain.Subscription {
	for _, subscription := range sub.Subscriptions {
		if subscription.Channel == ch {
			return subscription
		}
	}
	return nil
}

// CommitLastSeen advances subscription's last-seen id under the arena lock
// once its messages have actually been written to the wire. The deliver
// callback calls this after I/O completes, never while holding any lock
// itself.
func (h *Hub) CommitLastSeen(subscription *domain.Subscription, lastSeenID int64) {
	h.arena.Lock()
	if lastSeenID > subscription.LastSeenID {
		subscription.LastSeenID = lastSeenID
	}
	h.arena.Unlock()
}

// SetDeliver installs the callback invoked after a wake with the delivery
// jobs built for this shard. Installed once by the application bootstrap;
// broker itself does no I/O.
func (h *Hub) SetDeliver(fn func(slot int, jobs []DeliveryJob)) {
	h.deliver = fn
}

// Unsubscribe is the single cleanup path used by every exit: client
// disconnect, disconnect timer, channel deletion emptying the
// subscription list, or server shutdown. It is idempotent.
func (h *Hub) Unsubscribe(sub *domain.Subscriber) {
	h.arena.Lock()
	if !sub.MarkCleanedUp() {
		h.arena.Unlock()
		return
	}
	if sub.PingTimer != nil {
		sub.PingTimer.Stop()
	}
	if sub.DisconnectTimer != nil {
		sub.DisconnectTimer.Stop()
	}

	toFree := make([]*domain.Channel, 0)
	for _, subscription := range sub.Subscriptions {
		ch := subscription.Channel
		subscription.Bucket.Remove(sub)
		ch.DropBucketIfEmpty(subscription.Bucket.Slot)
		ch.DecrSubscribers()

		if ch.Location == domain.LocationUnrecoverable && ch.Subscribers == 0 {
			toFree = append(toFree, ch)
		}
	}
	sub.Subscriptions = nil

	for _, ch := range toFree {
		h.sweeper.FreeUnrecoverable(ch)
	}
	h.arena.Unlock()

	_ = sub.Sink.Finalize()
}

// ChannelStats is the result of Query: a transport-agnostic snapshot of a
// single channel's counters.
type ChannelStats struct {
	ID             string
	StoredMessages int64
	Subscribers    int64
	Deleted        bool
}

// Query returns the current stats for channelID, or not-found if it does
// not exist or has been deleted.
func (h *Hub) Query(channelID string) (ChannelStats, error) {
	h.arena.Lock()
	defer h.arena.Unlock()

	ch, ok := h.registry.Find(channelID)
	if !ok {
		return ChannelStats{}, domain.NewChannelNotFoundError(channelID, false)
	}
	return ChannelStats{
		ID:             ch.ID,
		StoredMessages: ch.StoredMessages,
		Subscribers:    ch.Subscribers,
		Deleted:        ch.Deleted,
	}, nil
}

// ArenaStats exposes the arena occupancy snapshot for the process-level
// status endpoint.
func (h *Hub) ArenaStats() arena.Stats {
	h.arena.Lock()
	defer h.arena.Unlock()
	return h.arena.Snapshot()
}

// runMemoryCleanup is the memory-cleanup timer body: collect empty/expired
// channels into the trash tree, then sweep anything past its TTL.
func (h *Hub) runMemoryCleanup() {
	h.arena.Lock()
	collected, droppedMsgs := h.sweeper.CollectEmptyAndExpired(h.now(), false)
	channelsFreed, messagesFreed := h.sweeper.SweepTrash(h.now(), false)
	h.arena.Unlock()

	if h.logger != nil && (collected > 0 || channelsFreed > 0 || messagesFreed > 0 || droppedMsgs > 0) {
		h.logger.Debug("memory cleanup",
			"collected", collected,
			"dropped_messages", droppedMsgs,
			"channels_freed", channelsFreed,
			"messages_freed", messagesFreed)
	}
}

// runBufferCleanup is the buffer-cleanup timer body: drop expired
// retained messages without touching channel structure.
func (h *Hub) runBufferCleanup() {
	h.arena.Lock()
	dropped := h.sweeper.DropExpiredMessages(h.now())
	h.arena.Unlock()

	if h.logger != nil && dropped > 0 {
		h.logger.Debug("buffer cleanup", "dropped_messages", dropped)
	}
}

// Scheduler returns a SubscriberTimers view of the hub so the HTTP layer can arm
// per-subscriber ping/disconnect timers with the same configured
// intervals used for the process-wide timers.
func (h *Hub) Scheduler() *SubscriberTimers {
	return &SubscriberTimers{hub: h}
}

// SubscriberTimers is a thin façade limiting the HTTP layer to arming
// per-subscriber timers, without exposing the full Scheduler surface.
type SubscriberTimers struct {
	hub *Hub
}

// ArmPing arms sub's ping timer, invoking fire on each tick.
func (t *SubscriberTimers) ArmPing(sub *domain.Subscriber, fire func()) {
	sub.PingTimer = t.hub.scheduler.ArmPing(fire)
}

// ArmDisconnect arms sub's disconnect timer, invoking fire once it fires.
func (t *SubscriberTimers) ArmDisconnect(sub *domain.Subscriber, fire func()) {
	sub.DisconnectTimer = t.hub.scheduler.ArmDisconnect(fire)
}

// String implements fmt.Stringer for diagnostic logging of a Hub.
func (h *Hub) String() string {
	live, trash, unrecoverable := h.registry.Counts()
	return fmt.Sprintf("Hub{live=%d trash=%d unrecoverable=%d}", live, trash, unrecoverable)
}
