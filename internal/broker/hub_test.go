package broker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/streamhub/internal/adapter/systimers"
	"github.com/streamhub/streamhub/internal/broker/render"
	"github.com/streamhub/streamhub/internal/broker/sched"
	"github.com/streamhub/streamhub/internal/core/domain"
	"github.com/streamhub/streamhub/internal/core/ports"
)

// fakeSink is a minimal ports.ResponseSink recording every call for
// assertions, safe for concurrent use since delivery happens on the
// hub's own wake goroutines.
type fakeSink struct {
	mu        sync.Mutex
	writes    [][]byte
	finalized bool
	notModified bool
}

func (f *fakeSink) Write(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, chunk)
	return nil
}

func (f *fakeSink) Finalize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = true
	return nil
}

func (f *fakeSink) RespondNotModified(time.Time, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notModified = true
	return nil
}

func (f *fakeSink) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeSink) isFinalized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized
}

var _ ports.ResponseSink = (*fakeSink)(nil)

func newTestHub(mutate func(*Config)) *Hub {
	cfg := Config{
		MaxMessagesPerChannel: 10,
		MaxChannels:           100,
		MaxArenaMessages:      1000,
		Templates:             []render.Template{{Name: "chunked", Body: "~text~"}},
		AutoCreateChannels:    true,
		WorkerCount:           2,
		ChannelDeletedMessage: "channel deleted",
		Intervals:             sched.Intervals{},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, systimers.New(), ports.SystemClock{}, nil)
}

func TestPublishAutoCreatesChannel(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	msg, err := h.Publish("room1", []byte("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID)

	stats, err := h.Query("room1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.StoredMessages)
}

func TestPublishFailsWhenAutoCreateDisabledAndChannelMissing(t *testing.T) {
	t.Parallel()
	h := newTestHub(func(c *Config) { c.AutoCreateChannels = false })
	defer h.Shutdown()

	_, err := h.Publish("ghost", []byte("hello"), "")
	require.Error(t, err)
	var notFound *domain.ChannelNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPublishEvictsOldestOnceOverMaxMessages(t *testing.T) {
	t.Parallel()
	h := newTestHub(func(c *Config) { c.MaxMessagesPerChannel = 2 })
	defer h.Shutdown()

	for i := 0; i < 3; i++ {
		_, err := h.Publish("room1", []byte("m"), "")
		require.NoError(t, err)
	}

	stats, err := h.Query("room1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.StoredMessages)
}

func TestPublishToDeletedChannelFailsWithoutAutoCreate(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	_, err := h.Publish("room1", []byte("hello"), "")
	require.NoError(t, err)
	require.NoError(t, h.Delete("room1"))
	h.cfg.AutoCreateChannels = false

	_, err = h.Publish("room1", []byte("again"), "")
	require.Error(t, err)
	var notFound *domain.ChannelNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestPublishAfterDeleteWithAutoCreateStartsAFreshChannel(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	_, err := h.Publish("room1", []byte("hello"), "")
	require.NoError(t, err)
	require.NoError(t, h.Delete("room1"))

	// The deleted channel lives on in the unrecoverable tree under the same
	// id; findOrCreate only ever consults the live tree, so auto-create
	// starts a brand new channel rather than erroring.
	msg, err := h.Publish("room1", []byte("again"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID, "the new channel has its own id sequence")

	stats, err := h.Query("room1")
	require.NoError(t, err)
	assert.False(t, stats.Deleted)
}

func TestSubscribeJoinsChannelAndIncrementsSubscriberCount(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	sink := &fakeSink{}
	sub, backlog, err := h.Subscribe([]string{"room1"}, 0, sink, false, "sub-1", 0)
	require.NoError(t, err)
	assert.Empty(t, backlog)
	assert.Len(t, sub.Subscriptions, 1)

	stats, err := h.Query("room1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Subscribers)
}

func TestSubscribeWithZeroLastSeenIDReturnsNoBacklog(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	_, err := h.Publish("room1", []byte("first"), "")
	require.NoError(t, err)

	sink := &fakeSink{}
	_, backlog, err := h.Subscribe([]string{"room1"}, 0, sink, true, "sub-1", 0)
	require.NoError(t, err)
	assert.Empty(t, backlog, "last_seen_id=0 must not replay retained history")
}

func TestSubscribeWithPositiveLastSeenIDReplaysNewerMessages(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	first, err := h.Publish("room1", []byte("first"), "")
	require.NoError(t, err)
	second, err := h.Publish("room1", []byte("second"), "")
	require.NoError(t, err)

	sink := &fakeSink{}
	_, backlog, err := h.Subscribe([]string{"room1"}, 0, sink, true, "sub-1", first.ID)
	require.NoError(t, err)
	require.Len(t, backlog["room1"], 1)
	assert.Equal(t, second.ID, backlog["room1"][0].ID)
}

func TestSubscribeToDeletedChannelFailsWithoutAutoCreate(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	_, err := h.Publish("room1", []byte("hello"), "")
	require.NoError(t, err)
	require.NoError(t, h.Delete("room1"))
	h.cfg.AutoCreateChannels = false

	sink := &fakeSink{}
	_, _, err = h.Subscribe([]string{"room1"}, 0, sink, false, "sub-1", 0)
	require.Error(t, err)
	var notFound *domain.ChannelNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUnsubscribeIsIdempotentAndFinalizesSinkOnce(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	sink := &fakeSink{}
	sub, _, err := h.Subscribe([]string{"room1"}, 0, sink, false, "sub-1", 0)
	require.NoError(t, err)

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	assert.True(t, sink.isFinalized())

	stats, err := h.Query("room1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Subscribers, "double unsubscribe must not underflow the count")
}

func TestPublishWakesShardHoldingASubscriber(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	woken := make(chan struct{}, 1)
	h.SetDeliver(func(slot int, jobs []DeliveryJob) {
		select {
		case woken <- struct{}{}:
		default:
		}
	})

	sink := &fakeSink{}
	_, _, err := h.Subscribe([]string{"room1"}, 0, sink, false, "sub-1", 0)
	require.NoError(t, err)

	_, err = h.Publish("room1", []byte("hello"), "")
	require.NoError(t, err)

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("deliver callback was never invoked after publish")
	}
}

func TestDeleteMarksChannelAndWakesSubscribedShards(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	var delivered []DeliveryJob
	var mu sync.Mutex
	done := make(chan struct{}, 1)
	h.SetDeliver(func(slot int, jobs []DeliveryJob) {
		mu.Lock()
		delivered = append(delivered, jobs...)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})

	sink := &fakeSink{}
	_, _, err := h.Subscribe([]string{"room1"}, 0, sink, false, "sub-1", 0)
	require.NoError(t, err)

	require.NoError(t, h.Delete("room1"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver was never invoked after delete")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1)
	assert.True(t, delivered[0].Deleted)
	assert.NotNil(t, delivered[0].ChannelDeletedMessage)
	assert.Equal(t, "sub-1", delivered[0].Sub.ID)
}

func TestDeleteUnknownChannelReturnsNotFound(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	err := h.Delete("ghost")
	require.Error(t, err)
	var notFound *domain.ChannelNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestQueryReturnsNotFoundForUnknownChannel(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	_, err := h.Query("ghost")
	require.Error(t, err)
}

func TestArenaStatsReflectsChannelAndMessageOccupancy(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	_, err := h.Publish("room1", []byte("hello"), "")
	require.NoError(t, err)
	_, err = h.Publish("room2", []byte("hello"), "")
	require.NoError(t, err)

	stats := h.ArenaStats()
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 2, stats.Messages)
}

func TestFindServesFromLockFreeIndexWithoutCreating(t *testing.T) {
	t.Parallel()
	h := newTestHub(nil)
	defer h.Shutdown()

	_, ok := h.Find("ghost")
	assert.False(t, ok, "Find must never auto-create")

	_, err := h.Publish("room1", []byte("hello"), "")
	require.NoError(t, err)

	ch, ok := h.Find("room1")
	require.True(t, ok)
	assert.Equal(t, "room1", ch.ID)
}
