package httpapi

import (
	"errors"
	"net/http"

	"github.com/streamhub/streamhub/internal/core/constants"
	"github.com/streamhub/streamhub/internal/core/domain"
	"github.com/streamhub/streamhub/internal/util"
)

// handleSubscribe opens a long-lived connection to one or more channels
// (comma-separated in the path segment). The Accept header selects SSE vs
// plain chunked; ?mode=longpoll selects the long-poll variant, which
// replies once with either a backlog batch or, on timeout, a 304.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	channelIDs := splitChannels(r.PathValue("channel"))
	if len(channelIDs) == 0 {
		http.Error(w, "at least one channel id required", http.StatusBadRequest)
		return
	}

	longPoll := r.URL.Query().Get("mode") == "longpoll"
	lastSeenID := parseLastSeenID(r.URL.Query().Get("last_seen_id"))

	idx, eventSource := templateIndexForRequest(s.templates, r, s.sseEnabled)
	sk := newSink(w, longPoll, idx, s.footer, s.scratch)
	if eventSource {
		w.Header().Set(constants.HeaderContentType, constants.ContentTypeEventStream)
	} else {
		w.Header().Set(constants.HeaderContentType, constants.ContentTypeOctetStream)
	}

	subscriberID := util.GenerateRequestID()
	slot := s.nextWorkerSlot()

	sub, backlog, err := s.hub.Subscribe(channelIDs, slot, sk, longPoll, subscriberID, lastSeenID)
	if err != nil {
		writeSubscribeError(w, err)
		return
	}

	if s.log != nil {
		s.log.InfoWithSubscriberCount("subscriber attached", channelIDs[0], int64(len(channelIDs)))
	}

	if s.deliverBacklog(sub, backlog) && longPoll {
		_ = sk.Finalize()
		s.hub.Unsubscribe(sub)
		return
	}

	timers := s.hub.Scheduler()
	if !longPoll {
		timers.ArmPing(sub, s.firePing(sub))
	}
	timers.ArmDisconnect(sub, s.fireDisconnect(sub))

	select {
	case <-sk.done:
	case <-r.Context().Done():
	}
	s.hub.Unsubscribe(sub)
}

// deliverBacklog writes every channel's replay batch in channel-join order
// and advances each subscription's last-seen id to the newest message
// delivered, via the hub so the update happens under the arena lock
// instead of racing Publish/Delete's mutation of the same subscription.
// Returns whether anything was written.
func (s *Server) deliverBacklog(sub *domain.Subscriber, backlog map[string][]*domain.Message) bool {
	wrote := false
	for _, subscription := range sub.Subscriptions {
		msgs, ok := backlog[subscription.Channel.ID]
		if !ok || len(msgs) == 0 {
			continue
		}
		written := 0
		for _, m := range msgs {
			if err := writeMessage(sub, m); err != nil {
				break
			}
			written++
			wrote = true
		}
		if written > 0 {
			s.hub.CommitLastSeen(subscription, msgs[written-1].ID)
		}
	}
	return wrote
}

func writeSubscribeError(w http.ResponseWriter, err error) {
	var notFound *domain.ChannelNotFoundError
	var arenaFull *domain.ArenaFullError
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &arenaFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
