package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/streamhub/streamhub/internal/core/domain"
)

// handlePublish accepts a publisher's payload and appends it to the named
// channel's retained queue, waking every worker shard with a subscriber
// attached. The request body is the raw message; an optional event_id
// query parameter becomes the message's SSE event id.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channel")
	if channelID == "" {
		http.Error(w, "channel id required", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	eventID := r.URL.Query().Get("event_id")

	msg, err := s.hub.Publish(channelID, body, eventID)
	if err != nil {
		writePublishError(w, err)
		return
	}

	if s.log != nil {
		s.log.InfoWithChannel("message published", channelID, "message_id", msg.ID)
	}

	w.Header().Set("X-Message-Id", formatMessageID(msg.ID))
	w.WriteHeader(http.StatusOK)
}

func writePublishError(w http.ResponseWriter, err error) {
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
