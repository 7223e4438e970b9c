package httpapi

import (
	"errors"
	"net/http"

	"github.com/streamhub/streamhub/internal/core/domain"
)

// handleDelete administratively removes a channel. Every subscriber
// attached to it receives channel_deleted_message on the next wake and is
// then unsubscribed; the channel itself is freed no earlier than
// cleanup_ttl after its last subscriber leaves.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channel")
	if channelID == "" {
		http.Error(w, "channel id required", http.StatusBadRequest)
		return
	}

	if err := s.hub.Delete(channelID); err != nil {
		var notFound *domain.ChannelNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.log != nil {
		s.log.InfoWithChannel("channel deleted", channelID)
	}
	w.WriteHeader(http.StatusOK)
}
