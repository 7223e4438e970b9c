package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/streamhub/streamhub/internal/core/domain"
)

// channelStatsResponse is the wire shape for GET /channels/{channel}.
type channelStatsResponse struct {
	ChannelID      string `json:"channel"`
	StoredMessages int64  `json:"stored_messages"`
	Subscribers    int64  `json:"subscribers"`
	Deleted        bool   `json:"deleted"`
}

// handleQuery reports a single channel's current counters.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channel")
	if channelID == "" {
		http.Error(w, "channel id required", http.StatusBadRequest)
		return
	}

	stats, err := s.hub.Query(channelID)
	if err != nil {
		var notFound *domain.ChannelNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(channelStatsResponse{
		ChannelID:      stats.ID,
		StoredMessages: stats.StoredMessages,
		Subscribers:    stats.Subscribers,
		Deleted:        stats.Deleted,
	})
}
