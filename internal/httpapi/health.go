package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/streamhub/streamhub/pkg/container"
)

// healthResponse reports process-level arena occupancy, used by operators
// and load balancers; it carries no per-channel detail.
type healthResponse struct {
	Status        string `json:"status"`
	Channels      int    `json:"channels"`
	Messages      int    `json:"messages"`
	MaxChannels   int    `json:"max_channels"`
	MaxMessages   int    `json:"max_messages"`
	Containerised bool   `json:"containerised"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.hub.ArenaStats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:        "ok",
		Channels:      stats.Channels,
		Messages:      stats.Messages,
		MaxChannels:   stats.MaxChannels,
		MaxMessages:   stats.MaxMessages,
		Containerised: container.IsContainerised(),
	})
}
