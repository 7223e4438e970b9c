// Package httpapi adapts the transport-agnostic broker.Hub to HTTP: it
// implements ports.ResponseSink over http.ResponseWriter, negotiates which
// configured template a subscriber receives, and wires the hub's deliver
// callback to actually write bytes - the hub itself never touches net/http.
package httpapi

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/streamhub/streamhub/internal/adapter/bufpool"
	"github.com/streamhub/streamhub/internal/broker"
	"github.com/streamhub/streamhub/internal/broker/render"
	"github.com/streamhub/streamhub/internal/core/constants"
	"github.com/streamhub/streamhub/internal/core/domain"
	"github.com/streamhub/streamhub/internal/core/ports"
	"github.com/streamhub/streamhub/internal/logger"
)

// Server holds everything the HTTP handlers need: the hub, the configured
// templates (for content negotiation and ping rendering) and a styled
// logger for channel/subscriber lifecycle events.
type Server struct {
	hub       *broker.Hub
	templates []render.Template
	footer    []byte

	sseEnabled  bool
	workerCount int
	nextSlot    atomic.Int64

	pingVariants [][]byte

	scratch ports.RequestPool
	log     *logger.StyledLogger
}

// Config carries the subset of broker.Config the HTTP layer needs to
// render footers, negotiate templates, build ping frames and assign
// subscribers to worker shards.
type Config struct {
	Templates      []render.Template
	FooterTemplate string
	SSEEnabled     bool
	PingMessage    string
	WorkerCount    int
}

// New builds the HTTP adapter around hub and installs its deliver callback.
func New(hub *broker.Hub, cfg Config, log *logger.StyledLogger) *Server {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}
	s := &Server{
		hub:         hub,
		templates:   cfg.Templates,
		sseEnabled:  cfg.SSEEnabled,
		workerCount: workerCount,
		scratch:     bufpool.New(0),
		log:         log,
	}
	if cfg.FooterTemplate != "" {
		s.footer = render.Chunk([]byte(cfg.FooterTemplate))
	}
	if cfg.PingMessage != "" {
		eng := render.New(cfg.Templates)
		s.pingVariants = eng.RenderAll("", constants.MessageIDPing, "", []byte(cfg.PingMessage))
	}
	hub.SetDeliver(s.deliver)
	return s
}

// Mount registers every endpoint on registry using Go 1.22+ method-aware
// ServeMux patterns. publish and subscribe pass through the security chain
// (rate limit + size limit); delete, query and health do not carry a
// publisher-sized body so they skip size limiting but still rate limit.
func (s *Server) Mount(registry interface {
	RegisterProtected(route string, handler http.HandlerFunc, description, method string)
	RegisterWithMethod(route string, handler http.HandlerFunc, description, method string)
}) {
	registry.RegisterProtected("POST /pub/{channel}", s.handlePublish, "Publish a message to a channel", "POST")
	registry.RegisterProtected("GET /sub/{channel}", s.handleSubscribe, "Subscribe to one or more channels (comma-separated)", "GET")
	registry.RegisterWithMethod("DELETE /channels/{channel}", s.handleDelete, "Administratively delete a channel", "DELETE")
	registry.RegisterWithMethod("GET /channels/{channel}", s.handleQuery, "Fetch channel stats", "GET")
	registry.RegisterWithMethod("GET /health", s.handleHealth, "Process and arena health", "GET")
}

// nextWorkerSlot round-robins new subscribers across the configured number
// of logical worker shards, so fan-out load spreads the way it would
// across real OS-process workers in the original design.
func (s *Server) nextWorkerSlot() int {
	n := s.nextSlot.Add(1)
	return int(n % int64(s.workerCount))
}

// templateIndexForRequest negotiates which configured template a new
// subscriber receives, based on whether it asked for SSE via Accept and
// whether SSE is enabled at all. Falls back to the first template.
func templateIndexForRequest(templates []render.Template, r *http.Request, sseEnabled bool) (idx int, eventSource bool) {
	wantsSSE := sseEnabled && strings.Contains(r.Header.Get("Accept"), constants.ContentTypeEventStream)
	for i, t := range templates {
		if t.EventSource == wantsSSE {
			return i, t.EventSource
		}
	}
	return 0, false
}

// writeMessage sends msg's pre-rendered variant for sub's negotiated
// template, preceded by the SSE "id:" chunk when the message carries one.
func writeMessage(sub *domain.Subscriber, msg *domain.Message) error {
	idx := 0
	if sk, ok := sub.Sink.(*sink); ok {
		idx = sk.templateIndex
	}
	if idx < 0 || idx >= len(msg.FormattedMessages) {
		idx = 0
	}
	if len(msg.EventIDChunk) > 0 {
		if err := sub.Sink.Write(msg.EventIDChunk); err != nil {
			return err
		}
	}
	if idx >= len(msg.FormattedMessages) {
		return nil
	}
	return sub.Sink.Write(msg.FormattedMessages[idx])
}

// deliver is installed as the hub's post-wake callback. handleWake has
// already built, under the arena lock, exactly what each subscriber needs
// to receive; deliver only ever touches that snapshot, never a live
// *domain.Channel or *domain.Subscription field, so it is safe to run here
// unlocked while Publish/Delete/the reclaimer mutate the real channel
// state concurrently. Streaming subscribers only ever need the newest
// pending message (the subscription's last-seen then advances to it);
// long-poll subscribers receive the whole pending batch and are then
// unsubscribed, since a long-poll request ends with its first delivered
// batch.
func (s *Server) deliver(slot int, jobs []broker.DeliveryJob) {
	for _, job := range jobs {
		if job.Deleted {
			if job.ChannelDeletedMessage != nil {
				_ = writeMessage(job.Sub, job.ChannelDeletedMessage)
			}
			s.hub.Unsubscribe(job.Sub)
			continue
		}

		if len(job.Pending) == 0 {
			continue
		}

		if job.Sub.LongPoll {
			wrote := 0
			for _, m := range job.Pending {
				if err := writeMessage(job.Sub, m); err != nil {
					break
				}
				wrote++
			}
			if wrote > 0 {
				s.hub.CommitLastSeen(job.Subscription, job.Pending[wrote-1].ID)
			}
			s.hub.Unsubscribe(job.Sub)
			continue
		}

		latest := job.Pending[len(job.Pending)-1]
		if err := writeMessage(job.Sub, latest); err != nil {
			s.hub.Unsubscribe(job.Sub)
			continue
		}
		s.hub.CommitLastSeen(job.Subscription, latest.ID)
	}
}

// firePing is armed per-subscriber; on write error the subscriber is torn
// down the same way a peer write failure during a normal deliver would be.
func (s *Server) firePing(sub *domain.Subscriber) func() {
	return func() {
		if len(s.pingVariants) == 0 {
			return
		}
		idx := 0
		if sk, ok := sub.Sink.(*sink); ok {
			idx = sk.templateIndex
		}
		if idx < 0 || idx >= len(s.pingVariants) {
			idx = 0
		}
		if err := sub.Sink.Write(s.pingVariants[idx]); err != nil {
			s.hub.Unsubscribe(sub)
		}
	}
}

// fireDisconnect is armed per-subscriber when a disconnect interval is
// configured; it always funnels through the single Unsubscribe cleanup
// path, which finalizes the response (304 for long-poll, footer + zero
// chunk otherwise).
func (s *Server) fireDisconnect(sub *domain.Subscriber) func() {
	return func() {
		s.hub.Unsubscribe(sub)
	}
}
