package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/streamhub/streamhub/internal/broker/render"
	"github.com/streamhub/streamhub/internal/core/constants"
	"github.com/streamhub/streamhub/internal/core/ports"
)

// sink is the ports.ResponseSink backing every HTTP subscriber: it owns the
// single http.ResponseWriter for the connection and serializes every write
// against it, since a publish wake and the request goroutine's own backlog
// replay can both try to write the same response.
type sink struct {
	mu sync.Mutex

	w       http.ResponseWriter
	flusher http.Flusher

	longPoll      bool
	templateIndex int
	footer        []byte
	scratch       ports.RequestPool

	headersSent bool
	wroteBody   bool
	finalized   bool

	done chan struct{}
}

func newSink(w http.ResponseWriter, longPoll bool, templateIndex int, footer []byte, scratch ports.RequestPool) *sink {
	flusher, _ := w.(http.Flusher)
	return &sink{
		w:             w,
		flusher:       flusher,
		longPoll:      longPoll,
		templateIndex: templateIndex,
		footer:        footer,
		scratch:       scratch,
		done:          make(chan struct{}),
	}
}

// sendHeaders writes the 200 response line and chunked-transfer headers the
// first time this sink is about to emit a body chunk. Long-poll sinks defer
// this until they actually have something to deliver, since a quiet poll
// period ends in a 304 instead.
func (s *sink) sendHeaders() {
	if s.headersSent {
		return
	}
	s.headersSent = true
	s.w.Header().Set(constants.HeaderTransferEncoded, constants.TransferEncodingChunk)
	s.w.Header().Set(constants.HeaderCacheControl, "no-cache")
	s.w.Header().Set(constants.HeaderConnection, "keep-alive")
	s.w.WriteHeader(http.StatusOK)
}

// Write submits one pre-chunked byte string, already framed by the caller.
func (s *sink) Write(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return nil
	}
	s.sendHeaders()
	if _, err := s.w.Write(chunk); err != nil {
		return err
	}
	s.wroteBody = true
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Finalize ends the response. A long-poll sink that never wrote anything
// falls through to RespondNotModified's 304 path instead of a 200 footer,
// matching the disconnect-timer-with-no-new-messages scenario.
func (s *sink) Finalize() error {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return nil
	}
	if s.longPoll && !s.wroteBody {
		s.mu.Unlock()
		return s.RespondNotModified(time.Now(), "0")
	}
	defer s.mu.Unlock()
	s.finalized = true
	s.sendHeaders()
	_, _ = s.w.Write(s.footerAndFinalChunk())
	if s.flusher != nil {
		s.flusher.Flush()
	}
	close(s.done)
	return nil
}

// footerAndFinalChunk assembles the footer template (if configured) and the
// terminating zero chunk into one buffer, so Finalize issues a single
// Write call instead of two.
func (s *sink) footerAndFinalChunk() []byte {
	if s.scratch == nil {
		out := make([]byte, 0, len(s.footer)+len(render.FinalChunk))
		out = append(out, s.footer...)
		out = append(out, render.FinalChunk...)
		return out
	}
	buf := s.scratch.Get()
	defer s.scratch.Put(buf)
	buf = append(buf, s.footer...)
	buf = append(buf, render.FinalChunk...)
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

// RespondNotModified serves the long-poll timeout path: a 304 carrying
// Last-Modified and ETag, still terminated by the zero chunk since the
// response was announced as chunked-capable to the client.
func (s *sink) RespondNotModified(lastModified time.Time, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return nil
	}
	s.finalized = true
	s.w.Header().Set(constants.HeaderLastModified, lastModified.Format(http.TimeFormat))
	s.w.Header().Set(constants.HeaderEtag, etag)
	s.w.WriteHeader(http.StatusNotModified)
	_, _ = s.w.Write(render.FinalChunk)
	if s.flusher != nil {
		s.flusher.Flush()
	}
	close(s.done)
	return nil
}
