// Package render is the template engine: it compiles a publisher payload
// into one pre-chunked variant per configured template, plus a line-split
// variant for SSE-style (eventsource) templates. Substitution is a single
// non-overlapping pass per token, applied in the fixed order id, event-id,
// channel, text.
package render

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/streamhub/streamhub/internal/core/constants"
)

// Template is one configured rendering of a publish payload.
type Template struct {
	Name        string
	Body        string
	EventSource bool
}

// Engine holds the configured templates and renders publish payloads
// against them. It is stateless and safe for concurrent read-only use
// once built; callers never mutate a live Engine.
type Engine struct {
	templates []Template
}

// New builds an engine from the configured template list.
func New(templates []Template) *Engine {
	return &Engine{templates: templates}
}

// substitute applies the four token replacements to body in the fixed
// order id, event-id, channel, text, each as one non-overlapping pass via
// strings.Replace(..., -1).
func substitute(body, channelID string, msgID int64, eventID, text string) string {
	out := strings.Replace(body, constants.TokenMessageID, strconv.FormatInt(msgID, 10), -1)
	out = strings.Replace(out, constants.TokenEventID, eventID, -1)
	out = strings.Replace(out, constants.TokenChannelID, channelID, -1)
	out = strings.Replace(out, constants.TokenText, text, -1)
	return out
}

// splitLines splits payload at CR, LF or CRLF boundaries, matching the
// eventsource template's per-line substitution requirement.
func splitLines(payload []byte) []string {
	normalized := bytes.ReplaceAll(payload, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))
	return strings.Split(string(normalized), "\n")
}

// RenderVariant produces the pre-chunked byte string for one configured
// template and the given publish payload. Non-eventsource templates are
// substituted once against the whole payload; eventsource templates are
// substituted once per input line and the results rejoined with CRLF so
// each original line becomes its own SSE data: line, then the whole
// result is wrapped as a single HTTP chunk.
func RenderVariant(tmpl Template, channelID string, msgID int64, eventID string, payload []byte) []byte {
	var rendered string
	if tmpl.EventSource {
		lines := splitLines(payload)
		parts := make([]string, len(lines))
		for i, line := range lines {
			parts[i] = substitute(tmpl.Body, channelID, msgID, eventID, line)
		}
		rendered = strings.Join(parts, "\r\n")
	} else {
		rendered = substitute(tmpl.Body, channelID, msgID, eventID, string(payload))
	}
	return Chunk([]byte(rendered))
}

// RenderAll renders payload against every configured template, returning
// one pre-chunked variant per template in configuration order.
func (e *Engine) RenderAll(channelID string, msgID int64, eventID string, payload []byte) [][]byte {
	out := make([][]byte, len(e.templates))
	for i, tmpl := range e.templates {
		out[i] = RenderVariant(tmpl, channelID, msgID, eventID, payload)
	}
	return out
}

// RenderEventIDChunk builds the SSE "id:<event_id>\n" chunk for a message
// carrying an explicit event id. Callers skip this when eventID == "".
func RenderEventIDChunk(eventID string) []byte {
	return Chunk([]byte("id:" + eventID + "\n"))
}

// RenderText substitutes a single template against arbitrary text outside
// the publish path (channel-deleted and ping system messages), returning
// the raw rendered bytes (not yet chunked) so callers can choose whether
// to wrap it.
func RenderText(tmpl Template, channelID string, msgID int64, eventID, text string) string {
	return substitute(tmpl.Body, channelID, msgID, eventID, text)
}
