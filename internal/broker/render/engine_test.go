package render

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVariantSubstitutesAllTokens(t *testing.T) {
	t.Parallel()

	tmpl := Template{Name: "chunked", Body: "id=~id~ event=~event-id~ ch=~channel-id~ body=~text~"}
	out := RenderVariant(tmpl, "room1", 7, "evt-7", []byte("hello"))

	assert.Contains(t, string(out), "id=7")
	assert.Contains(t, string(out), "event=evt-7")
	assert.Contains(t, string(out), "ch=room1")
	assert.Contains(t, string(out), "body=hello")
}

func TestRenderVariantWrapsResultAsSingleChunk(t *testing.T) {
	t.Parallel()

	tmpl := Template{Name: "chunked", Body: "~text~"}
	out := RenderVariant(tmpl, "room1", 1, "", []byte("hi"))

	expected := Chunk([]byte("hi"))
	assert.Equal(t, expected, out)
}

func TestRenderVariantEventSourceSplitsPerLine(t *testing.T) {
	t.Parallel()

	tmpl := Template{Name: "eventsource", Body: "data: ~text~", EventSource: true}
	out := RenderVariant(tmpl, "room1", 1, "", []byte("line1\nline2"))

	rendered := string(out)
	assert.Contains(t, rendered, "data: line1")
	assert.Contains(t, rendered, "data: line2")
}

func TestRenderVariantEventSourceNormalizesLineEndings(t *testing.T) {
	t.Parallel()

	tmpl := Template{Name: "eventsource", Body: "~text~", EventSource: true}
	crlf := RenderVariant(tmpl, "room1", 1, "", []byte("a\r\nb"))
	cr := RenderVariant(tmpl, "room1", 1, "", []byte("a\rb"))
	lf := RenderVariant(tmpl, "room1", 1, "", []byte("a\nb"))

	assert.Equal(t, crlf, lf)
	assert.Equal(t, cr, lf)
}

func TestSubstitutionOrderLeavesLiteralTokensInPayloadAlone(t *testing.T) {
	t.Parallel()

	// A payload that itself contains a literal channel-id token must not be
	// re-substituted by a later pass: text is substituted last.
	tmpl := Template{Name: "chunked", Body: "~channel-id~:~text~"}
	out := RenderVariant(tmpl, "room1", 1, "", []byte("~channel-id~"))

	rendered := string(out)
	assert.Contains(t, rendered, "room1:~channel-id~")
}

func TestRenderAllProducesOneVariantPerTemplateInOrder(t *testing.T) {
	t.Parallel()

	templates := []Template{
		{Name: "chunked", Body: "A:~text~"},
		{Name: "sse", Body: "B:~text~", EventSource: true},
	}
	e := New(templates)
	out := e.RenderAll("room1", 1, "", []byte("x"))

	require.Len(t, out, 2)
	assert.Contains(t, string(out[0]), "A:x")
	assert.Contains(t, string(out[1]), "B:x")
}

func TestRenderEventIDChunkFormatsIDLine(t *testing.T) {
	t.Parallel()

	out := RenderEventIDChunk("evt-42")
	expected := Chunk([]byte("id:evt-42\n"))
	assert.Equal(t, expected, out)
}

func TestRenderTextSubstitutesWithoutChunking(t *testing.T) {
	t.Parallel()

	tmpl := Template{Name: "chunked", Body: "ch=~channel-id~ id=~id~ text=~text~"}
	out := RenderText(tmpl, "room1", int64(99), "", "bye")

	assert.Equal(t, "ch=room1 id="+strconv.Itoa(99)+" text=bye", out)
}
