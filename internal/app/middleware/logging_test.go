package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/streamhub/internal/logger"
)

func TestEnhancedLoggingMiddleware(t *testing.T) {
	styledLogger := logger.StyledLogger{}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := GetLogger(r.Context())
		require.NotNil(t, ctxLogger)

		requestID := GetRequestID(r.Context())
		require.NotEmpty(t, requestID)

		ctxLogger.Info("test handler executed", "request_id", requestID)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("test response"))
	})

	handler := EnhancedLoggingMiddleware(styledLogger)(testHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-Id", "test-request-123")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test-request-123", rr.Header().Get("X-Request-Id"))
	assert.Equal(t, "test response", rr.Body.String())
}

func TestEnhancedLoggingMiddlewareGeneratesRequestIDWhenMissing(t *testing.T) {
	styledLogger := logger.StyledLogger{}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := EnhancedLoggingMiddleware(styledLogger)(testHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestAccessLoggingMiddleware(t *testing.T) {
	styledLogger := logger.StyledLogger{}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("access log test"))
	})

	handler := AccessLoggingMiddleware(styledLogger)(testHandler)

	req := httptest.NewRequest("POST", "/pub/chan-a?param=value", strings.NewReader("test body"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.ContentLength = 9

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "access log test", rr.Body.String())
}

func TestIsStreamingRequest(t *testing.T) {
	assert.True(t, isStreamingRequest("/sub/channel-a"))
	assert.True(t, isStreamingRequest("/subscribe/channel-a"))
	assert.False(t, isStreamingRequest("/pub/channel-a"))
	assert.False(t, isStreamingRequest("/health"))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0B"},
		{500, "500B"},
		{1024, "1.0KB"},
		{1536, "1.5KB"},
		{1048576, "1.0MB"},
		{1073741824, "1.0GB"},
		{1099511627776, "1.0TB"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, FormatBytes(test.input))
	}
}

func TestGetLoggerWithoutContext(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
}

func TestGetRequestIDWithoutContext(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}
