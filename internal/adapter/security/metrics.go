package security

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/streamhub/streamhub/internal/core/constants"
	"github.com/streamhub/streamhub/internal/core/ports"
	"github.com/streamhub/streamhub/internal/logger"
)

// MetricsAdapter records security-chain violations locally with atomic
// counters - the broker core has no metrics backend of its own to report
// into, so violations are logged and kept in-process, readable through
// GetMetrics, rather than shipped to an external collector.
type MetricsAdapter struct {
	logger *logger.StyledLogger

	rateLimitViolations  atomic.Int64
	sizeLimitViolations  atomic.Int64
	uniqueRateLimitedIPs sync.Map
}

// NewSecurityMetricsAdapter creates a metrics adapter that logs and counts
// security-chain violations in-process.
func NewSecurityMetricsAdapter(logger *logger.StyledLogger) *MetricsAdapter {
	return &MetricsAdapter{logger: logger}
}

func (sma *MetricsAdapter) RecordViolation(ctx context.Context, violation ports.SecurityViolation) error {
	switch violation.ViolationType {
	case constants.ViolationRateLimit:
		sma.rateLimitViolations.Add(1)
		sma.uniqueRateLimitedIPs.Store(violation.ClientID, struct{}{})
	case constants.ViolationSizeLimit:
		sma.sizeLimitViolations.Add(1)
	}

	if violation.ViolationType == constants.ViolationSizeLimit && violation.Size > 50*1024*1024 {
		sma.logger.Warn("large request blocked",
			"client_id", violation.ClientID,
			"size", violation.Size,
			"endpoint", violation.Endpoint)
	}

	return nil
}

func (sma *MetricsAdapter) GetMetrics(ctx context.Context) (ports.SecurityMetrics, error) {
	unique := 0
	sma.uniqueRateLimitedIPs.Range(func(_, _ any) bool {
		unique++
		return true
	})

	return ports.SecurityMetrics{
		RateLimitViolations:  sma.rateLimitViolations.Load(),
		SizeLimitViolations:  sma.sizeLimitViolations.Load(),
		UniqueRateLimitedIPs: unique,
	}, nil
}
