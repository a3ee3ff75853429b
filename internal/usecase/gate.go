package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"utmtrack/internal/domain"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"
)

const (
	DefaultReadyPollInterval = 200 * time.Millisecond
	DefaultReadyMaxAttempts  = 100
)

// Gate reports whether the analytics binding can take events and lets
// callers wait, with a bounded number of polls, for it to become usable.
type Gate struct {
	binding      domain.AnalyticsBinding
	pollInterval time.Duration
	maxAttempts  int
	readiness    atomic.Int32
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewGate(binding domain.AnalyticsBinding, pollInterval time.Duration, maxAttempts int, logger *logger.Logger, metrics *metrics.Metrics) *Gate {
	if pollInterval <= 0 {
		pollInterval = DefaultReadyPollInterval
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultReadyMaxAttempts
	}
	return &Gate{
		binding:      binding,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		logger:       logger,
		metrics:      metrics,
	}
}

// IsAvailable is an instantaneous check of the binding.
func (g *Gate) IsAvailable() bool {
	return g.binding != nil && g.binding.IsAvailable()
}

// Readiness is the recorded outcome of the first wait to finish.
func (g *Gate) Readiness() domain.Readiness {
	return domain.Readiness(g.readiness.Load())
}

// WaitForReady polls IsAvailable every poll interval, up to the attempt
// ceiling. It returns true as soon as the binding is available and false
// on the ceiling or when ctx is done. Concurrent callers poll independently.
func (g *Gate) WaitForReady(ctx context.Context) bool {
	if g.IsAvailable() {
		g.settle(ctx, true)
		return true
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			// the caller lost interest; that is not a verdict on the binding
			g.logger.WithContext(ctx).WithField("attempts", attempt-1).Debug("Analytics readiness wait cancelled")
			return false
		case <-ticker.C:
		}

		if g.IsAvailable() {
			g.settle(ctx, true)
			return true
		}
	}

	g.settle(ctx, false)
	return false
}

// WaitForReadyAsync runs WaitForReady in the background. The channel
// receives exactly one value and is then closed; cancel ctx to stop polling.
func (g *Gate) WaitForReadyAsync(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		out <- g.WaitForReady(ctx)
	}()
	return out
}

func (g *Gate) settle(ctx context.Context, ready bool) {
	state := domain.ReadinessFailed
	if ready {
		state = domain.ReadinessReady
	}

	g.metrics.RecordReadinessWait(ready)

	if !g.readiness.CompareAndSwap(int32(domain.ReadinessUnknown), int32(state)) {
		return
	}

	log := g.logger.WithContext(ctx).WithField("readiness", state.String())
	if ready {
		log.Info("Analytics binding ready")
		return
	}
	log.WithFields(map[string]any{
		"attempts":      g.maxAttempts,
		"poll_interval": g.pollInterval.String(),
	}).Warn("Analytics binding not ready after waiting; events will be skipped until it is")
}
