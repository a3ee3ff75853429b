package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"utmtrack/internal/domain"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"

	"golang.org/x/time/rate"
)

var (
	ErrNotConfigured = errors.New("analytics measurement id or api secret not configured")
	ErrNotStarted    = errors.New("analytics event queue not started")
	ErrQueueFull     = errors.New("analytics event queue full")
)

// GA4 rejects requests carrying more events than this
const maxEventsPerRequest = 25

type MeasurementConfig struct {
	Endpoint           string
	MeasurementID      string
	APISecret          string
	Debug              bool
	Timeout            time.Duration
	QueueSize          int
	BatchSize          int
	FlushInterval      time.Duration
	RateLimitPerSecond int
}

type queuedEvent struct {
	clientID string
	event    domain.Event
}

type collectPayload struct {
	ClientID string         `json:"client_id"`
	Events   []domain.Event `json:"events"`
}

type validationResponse struct {
	ValidationMessages []struct {
		FieldPath      string `json:"fieldPath"`
		Description    string `json:"description"`
		ValidationCode string `json:"validationCode"`
	} `json:"validationMessages"`
}

// MeasurementClient implements domain.AnalyticsBinding on top of the GA4
// Measurement Protocol. Events are buffered in a queue and flushed in
// batches by a background worker. The client is usable only after Start:
// until then it is configured but has no queue, and IsAvailable is false.
type MeasurementClient struct {
	client        *http.Client
	collectURL    string
	debug         bool
	configured    bool
	queueSize     int
	batchSize     int
	flushInterval time.Duration
	logger        *logger.Logger
	metrics       *metrics.Metrics
	rateLimiter   *rate.Limiter

	mu      sync.RWMutex
	queue   chan queuedEvent
	stopped bool
	closed  bool
	done    chan struct{}
}

// creates a new measurement client; call Start before dispatching
func NewMeasurementClient(cfg MeasurementConfig, logger *logger.Logger, metrics *metrics.Metrics) *MeasurementClient {
	if cfg.BatchSize < 1 || cfg.BatchSize > maxEventsPerRequest {
		cfg.BatchSize = maxEventsPerRequest
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.RateLimitPerSecond < 1 {
		cfg.RateLimitPerSecond = 50
	}

	return &MeasurementClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		collectURL:    collectURL(cfg),
		debug:         cfg.Debug,
		configured:    cfg.MeasurementID != "" && cfg.APISecret != "" && cfg.Endpoint != "",
		queueSize:     cfg.QueueSize,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger,
		metrics:       metrics,
		rateLimiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.BatchSize),
	}
}

func collectURL(cfg MeasurementConfig) string {
	path := "/mp/collect"
	if cfg.Debug {
		path = "/debug/mp/collect"
	}
	query := url.Values{}
	query.Set("measurement_id", cfg.MeasurementID)
	query.Set("api_secret", cfg.APISecret)
	return strings.TrimRight(cfg.Endpoint, "/") + path + "?" + query.Encode()
}

// IsAvailable is true when the client is configured and its queue is running.
func (c *MeasurementClient) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configured && c.queue != nil && !c.stopped
}

// Start creates the event queue and launches the flush worker. The worker
// runs until Stop is called or ctx is done.
func (c *MeasurementClient) Start(ctx context.Context) error {
	if !c.configured {
		return ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue != nil {
		return nil
	}

	c.queue = make(chan queuedEvent, c.queueSize)
	c.done = make(chan struct{})
	go c.run(ctx, c.queue, c.done)

	c.logger.WithFields(map[string]any{
		"queue_size":     c.queueSize,
		"batch_size":     c.batchSize,
		"flush_interval": c.flushInterval.String(),
		"debug":          c.debug,
	}).Info("Analytics event queue started")
	return nil
}

// Stop closes the queue, flushes what is left and waits for the worker.
func (c *MeasurementClient) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.queue == nil {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("analytics queue did not drain: %w", ctx.Err())
	}
}

// Dispatch enqueues event for clientID without blocking.
func (c *MeasurementClient) Dispatch(ctx context.Context, clientID string, event domain.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.configured {
		return ErrNotConfigured
	}
	if c.queue == nil || c.stopped {
		return ErrNotStarted
	}

	select {
	case c.queue <- queuedEvent{clientID: clientID, event: withEngagementTime(event)}:
		c.metrics.SetAnalyticsQueued(len(c.queue))
		return nil
	default:
		c.metrics.RecordExternalAPIFailure("ga4", "queue_full")
		return ErrQueueFull
	}
}

// GA4 drops events without engagement time from realtime reports.
func withEngagementTime(event domain.Event) domain.Event {
	if _, ok := event.Params[domain.ParamEngagementTime]; ok {
		return event
	}
	event.Params = event.Params.Merge(domain.EventParams{
		domain.ParamEngagementTime: domain.NumberValue(1),
	})
	return event
}

func (c *MeasurementClient) run(ctx context.Context, queue <-chan queuedEvent, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	var pending []queuedEvent
	for {
		select {
		case qe, ok := <-queue:
			if !ok {
				c.drain(pending)
				return
			}
			pending = append(pending, qe)
			if len(pending) >= c.batchSize {
				c.flush(ctx, pending)
				pending = nil
			}
		case <-ticker.C:
			if len(pending) > 0 {
				c.flush(ctx, pending)
				pending = nil
			}
		case <-ctx.Done():
			c.mu.Lock()
			c.stopped = true
			c.mu.Unlock()
			c.drain(append(pending, buffered(queue)...))
			return
		}
	}
}

// buffered empties the queue without blocking.
func buffered(queue <-chan queuedEvent) []queuedEvent {
	var out []queuedEvent
	for {
		select {
		case qe, ok := <-queue:
			if !ok {
				return out
			}
			out = append(out, qe)
		default:
			return out
		}
	}
}

// drain flushes the final batch on its own deadline, since the worker's
// context may already be cancelled.
func (c *MeasurementClient) drain(pending []queuedEvent) {
	if len(pending) == 0 {
		return
	}
	timeout := c.client.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c.flush(ctx, pending)
}

// flush groups events per client, preserving order, and sends each group
// in requests of at most batchSize events.
func (c *MeasurementClient) flush(ctx context.Context, pending []queuedEvent) {
	var order []string
	groups := make(map[string][]domain.Event)
	for _, qe := range pending {
		if _, seen := groups[qe.clientID]; !seen {
			order = append(order, qe.clientID)
		}
		groups[qe.clientID] = append(groups[qe.clientID], qe.event)
	}

	for _, clientID := range order {
		events := groups[clientID]
		for start := 0; start < len(events); start += c.batchSize {
			end := start + c.batchSize
			if end > len(events) {
				end = len(events)
			}
			if err := c.send(ctx, clientID, events[start:end]); err != nil {
				c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"client_id": clientID,
					"events":    end - start,
				}).Error("Failed to send analytics events")
			}
		}
	}

	c.mu.RLock()
	if c.queue != nil {
		c.metrics.SetAnalyticsQueued(len(c.queue))
	}
	c.mu.RUnlock()
}

// sends one Measurement Protocol request
func (c *MeasurementClient) send(ctx context.Context, clientID string, events []domain.Event) error {
	start := time.Now()

	// Apply rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("ga4", "rate_limit")
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	payload, err := json.Marshal(collectPayload{ClientID: clientID, Events: events})
	if err != nil {
		c.metrics.RecordExternalAPIFailure("ga4", "json_marshal")
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectURL, bytes.NewReader(payload))
	if err != nil {
		c.metrics.RecordExternalAPIFailure("ga4", "request_creation")
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("ga4", "network_error")
		return fmt.Errorf("failed to send events: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordExternalAPICall("ga4", fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return fmt.Errorf("measurement protocol returned status %d", resp.StatusCode)
	}

	if c.debug {
		c.logValidation(ctx, resp.Body)
	}

	c.metrics.RecordExternalAPICall("ga4", "success", duration)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"client_id": clientID,
		"duration":  duration,
		"events":    len(events),
	}).Debug("Successfully sent analytics events")

	return nil
}

// logValidation reports debug-endpoint findings; the debug endpoint
// answers 200 even for invalid events.
func (c *MeasurementClient) logValidation(ctx context.Context, body io.Reader) {
	var validation validationResponse
	if err := json.NewDecoder(body).Decode(&validation); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Could not decode measurement protocol validation response")
		return
	}
	for _, msg := range validation.ValidationMessages {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"field_path":      msg.FieldPath,
			"validation_code": msg.ValidationCode,
		}).Warn(msg.Description)
	}
}
