package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"utmtrack/internal/domain"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type sentEvent struct {
	clientID string
	event    domain.Event
}

type fakeBinding struct {
	available atomic.Bool
	err       error

	mu   sync.Mutex
	sent []sentEvent
}

func (b *fakeBinding) IsAvailable() bool {
	return b.available.Load()
}

func (b *fakeBinding) Dispatch(_ context.Context, clientID string, event domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentEvent{clientID: clientID, event: event})
	return b.err
}

func (b *fakeBinding) calls() []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sentEvent, len(b.sent))
	copy(out, b.sent)
	return out
}

type fakeStore struct {
	mu      sync.Mutex
	data    map[string]domain.PersistedAttribution
	saveErr error
	loadErr error
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]domain.PersistedAttribution)}
}

func (s *fakeStore) Save(_ context.Context, sessionID string, attribution domain.PersistedAttribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[sessionID] = attribution
	return nil
}

func (s *fakeStore) Load(_ context.Context, sessionID string) (domain.PersistedAttribution, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return domain.PersistedAttribution{}, false, s.loadErr
	}
	a, ok := s.data[sessionID]
	return a, ok, nil
}

var errQuotaExceeded = errors.New("quota exceeded")

func testDeps() (*logger.Logger, *metrics.Metrics) {
	return logger.Discard(), metrics.NewWithRegisterer(prometheus.NewRegistry())
}
