package infrastructure

import (
	"context"
	"sync"
	"time"

	"utmtrack/internal/domain"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"
)

type memoryEntry struct {
	attribution domain.PersistedAttribution
	expiresAt   time.Time
}

// implements domain.AttributionStore interface
type MemorySessionStore struct {
	data    map[string]memoryEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// creates a new in-memory session store; entries expire ttl after their last save or load
func NewMemorySessionStore(ttl time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *MemorySessionStore {
	return &MemorySessionStore{
		data:    make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *MemorySessionStore) Save(ctx context.Context, sessionID string, attribution domain.PersistedAttribution) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.data[sessionID] = memoryEntry{
		attribution: attribution,
		expiresAt:   r.now().Add(r.ttl),
	}

	r.metrics.RecordSessionStoreOp("save", "success")
	r.logger.WithContext(ctx).WithField("count", attribution.Params.Len()).Debug("Stored attribution in memory")
	return nil
}

func (r *MemorySessionStore) Load(ctx context.Context, sessionID string) (domain.PersistedAttribution, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, exists := r.data[sessionID]
	if !exists {
		r.metrics.RecordSessionStoreOp("load", "miss")
		return domain.PersistedAttribution{}, false, nil
	}

	now := r.now()
	if !now.Before(entry.expiresAt) {
		delete(r.data, sessionID)
		r.metrics.RecordSessionStoreOp("load", "expired")
		return domain.PersistedAttribution{}, false, nil
	}

	// an active session keeps its attribution alive
	entry.expiresAt = now.Add(r.ttl)
	r.data[sessionID] = entry

	r.metrics.RecordSessionStoreOp("load", "hit")
	return entry.attribution, true, nil
}

// Sweep drops every expired session and returns how many were removed.
func (r *MemorySessionStore) Sweep(ctx context.Context) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	removed := 0
	for id, entry := range r.data {
		if !now.Before(entry.expiresAt) {
			delete(r.data, id)
			removed++
		}
	}

	if removed > 0 {
		r.logger.WithContext(ctx).WithField("removed", removed).Debug("Swept expired sessions")
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *MemorySessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
