package domain

import (
	"context"
)

// interface for session-scoped attribution storage
type AttributionStore interface {
	// Save replaces the session's stored attribution.
	Save(ctx context.Context, sessionID string, attribution PersistedAttribution) error
	// Load reports found == false when nothing is stored for the session.
	Load(ctx context.Context, sessionID string) (attribution PersistedAttribution, found bool, err error)
}

// interface for the external analytics service
type AnalyticsBinding interface {
	// IsAvailable is true once the binding is configured and its event
	// queue is running.
	IsAvailable() bool
	Dispatch(ctx context.Context, clientID string, event Event) error
}
