package usecase

import (
	"context"
	"time"

	"utmtrack/internal/domain"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"
)

// Analysis is the result of inspecting one landing URL.
type Analysis struct {
	URL        string                       `json:"url"`
	Params     domain.TrackingParameterSet  `json:"params"`
	Validation domain.AttributionValidation `json:"validation"`
}

// AttributionService extracts, validates and persists a session's
// campaign touch. Storage trouble never reaches callers: it is logged
// and the operation degrades to a no-op.
type AttributionService struct {
	store   domain.AttributionStore
	catalog domain.Catalog
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewAttributionService(store domain.AttributionStore, catalog domain.Catalog, logger *logger.Logger, metrics *metrics.Metrics) *AttributionService {
	return &AttributionService{
		store:   store,
		catalog: catalog,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *AttributionService) Catalog() domain.Catalog {
	return s.catalog
}

// Analyze extracts the catalog parameters from rawURL and validates them
// against the session's fallback data. It does not persist anything.
func (s *AttributionService) Analyze(ctx context.Context, sessionID, rawURL string) Analysis {
	params := Extract(rawURL, s.catalog)
	s.metrics.RecordExtraction(params.Len())

	validation, kinds := validate(params, s.HasPersisted(ctx, sessionID))
	s.metrics.RecordValidation(validation.HasRequiredUTMs)
	for _, kind := range kinds {
		s.metrics.RecordValidationWarning(kind)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"found":             params.Len(),
		"has_required_utms": validation.HasRequiredUTMs,
		"missing_critical":  validation.MissingCritical,
	}).Debug("Analyzed tracking parameters")

	return Analysis{URL: rawURL, Params: params, Validation: validation}
}

// Persist replaces the session's stored attribution with the non-empty
// entries of params. An empty set leaves existing data untouched.
func (s *AttributionService) Persist(ctx context.Context, sessionID string, params domain.TrackingParameterSet) {
	params = params.WithoutEmpty()
	if params.IsEmpty() {
		return
	}

	log := s.logger.WithContext(ctx)
	if sessionID == "" {
		s.metrics.RecordSessionStoreOp("save", "no_session")
		log.Warn("Could not store UTM parameters: no session")
		return
	}

	attribution := domain.NewPersistedAttribution(params, s.now())
	if err := s.store.Save(ctx, sessionID, attribution); err != nil {
		log.WithError(err).Warn("Could not store UTM parameters in session storage")
		return
	}

	log.WithField("params", params.Map()).Info("UTM parameters stored for session persistence")
}

// Retrieve returns the session's stored attribution, or an empty one when
// nothing is stored or the store fails.
func (s *AttributionService) Retrieve(ctx context.Context, sessionID string) domain.PersistedAttribution {
	if sessionID == "" {
		return domain.PersistedAttribution{}
	}

	attribution, found, err := s.store.Load(ctx, sessionID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Could not retrieve stored UTM parameters")
		return domain.PersistedAttribution{}
	}
	if !found {
		return domain.PersistedAttribution{}
	}

	return attribution
}

func (s *AttributionService) HasPersisted(ctx context.Context, sessionID string) bool {
	return !s.Retrieve(ctx, sessionID).IsEmpty()
}

// Diagnose explains the "(not set)" risk of rawURL for this session.
func (s *AttributionService) Diagnose(ctx context.Context, sessionID, rawURL string, readiness domain.Readiness) domain.Diagnosis {
	analysis := s.Analyze(ctx, sessionID, rawURL)
	stored := s.Retrieve(ctx, sessionID)
	return Diagnose(analysis.Params, stored, analysis.Validation, readiness)
}
