package usecase

import (
	"context"
	"errors"
	"net/url"

	"utmtrack/internal/domain"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"

	"github.com/google/uuid"
)

var errInvalidPageURL = errors.New("page URL must be absolute")

// Dispatcher forwards page views, custom events and conversions to the
// analytics binding. Every send is fail-soft: an unavailable binding or a
// failed send is reported in the DispatchResult and logged, never returned
// as an error.
type Dispatcher struct {
	binding     domain.AnalyticsBinding
	gate        *Gate
	attribution *AttributionService
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewDispatcher(
	binding domain.AnalyticsBinding,
	gate *Gate,
	attribution *AttributionService,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		binding:     binding,
		gate:        gate,
		attribution: attribution,
		logger:      logger,
		metrics:     metrics,
	}
}

// SendPageView validates the campaign parameters of pageURL for logging,
// persists them for the session and sends a page_view event. Validation
// never changes the payload.
func (d *Dispatcher) SendPageView(ctx context.Context, sessionID, pageURL, title string) domain.DispatchResult {
	result := domain.DispatchResult{Kind: domain.EventKindPageView, Event: domain.PageViewEventName}

	if !d.gate.IsAvailable() {
		return d.skip(ctx, result)
	}

	u, err := url.Parse(pageURL)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		err = errInvalidPageURL
	}
	if err != nil {
		return d.reject(ctx, result, err)
	}

	params := Extract(pageURL, d.attribution.Catalog())
	validation := Validate(params, d.attribution.HasPersisted(ctx, sessionID))
	if !validation.HasRequiredUTMs {
		log := d.logger.WithContext(ctx).WithField("missing_critical", validation.MissingCritical)
		log.Warn("Sending page_view without complete UTM data; may result in \"(not set)\" attribution")
		for _, warning := range validation.WarningMessages {
			log.Warn(warning)
		}
		for _, rec := range validation.Recommendations {
			log.Info(rec)
		}
	}

	d.attribution.Persist(ctx, sessionID, params)

	result.Params = domain.PageView{
		Title:    title,
		Location: pageURL,
		Path:     pagePath(u),
	}.Params()
	result.Validation = &validation

	return d.dispatch(ctx, sessionID, result)
}

// SendEvent sends an arbitrary named event.
func (d *Dispatcher) SendEvent(ctx context.Context, sessionID, name string, params domain.EventParams) domain.DispatchResult {
	result := domain.DispatchResult{Kind: domain.EventKindCustom, Event: name, Params: params}

	if !d.gate.IsAvailable() {
		return d.skip(ctx, result)
	}
	if err := domain.ValidateEventName(name); err != nil {
		return d.reject(ctx, result, err)
	}

	return d.dispatch(ctx, sessionID, result)
}

// SendConversion sends a conversion event built from the fixed base
// payload overlaid with extra. Campaign parameters are not attached: the
// analytics service associates the session's campaign context itself,
// which SendPageView established earlier.
func (d *Dispatcher) SendConversion(ctx context.Context, sessionID, name string, extra domain.EventParams) domain.DispatchResult {
	result := domain.DispatchResult{Kind: domain.EventKindConversion, Event: name}

	if !d.gate.IsAvailable() {
		return d.skip(ctx, result)
	}
	if err := domain.ValidateEventName(name); err != nil {
		return d.reject(ctx, result, err)
	}

	stored := d.attribution.Retrieve(ctx, sessionID)
	validation := Validate(stored.Params, !stored.IsEmpty())
	if !validation.HasRequiredUTMs {
		log := d.logger.WithContext(ctx).WithField("missing_critical", validation.MissingCritical)
		log.Warn("Conversion event sent without complete UTM attribution; it may show as \"(not set)\" in acquisition reports")
		for _, warning := range validation.WarningMessages {
			log.Warn(warning)
		}
	}

	result.Params = domain.NewConversion(validation).Params().Merge(extra)
	result.Validation = &validation

	return d.dispatch(ctx, sessionID, result)
}

func (d *Dispatcher) dispatch(ctx context.Context, sessionID string, result domain.DispatchResult) domain.DispatchResult {
	log := d.logger.WithContext(ctx).WithFields(map[string]any{
		"event": result.Event,
		"kind":  result.Kind,
	})

	event := domain.Event{Name: result.Event, Params: result.Params}
	if err := d.binding.Dispatch(ctx, clientID(sessionID), event); err != nil {
		result.Outcome = domain.OutcomeSendError
		result.Error = err.Error()
		log.WithError(err).Error("Error sending analytics event")
	} else {
		result.Outcome = domain.OutcomeSent
		log.WithField("params", len(result.Params)).Info("Analytics event sent")
	}

	d.metrics.RecordAnalyticsEvent(string(result.Kind), string(result.Outcome))
	return result
}

func (d *Dispatcher) skip(ctx context.Context, result domain.DispatchResult) domain.DispatchResult {
	result.Outcome = domain.OutcomeSkippedUnavailable
	d.metrics.RecordAnalyticsEvent(string(result.Kind), string(result.Outcome))
	d.logger.WithContext(ctx).WithFields(map[string]any{
		"event": result.Event,
		"kind":  result.Kind,
	}).Warn("Analytics not available; event skipped")
	return result
}

func (d *Dispatcher) reject(ctx context.Context, result domain.DispatchResult, err error) domain.DispatchResult {
	result.Outcome = domain.OutcomeInvalid
	result.Error = err.Error()
	d.metrics.RecordAnalyticsEvent(string(result.Kind), string(result.Outcome))
	d.logger.WithContext(ctx).WithError(err).WithField("event", result.Event).Warn("Analytics event rejected")
	return result
}

// pagePath is the escaped path plus the raw query string.
func pagePath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// clientID identifies the browser to the analytics service. Visitors
// without a session get a one-off id.
func clientID(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	return uuid.New().String()
}
