package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ISOTimestampFormat is UTC ISO-8601 with millisecond precision.
const ISOTimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// SessionStorageKey names the persisted attribution blob.
const SessionStorageKey = "utm_params"

// represents the advisory result of checking a parameter set
type AttributionValidation struct {
	HasRequiredUTMs bool            `json:"hasRequiredUTMs"`
	MissingCritical []ParameterName `json:"missingCritical"`
	WarningMessages []string        `json:"warningMessages"`
	Recommendations []string        `json:"recommendations"`
}

// PersistedAttribution is a session's stored campaign touch: the
// observed parameters plus a capture time per key.
type PersistedAttribution struct {
	Params     TrackingParameterSet
	CapturedAt map[ParameterName]time.Time
}

// NewPersistedAttribution stamps every entry of params with capturedAt.
func NewPersistedAttribution(params TrackingParameterSet, capturedAt time.Time) PersistedAttribution {
	stamps := make(map[ParameterName]time.Time, params.Len())
	for _, name := range params.Names() {
		stamps[name] = capturedAt.UTC()
	}
	return PersistedAttribution{Params: params, CapturedAt: stamps}
}

func (p PersistedAttribution) IsEmpty() bool {
	return p.Params.IsEmpty()
}

// Flatten renders the stored blob layout: each key plus a
// "<key>_timestamp" sibling holding an ISO-8601 time.
func (p PersistedAttribution) Flatten() map[string]string {
	out := make(map[string]string, p.Params.Len()*2)
	for _, entry := range p.Params.Entries() {
		out[string(entry.Name)] = entry.Value
		if ts, ok := p.CapturedAt[entry.Name]; ok {
			out[entry.Name.TimestampKey()] = ts.UTC().Format(ISOTimestampFormat)
		}
	}
	return out
}

func (p PersistedAttribution) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Flatten())
}

// UnmarshalJSON accepts the flattened layout. Unknown keys are ignored
// and a malformed timestamp fails the whole blob.
func (p *PersistedAttribution) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decode %s: %w", SessionStorageKey, err)
	}

	values := make(map[ParameterName]string)
	stamps := make(map[ParameterName]time.Time)
	for _, name := range DefaultCatalog.names {
		value, ok := flat[string(name)]
		if !ok {
			continue
		}
		values[name] = value
		if raw, ok := flat[name.TimestampKey()]; ok {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", name.TimestampKey(), err)
			}
			stamps[name] = ts
		}
	}

	p.Params = NewTrackingParameterSet(DefaultCatalog, values)
	p.CapturedAt = stamps
	return nil
}

type DiagnosisSeverity string

const (
	DiagnosisOK      DiagnosisSeverity = "ok"
	DiagnosisPartial DiagnosisSeverity = "partial"
	DiagnosisMissing DiagnosisSeverity = "missing"
)

// Diagnosis explains why a visit would or would not show as "(not set)".
type Diagnosis struct {
	Severity   DiagnosisSeverity     `json:"severity"`
	Summary    string                `json:"summary"`
	Solutions  []string              `json:"solutions"`
	Current    TrackingParameterSet  `json:"current"`
	Stored     PersistedAttribution  `json:"stored"`
	Validation AttributionValidation `json:"validation"`
	Readiness  Readiness             `json:"readiness"`
}
