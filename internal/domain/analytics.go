package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Readiness of the analytics binding. It moves from ReadinessUnknown to
// one terminal state exactly once.
type Readiness int32

const (
	ReadinessUnknown Readiness = iota
	ReadinessReady
	ReadinessFailed
)

func (r Readiness) String() string {
	switch r {
	case ReadinessReady:
		return "ready"
	case ReadinessFailed:
		return "failed"
	default:
		return "not_checked"
	}
}

func (r Readiness) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Reserved GA4 event parameter names
const (
	ParamPageTitle       = "page_title"
	ParamPageLocation    = "page_location"
	ParamPagePath        = "page_path"
	ParamEventCategory   = "event_category"
	ParamEventLabel      = "event_label"
	ParamEventValue      = "value"
	ParamHasCompleteUTMs = "has_complete_utms"
	ParamMissingUTMCount = "missing_utm_count"
	ParamEngagementTime  = "engagement_time_msec"
)

const (
	PageViewEventName = "page_view"

	DefaultConversionCategory = "UTM Demo"
	DefaultConversionLabel    = "Simulated Conversion"
)

type EventKind string

const (
	EventKindPageView   EventKind = "page_view"
	EventKindCustom     EventKind = "custom"
	EventKindConversion EventKind = "conversion"
)

// ParamValue holds exactly one of a string or a number.
type ParamValue struct {
	str     string
	num     float64
	numeric bool
}

func StringValue(s string) ParamValue {
	return ParamValue{str: s}
}

func NumberValue(n float64) ParamValue {
	return ParamValue{num: n, numeric: true}
}

// BoolValue encodes a flag as 1 or 0, the form GA4 reports on.
func BoolValue(b bool) ParamValue {
	if b {
		return NumberValue(1)
	}
	return NumberValue(0)
}

func (v ParamValue) IsNumber() bool {
	return v.numeric
}

func (v ParamValue) Number() float64 {
	return v.num
}

func (v ParamValue) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

func (v ParamValue) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.str)
}

var ErrUnsupportedParamValue = errors.New("parameter value must be a string, number or boolean")

func (v *ParamValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrUnsupportedParamValue
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case 'n', '{', '[':
		return ErrUnsupportedParamValue
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	}
	return nil
}

// EventParams is the flat parameter mapping sent with an event.
type EventParams map[string]ParamValue

// Merge returns a new mapping of p overlaid with overrides; overrides win.
func (p EventParams) Merge(overrides EventParams) EventParams {
	out := make(EventParams, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Event is a single analytics event ready for dispatch.
type Event struct {
	Name   string      `json:"name"`
	Params EventParams `json:"params,omitempty"`
}

// GA4 event names: leading letter, then letters, digits or underscores, at most 40 chars.
var eventNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,39}$`)

var ErrInvalidEventName = errors.New("invalid event name")

func ValidateEventName(name string) error {
	if !eventNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidEventName, name)
	}
	return nil
}

// PageView is the payload of a page_view event.
type PageView struct {
	Title    string
	Location string
	Path     string
}

// Params leaves page_title out when Title is empty.
func (p PageView) Params() EventParams {
	params := EventParams{
		ParamPageLocation: StringValue(p.Location),
		ParamPagePath:     StringValue(p.Path),
	}
	if p.Title != "" {
		params[ParamPageTitle] = StringValue(p.Title)
	}
	return params
}

// Conversion is the fixed base payload of a conversion event.
type Conversion struct {
	Category        string
	Label           string
	Value           float64
	HasCompleteUTMs bool
	MissingUTMCount int
}

func NewConversion(validation AttributionValidation) Conversion {
	return Conversion{
		Category:        DefaultConversionCategory,
		Label:           DefaultConversionLabel,
		Value:           1,
		HasCompleteUTMs: validation.HasRequiredUTMs,
		MissingUTMCount: len(validation.MissingCritical),
	}
}

func (c Conversion) Params() EventParams {
	return EventParams{
		ParamEventCategory:   StringValue(c.Category),
		ParamEventLabel:      StringValue(c.Label),
		ParamEventValue:      NumberValue(c.Value),
		ParamHasCompleteUTMs: BoolValue(c.HasCompleteUTMs),
		ParamMissingUTMCount: NumberValue(float64(c.MissingUTMCount)),
	}
}

type DispatchOutcome string

const (
	OutcomeSent               DispatchOutcome = "sent"
	OutcomeSkippedUnavailable DispatchOutcome = "skipped_unavailable"
	OutcomeSendError          DispatchOutcome = "send_error"
	OutcomeInvalid            DispatchOutcome = "invalid"
)

// DispatchResult records what a dispatch attempted and how it ended.
type DispatchResult struct {
	Kind       EventKind              `json:"kind"`
	Event      string                 `json:"event"`
	Outcome    DispatchOutcome        `json:"outcome"`
	Error      string                 `json:"error,omitempty"`
	Params     EventParams            `json:"params,omitempty"`
	Validation *AttributionValidation `json:"validation,omitempty"`
}
