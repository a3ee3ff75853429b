package domain

import (
	"bytes"
	"encoding/json"
)

// Parameter is one extracted name/value pair.
type Parameter struct {
	Name  ParameterName `json:"name"`
	Value string        `json:"value"`
}

// TrackingParameterSet is an immutable, catalog-ordered set of extracted
// tracking parameters. The zero value is the empty set.
type TrackingParameterSet struct {
	entries []Parameter
}

// NewTrackingParameterSet keeps only names in catalog and orders them by
// the catalog's declared order.
func NewTrackingParameterSet(catalog Catalog, values map[ParameterName]string) TrackingParameterSet {
	var entries []Parameter
	for _, name := range catalog.names {
		if value, ok := values[name]; ok {
			entries = append(entries, Parameter{Name: name, Value: value})
		}
	}
	return TrackingParameterSet{entries: entries}
}

func (s TrackingParameterSet) Len() int {
	return len(s.entries)
}

func (s TrackingParameterSet) IsEmpty() bool {
	return len(s.entries) == 0
}

// Get reports the value for name and whether it was present. An empty
// value with ok == true means the key was in the URL without a value.
func (s TrackingParameterSet) Get(name ParameterName) (string, bool) {
	for _, p := range s.entries {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

func (s TrackingParameterSet) Has(name ParameterName) bool {
	_, ok := s.Get(name)
	return ok
}

// Value returns the value for name or "" when absent.
func (s TrackingParameterSet) Value(name ParameterName) string {
	v, _ := s.Get(name)
	return v
}

func (s TrackingParameterSet) Names() []ParameterName {
	out := make([]ParameterName, len(s.entries))
	for i, p := range s.entries {
		out[i] = p.Name
	}
	return out
}

func (s TrackingParameterSet) Entries() []Parameter {
	out := make([]Parameter, len(s.entries))
	copy(out, s.entries)
	return out
}

// Map returns a copy keyed by plain strings.
func (s TrackingParameterSet) Map() map[string]string {
	out := make(map[string]string, len(s.entries))
	for _, p := range s.entries {
		out[string(p.Name)] = p.Value
	}
	return out
}

// WithoutEmpty returns the subset whose values are non-empty.
func (s TrackingParameterSet) WithoutEmpty() TrackingParameterSet {
	var entries []Parameter
	for _, p := range s.entries {
		if p.Value != "" {
			entries = append(entries, p)
		}
	}
	return TrackingParameterSet{entries: entries}
}

func (s TrackingParameterSet) Equal(other TrackingParameterSet) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for i := range s.entries {
		if s.entries[i] != other.entries[i] {
			return false
		}
	}
	return true
}

// MarshalJSON writes an object whose keys follow catalog order.
func (s TrackingParameterSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(p.Name))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
