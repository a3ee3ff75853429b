package usecase

import (
	"net/url"
	"strings"

	"utmtrack/internal/domain"
)

// Extract returns the catalog parameters present in rawURL's query string.
//
// Anything that does not parse as an absolute URL yields the empty set.
// When a key repeats, the first value wins. A key with no value is present
// with the empty string.
func Extract(rawURL string, catalog domain.Catalog) domain.TrackingParameterSet {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.TrackingParameterSet{}
	}

	query := parseQuery(u.RawQuery)

	values := make(map[domain.ParameterName]string)
	for _, name := range catalog.Names() {
		if v, ok := query[string(name)]; ok {
			values[name] = v
		}
	}

	return domain.NewTrackingParameterSet(catalog, values)
}

// parseQuery splits a raw query on '&' and each pair on its first '='.
// Unlike url.ParseQuery it keeps pairs containing ';' or a bad escape: a
// part that fails to unescape is kept as written. Only the first value of
// each key is kept.
func parseQuery(rawQuery string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescapeLenient(key)
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = unescapeLenient(value)
	}
	return out
}

func unescapeLenient(s string) string {
	if unescaped, err := url.QueryUnescape(s); err == nil {
		return unescaped
	}
	return s
}
