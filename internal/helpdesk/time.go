package helpdesk

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp reads a remote timestamp, which the API serves in UTC in a
// few different shapes. Zero/empty values come back nil.
func parseTimestamp(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// toLocalNaive converts a UTC instant to the target timezone and strips the
// zone, leaving the local wall clock for storage.
func toLocalNaive(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), lt.Second(), 0, time.UTC)
}

// localizeFields replaces each named timestamp field in the record with its
// local naive form, dropping values that do not parse.
func localizeFields(record map[string]any, loc *time.Location, fields ...string) {
	for _, field := range fields {
		if t, ok := record[field].(time.Time); ok {
			record[field] = toLocalNaive(t, loc)
			continue
		}
		if t := parseTimestamp(record[field]); t != nil {
			record[field] = toLocalNaive(*t, loc)
		} else {
			record[field] = nil
		}
	}
}
