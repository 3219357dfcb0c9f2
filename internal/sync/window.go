package sync

import "time"

// FilterField selects which remote timestamp bounds a run's window.
type FilterField string

const (
	// FieldDateCreated drives calendar-month backfill.
	FieldDateCreated FilterField = "date_created"
	// FieldDateChanged drives the rolling incremental window.
	FieldDateChanged FilterField = "date_changed"
)

type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeWindow derives the run's time range from a reference timestamp.
// Filtering on creation covers the whole calendar month containing the
// reference date; filtering on change floors the reference to the hour and
// extends hours forward, minus one second, so consecutive rolling windows
// are contiguous and never overlap.
func ComputeWindow(ref time.Time, field FilterField, hours int) Window {
	if hours <= 0 {
		hours = 6
	}

	if field == FieldDateCreated {
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		end := start.AddDate(0, 1, 0).Add(-time.Second)
		return Window{Start: start, End: end}
	}

	start := time.Date(ref.Year(), ref.Month(), ref.Day(), ref.Hour(), 0, 0, 0, ref.Location())
	end := start.Add(time.Duration(hours)*time.Hour - time.Second)
	return Window{Start: start, End: end}
}

// IncrementalReference offsets now into the past to allow for remote
// processing lag before the window is computed.
func IncrementalReference(now time.Time, hours int) time.Time {
	if hours <= 0 {
		hours = 6
	}
	return now.Add(-time.Duration(hours) * time.Hour)
}
