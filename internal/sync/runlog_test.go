package sync

import (
	"testing"
	"time"
)

func TestStampRangeCoversCurrentRun(t *testing.T) {
	cases := []time.Time{
		time.Date(2025, 7, 8, 21, 2, 33, 0, time.UTC),
		time.Date(2025, 7, 8, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 23, 59, 58, 0, time.UTC),
	}
	for _, now := range cases {
		started := now.Add(-90 * time.Second)
		start, end := stampRange(now, started, 6)
		if !start.Equal(started) {
			t.Fatalf("now %v: start = %v, want run start %v", now, start, started)
		}
		// Stamps are written at most one second before now; the range
		// must contain all of them, including a stamp taken at now.
		if now.Before(start) || !now.Before(end) {
			t.Fatalf("now %v: stamp falls outside [%v, %v)", now, start, end)
		}
	}
}

func TestStampRangeExcludedFromRollingWindow(t *testing.T) {
	// The rolling data window the sync filters on ends before the run
	// begins, so counting over it would always miss the run's stamps.
	now := time.Date(2025, 7, 8, 21, 2, 33, 0, time.UTC)
	w := ComputeWindow(IncrementalReference(now, 6), FieldDateChanged, 6)
	if !w.End.Before(now) {
		t.Fatalf("rolling window %v..%v unexpectedly reaches %v", w.Start, w.End, now)
	}

	start, end := stampRange(now, now.Add(-45*time.Second), 6)
	if now.Before(start) || !now.Before(end) {
		t.Fatalf("stamp range [%v, %v) misses %v", start, end, now)
	}
}

func TestStampRangeWithoutMarker(t *testing.T) {
	now := time.Date(2025, 7, 8, 21, 2, 33, 0, time.UTC)
	start, end := stampRange(now, time.Time{}, 6)

	wantStart := now.Add(-6 * time.Hour)
	if !start.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(now.Add(time.Second)) {
		t.Fatalf("end = %v, want %v", end, now.Add(time.Second))
	}
}
