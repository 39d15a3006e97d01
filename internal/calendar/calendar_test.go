package calendar

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func equalTimeRangeSlices(a, b []TimeRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || !a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}

//
// NormalizeTimeRange
//

func TestNormalizeTimeRange_SwappedBounds(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 12, 0)
	end := mustTime(t, 2025, 1, 1, 10, 0)

	tr, err := NormalizeTimeRange(start, end, time.UTC, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !tr.Start.Equal(end) || !tr.End.Equal(start) {
		t.Fatalf("expected Start=%v End=%v, got %v", end, start, tr)
	}
}

func TestNormalizeTimeRange_MaxDuration(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 10, 0)
	end := mustTime(t, 2025, 1, 1, 15, 0)

	tr, err := NormalizeTimeRange(start, end, time.UTC, 2*time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tr.Duration() != 2*time.Hour {
		t.Fatalf("expected duration 2h, got %v", tr.Duration())
	}
}

func TestNormalizeTimeRange_InvalidZero(t *testing.T) {
	if _, err := NormalizeTimeRange(time.Time{}, time.Time{}, time.UTC, 0); err == nil {
		t.Fatalf("expected error for zero times, got nil")
	}
}

//
// Overlaps / HasOverlap
//

func TestOverlaps_HalfOpen(t *testing.T) {
	base := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 10, 30)}

	cases := []struct {
		name string
		other TimeRange
		want bool
	}{
		{"touching end", TimeRange{mustTime(t, 2025, 1, 1, 10, 30), mustTime(t, 2025, 1, 1, 11, 0)}, false},
		{"touching start", TimeRange{mustTime(t, 2025, 1, 1, 9, 30), mustTime(t, 2025, 1, 1, 10, 0)}, false},
		{"inside", TimeRange{mustTime(t, 2025, 1, 1, 10, 10), mustTime(t, 2025, 1, 1, 10, 20)}, true},
		{"straddling start", TimeRange{mustTime(t, 2025, 1, 1, 9, 45), mustTime(t, 2025, 1, 1, 10, 15)}, true},
		{"straddling end", TimeRange{mustTime(t, 2025, 1, 1, 10, 15), mustTime(t, 2025, 1, 1, 10, 45)}, true},
		{"covering", TimeRange{mustTime(t, 2025, 1, 1, 9, 0), mustTime(t, 2025, 1, 1, 12, 0)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Fatalf("Overlaps=%v, want %v", got, tc.want)
			}
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Fatalf("Overlaps is not symmetric: %v", got)
			}
		})
	}
}

func TestHasOverlap_ReturnsConflicts(t *testing.T) {
	newRange := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)},
		{Start: mustTime(t, 2025, 1, 1, 10, 30), End: mustTime(t, 2025, 1, 1, 11, 30)},
	}

	ok, conflicts := HasOverlap(newRange, existing)
	if !ok {
		t.Fatalf("expected overlap")
	}
	if len(conflicts) != 1 || !conflicts[0].Start.Equal(existing[1].Start) {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
}

//
// BuildChain
//

func TestBuildChain_Contiguous(t *testing.T) {
	start := mustTime(t, 2025, 3, 1, 10, 0)

	segments, err := BuildChain(start, []time.Duration{30 * time.Minute, 45 * time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []TimeRange{
		{Start: start, End: mustTime(t, 2025, 3, 1, 10, 30)},
		{Start: mustTime(t, 2025, 3, 1, 10, 30), End: mustTime(t, 2025, 3, 1, 11, 15)},
	}
	if !equalTimeRangeSlices(segments, want) {
		t.Fatalf("expected %v, got %v", want, segments)
	}

	span, ok := Span(segments)
	if !ok || !span.Start.Equal(start) || !span.End.Equal(want[1].End) {
		t.Fatalf("unexpected span %v", span)
	}
}

func TestBuildChain_RejectsNonPositiveDuration(t *testing.T) {
	if _, err := BuildChain(mustTime(t, 2025, 3, 1, 10, 0), []time.Duration{0}); err != ErrSlotDuration {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
}

//
// SplitToTimeSlots / FreeSlots
//

func TestSplitToTimeSlots_DropsTail(t *testing.T) {
	window := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)}

	slots, err := SplitToTimeSlots(window, 30*time.Minute, 20*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 9, 30)},
		{Start: mustTime(t, 2025, 1, 1, 9, 20), End: mustTime(t, 2025, 1, 1, 9, 50)},
	}
	if !equalTimeRangeSlices(slots, want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
}

func TestSplitToTimeSlots_InvalidArgs(t *testing.T) {
	window := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)}

	if _, err := SplitToTimeSlots(window, 0, time.Minute); err != ErrSlotDuration {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
	if _, err := SplitToTimeSlots(window, time.Minute, 0); err != ErrSlotStep {
		t.Fatalf("expected ErrSlotStep, got %v", err)
	}
}

func TestFreeSlots_SkipsBusyAndPast(t *testing.T) {
	window := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}
	busy := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 10, 30)},
	}

	free, err := FreeSlots(window, 30*time.Minute, 30*time.Minute, busy, mustTime(t, 2025, 1, 1, 9, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 30), End: mustTime(t, 2025, 1, 1, 10, 0)},
		{Start: mustTime(t, 2025, 1, 1, 10, 30), End: mustTime(t, 2025, 1, 1, 11, 0)},
	}
	if !equalTimeRangeSlices(free, want) {
		t.Fatalf("expected %v, got %v", want, free)
	}
}

func TestBusinessDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	day := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	window, err := BusinessDay(day, 9, 18, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if window.Start.Day() != 11 || window.Start.Hour() != 9 || window.End.Hour() != 18 {
		t.Fatalf("unexpected window %v", window)
	}
	if window.Start.Location() != loc {
		t.Fatalf("expected window in %v, got %v", loc, window.Start.Location())
	}

	if _, err := BusinessDay(day, 18, 9, loc); err != ErrBusinessHours {
		t.Fatalf("expected ErrBusinessHours, got %v", err)
	}
}

func TestNewTimeRange(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 10, 0)

	tr, err := NewTimeRange(start, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tr.Duration() != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", tr.Duration())
	}

	if _, err := NewTimeRange(start, start); err != ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange for empty range, got %v", err)
	}
	if _, err := NewTimeRange(time.Time{}, start); err != ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange for zero start, got %v", err)
	}
}

func TestNormalizeTimeRange_ConvertsZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, loc)

	tr, err := NormalizeTimeRange(start, start.Add(2*time.Hour), time.UTC, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tr.Start.Location() != time.UTC || !tr.Start.Equal(mustTime(t, 2025, 1, 1, 6, 0)) {
		t.Fatalf("expected 06:00 UTC, got %v", tr.Start)
	}
}
