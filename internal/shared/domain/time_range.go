package domain

import "time"

// TimeRange is a half-open time window [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange creates a time range from start and end.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// IsZero returns true if both bounds are unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Minutes returns the window length in whole minutes.
func (r TimeRange) Minutes() int {
	return int(r.End.Sub(r.Start).Minutes())
}

// Conflicts reports whether an existing window blocks this one.
// An existing window conflicts when its start falls within [Start, End)
// or its end falls within (Start, End]. Back-to-back windows do not
// conflict.
func (r TimeRange) Conflicts(existing TimeRange) bool {
	startsInside := !existing.Start.Before(r.Start) && existing.Start.Before(r.End)
	endsInside := existing.End.After(r.Start) && !existing.End.After(r.End)
	return startsInside || endsInside
}
