// Package interval provides half-open UTC time interval arithmetic.
// ALL instants in the codebase are stored in UTC; an interval [Start, End)
// contains Start and excludes End. Construction with End <= Start is a
// programming error and every operation treats such an interval as empty.
package interval

import "time"

// TimeInterval is a half-open [Start, End) range of UTC instants.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the interval, never negative.
func (iv TimeInterval) Duration() time.Duration {
	d := iv.End.Sub(iv.Start)
	if d < 0 {
		return 0
	}
	return d
}

// Seconds returns the length of the interval in seconds, never negative.
func (iv TimeInterval) Seconds() float64 {
	return iv.Duration().Seconds()
}

// Empty reports whether the interval contains no instants.
func (iv TimeInterval) Empty() bool {
	return !iv.End.After(iv.Start)
}

// Overlap returns the duration shared by a and b in seconds:
// max(0, min(a.End, b.End) - max(a.Start, b.Start)).
func Overlap(a, b TimeInterval) float64 {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	d := end.Sub(start).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Clip intersects the interval with bounds and reports whether anything
// remains. The returned interval is empty (and ok is false) when the
// intersection contains no instants.
func (iv TimeInterval) Clip(bounds TimeInterval) (TimeInterval, bool) {
	out := iv
	if bounds.Start.After(out.Start) {
		out.Start = bounds.Start
	}
	if bounds.End.Before(out.End) {
		out.End = bounds.End
	}
	if out.Empty() {
		return TimeInterval{}, false
	}
	return out, true
}

// MergeSorted unions a slice of intervals already sorted by Start.
// Touching intervals merge: an interval whose Start is at or before the
// running End extends the running interval. The input slice is not modified.
func MergeSorted(sorted []TimeInterval) []TimeInterval {
	if len(sorted) == 0 {
		return nil
	}
	merged := make([]TimeInterval, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if !iv.Start.After(cur.End) {
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = iv
	}
	return append(merged, cur)
}

// TotalSeconds sums the durations of the given intervals.
func TotalSeconds(ivs []TimeInterval) float64 {
	var total float64
	for _, iv := range ivs {
		total += iv.Seconds()
	}
	return total
}
