// Package reconstruct turns a sparse, time-ordered sequence of status polls
// into a continuous status signal: a list of non-overlapping, status-labeled
// intervals covering a requested window plus an edge margin.
//
// The interpolation rule is midpoint attribution: each poll owns the time
// from the midpoint with its predecessor to the midpoint with its successor.
// Midpoints minimize attribution error when the true transition instant
// between two consecutive polls is uniformly distributed. The first and last
// polls are extended outward by the margin so that windows near the edges of
// the poll history do not lose coverage to fenceposting.
package reconstruct

import (
	"strings"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/interval"
)

// StatusActive is the only status value that counts as uptime. Comparison
// is case-insensitive; every other status is "not up" and consumes business
// time as downtime.
const StatusActive = "active"

// Poll is a single status observation for one store.
type Poll struct {
	Timestamp time.Time // UTC
	Status    string
}

// StatusInterval is a half-open time range attributed a single status.
type StatusInterval struct {
	interval.TimeInterval
	Status string
}

// Active reports whether the interval counts toward uptime.
func (si StatusInterval) Active() bool {
	return strings.EqualFold(si.Status, StatusActive)
}

// StatusIntervals builds the status signal for one store. Polls must be
// sorted ascending by timestamp; the caller (the poll query) guarantees
// this. The output is sorted, pairwise non-overlapping, and clipped to
// [window.Start - margin, window.End + margin]. No polls means no signal:
// the caller decides what an absent signal means (all business time down).
func StatusIntervals(polls []Poll, window interval.TimeInterval, margin time.Duration) []StatusInterval {
	if len(polls) == 0 {
		return nil
	}

	n := len(polls)
	mids := make([]time.Time, n-1)
	for i := 0; i < n-1; i++ {
		gap := polls[i+1].Timestamp.Sub(polls[i].Timestamp)
		mids[i] = polls[i].Timestamp.Add(gap / 2)
	}

	bounds := interval.TimeInterval{
		Start: window.Start.Add(-margin),
		End:   window.End.Add(margin),
	}

	out := make([]StatusInterval, 0, n)
	for i, p := range polls {
		var start, end time.Time
		if i > 0 {
			start = mids[i-1]
		} else {
			start = p.Timestamp.Add(-margin)
		}
		if i < n-1 {
			end = mids[i]
		} else {
			end = p.Timestamp.Add(margin)
		}

		clipped, ok := interval.TimeInterval{Start: start, End: end}.Clip(bounds)
		if !ok {
			continue
		}
		out = append(out, StatusInterval{TimeInterval: clipped, Status: p.Status})
	}
	return out
}
