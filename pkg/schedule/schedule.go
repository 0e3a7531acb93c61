// Package schedule expands per-store weekly business hours into concrete
// UTC intervals. Schedules are wall-clock local times in the store's IANA
// zone; expansion walks local calendar dates, builds the open range for
// each date, and converts to UTC. A store with no schedule rows is open
// around the clock.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/interval"
)

// LocalTime is a wall-clock time of day, zone-agnostic.
type LocalTime struct {
	Hour   int
	Minute int
	Second int
}

// ParseLocalTime parses "HH:MM:SS" (or "HH:MM") with 0 <= HH <= 23.
func ParseLocalTime(s string) (LocalTime, error) {
	var lt LocalTime
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &lt.Hour, &lt.Minute, &lt.Second); err != nil {
		if _, err2 := fmt.Sscanf(s, "%d:%d", &lt.Hour, &lt.Minute); err2 != nil {
			return LocalTime{}, fmt.Errorf("parsing local time %q: %w", s, err)
		}
	}
	if lt.Hour < 0 || lt.Hour > 23 || lt.Minute < 0 || lt.Minute > 59 || lt.Second < 0 || lt.Second > 59 {
		return LocalTime{}, fmt.Errorf("local time %q out of range", s)
	}
	return lt, nil
}

// String formats the time as HH:MM:SS.
func (lt LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", lt.Hour, lt.Minute, lt.Second)
}

// BusinessHour is one weekly schedule row. DayOfWeek uses 0=Monday .. 6=Sunday.
// End at or before Start means the range crosses midnight into the next
// local day. Multiple rows per day are allowed.
type BusinessHour struct {
	DayOfWeek int
	Start     LocalTime
	End       LocalTime
}

// mondayIndexed converts Go's Sunday-first weekday to the 0=Monday scheme.
func mondayIndexed(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// Expand returns the sorted, disjoint UTC intervals during which a store
// with the given schedule is open inside window. Rows are wall-clock times
// in loc; times falling in a DST gap advance past it and ambiguous times
// resolve to the zone database's choice, so intervals straddling a
// transition may shift by up to an hour.
func Expand(rows []BusinessHour, window interval.TimeInterval, loc *time.Location) []interval.TimeInterval {
	if window.Empty() {
		return nil
	}
	if len(rows) == 0 {
		return []interval.TimeInterval{window}
	}

	byDay := make(map[int][]BusinessHour, 7)
	for _, row := range rows {
		byDay[row.DayOfWeek] = append(byDay[row.DayOfWeek], row)
	}

	// Walk local dates with a one-day pad on each side: overnight rows can
	// begin the prior local day, and the window can start or end mid-day.
	first := window.Start.In(loc).AddDate(0, 0, -1)
	last := window.End.In(loc).AddDate(0, 0, 1)
	firstY, firstM, firstD := first.Date()
	lastY, lastM, lastD := last.Date()
	cur := time.Date(firstY, firstM, firstD, 0, 0, 0, 0, loc)
	end := time.Date(lastY, lastM, lastD, 0, 0, 0, 0, loc)

	var open []interval.TimeInterval
	for !cur.After(end) {
		y, m, d := cur.Date()
		for _, row := range byDay[mondayIndexed(cur.Weekday())] {
			s := time.Date(y, m, d, row.Start.Hour, row.Start.Minute, row.Start.Second, 0, loc)
			e := time.Date(y, m, d, row.End.Hour, row.End.Minute, row.End.Second, 0, loc)
			if !e.After(s) {
				// Overnight row: the close belongs to the next local day.
				e = time.Date(y, m, d+1, row.End.Hour, row.End.Minute, row.End.Second, 0, loc)
			}
			clipped, ok := interval.TimeInterval{Start: s.UTC(), End: e.UTC()}.Clip(window)
			if !ok {
				continue
			}
			open = append(open, clipped)
		}
		cur = cur.AddDate(0, 0, 1)
	}

	if len(open) == 0 {
		return nil
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Start.Before(open[j].Start) })
	return interval.MergeSorted(open)
}
