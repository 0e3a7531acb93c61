package uptime

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/interval"
	"github.com/codeGROOVE-dev/storeWatch/pkg/reconstruct"
	"github.com/codeGROOVE-dev/storeWatch/pkg/schedule"
	"github.com/codeGROOVE-dev/storeWatch/pkg/store"
)

// computeStore runs the full aggregation for one store against a single
// reference instant. It borrows its own read session; sessions are never
// shared across workers.
func (e *Engine) computeStore(ctx context.Context, db *store.DB, storeID string, now time.Time) (StoreReport, error) {
	session, err := db.ReadSession(ctx)
	if err != nil {
		return zeroReport(storeID), err
	}
	defer session.Close()

	tz, err := session.Timezone(ctx, storeID)
	if err != nil {
		return zeroReport(storeID), err
	}
	loc := e.location(tz)

	hours, err := session.BusinessHours(ctx, storeID)
	if err != nil {
		return zeroReport(storeID), err
	}

	// Reconstruction window: the week window padded a day back for the
	// schedule expansion's date walk and an hour forward to absorb any
	// poll recorded after the dataset horizon.
	recon := interval.TimeInterval{
		Start: now.Add(-7*24*time.Hour - 24*time.Hour),
		End:   now.Add(time.Hour),
	}
	polls, err := session.PollsInRange(ctx, storeID, recon.Start.Add(-e.margin), recon.End.Add(e.margin))
	if err != nil {
		return zeroReport(storeID), err
	}
	signal := reconstruct.StatusIntervals(polls, recon, e.margin)

	windows := []struct {
		start time.Time
	}{
		{now.Add(-time.Hour)},
		{now.Add(-24 * time.Hour)},
		{now.Add(-7 * 24 * time.Hour)},
	}

	var up, down [3]float64
	for i, w := range windows {
		window := interval.TimeInterval{Start: w.start, End: now}
		business := schedule.Expand(hours, window, loc)
		up[i], down[i] = tally(signal, business)
	}

	return StoreReport{
		StoreID:                 storeID,
		UptimeLastHourMinutes:   round2(up[0] / 60),
		DowntimeLastHourMinutes: round2(down[0] / 60),
		UptimeLastDayHours:      round2(up[1] / 3600),
		DowntimeLastDayHours:    round2(down[1] / 3600),
		UptimeLastWeekHours:     round2(up[2] / 3600),
		DowntimeLastWeekHours:   round2(down[2] / 3600),
	}, nil
}

// tally splits the business time covered by the given intervals into
// uptime and downtime seconds. No signal at all means every scheduled
// second counts as downtime. Both results are clamped non-negative so an
// arithmetic surprise can never leak a negative aggregate.
func tally(signal []reconstruct.StatusInterval, business []interval.TimeInterval) (uptime, downtime float64) {
	total := interval.TotalSeconds(business)
	if total <= 0 {
		return 0, 0
	}
	if len(signal) == 0 {
		return 0, total
	}

	for _, b := range business {
		for _, s := range signal {
			if !s.Active() {
				continue
			}
			uptime += interval.Overlap(s.TimeInterval, b)
		}
	}
	if uptime > total {
		uptime = total
	}
	downtime = total - uptime
	if uptime < 0 {
		uptime = 0
	}
	if downtime < 0 {
		downtime = 0
	}
	return uptime, downtime
}

// round2 rounds half-to-even to two decimals. Banker's rounding keeps
// reports reproducible across platforms.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// safeComputeStore converts any per-store failure, including a panic, into
// a zero-valued report. One broken store must not sink the fleet report.
func (e *Engine) safeComputeStore(ctx context.Context, db *store.DB, storeID string, now time.Time) (report StoreReport) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("store aggregation panicked", "store_id", storeID, "panic", fmt.Sprint(r))
			report = zeroReport(storeID)
		}
	}()

	report, err := e.computeStore(ctx, db, storeID, now)
	if err != nil {
		e.logger.Error("store aggregation failed", "store_id", storeID, "error", err)
		return zeroReport(storeID)
	}
	return report
}
