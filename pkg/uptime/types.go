package uptime

import (
	"runtime"
	"time"
)

// Option configures an Engine.
type Option func(*OptionHolder)

// WithMaxWorkers caps the number of concurrent per-store aggregations.
func WithMaxWorkers(n int) Option {
	return func(o *OptionHolder) {
		o.maxWorkers = n
	}
}

// WithMargin sets the reconstruction edge margin. The margin must exceed
// the longest expected gap between adjacent polls for a store, or windows
// near the edge of the poll history lose coverage.
func WithMargin(m time.Duration) Option {
	return func(o *OptionHolder) {
		o.margin = m
	}
}

// WithDefaultTimezone sets the zone used for stores with no timezone row.
func WithDefaultTimezone(tz string) Option {
	return func(o *OptionHolder) {
		o.defaultTZ = tz
	}
}

// WithClock overrides the wall clock used when the poll table is empty.
// Reports over non-empty data never consult the clock; they anchor to the
// dataset's own horizon so a static dataset always yields the same report.
func WithClock(clock func() time.Time) Option {
	return func(o *OptionHolder) {
		o.clock = clock
	}
}

// OptionHolder holds configuration options.
type OptionHolder struct {
	clock      func() time.Time
	defaultTZ  string
	margin     time.Duration
	maxWorkers int
}

// Defaults for engine configuration.
const (
	DefaultTimezone = "America/Chicago"
	DefaultMargin   = 12 * time.Hour
)

// defaultMaxWorkers is min(4, hardware parallelism).
func defaultMaxWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > 4 {
		return 4
	}
	if n < 1 {
		return 1
	}
	return n
}

// StoreReport is one output row: uptime and downtime per trailing window,
// rounded half-to-even to two decimals.
type StoreReport struct {
	StoreID                 string
	UptimeLastHourMinutes   float64
	UptimeLastDayHours      float64
	UptimeLastWeekHours     float64
	DowntimeLastHourMinutes float64
	DowntimeLastDayHours    float64
	DowntimeLastWeekHours   float64
}

// zeroReport is the row emitted for a store whose aggregation failed.
func zeroReport(storeID string) StoreReport {
	return StoreReport{StoreID: storeID}
}
