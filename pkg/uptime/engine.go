// Package uptime computes per-store uptime and downtime over trailing
// windows from sparse status polls, restricted to each store's business
// hours in its local timezone. The engine reconstructs a continuous status
// signal by midpoint interpolation, expands the weekly schedule to UTC
// intervals, and aggregates their overlap for the last hour, day, and week.
package uptime

import (
	"context"
	"log/slog"
	"time"

	"github.com/maypok86/otter/v2"
)

// Engine owns report generation. It is safe for concurrent use; all
// per-report state lives on the stack of GenerateReport.
type Engine struct {
	logger     *slog.Logger
	locations  *otter.Cache[string, *time.Location]
	clock      func() time.Time
	defaultTZ  string
	margin     time.Duration
	maxWorkers int
}

// New creates an Engine with the default logger.
func New(ctx context.Context, opts ...Option) *Engine {
	return NewWithLogger(ctx, slog.Default(), opts...)
}

// NewWithLogger creates an Engine with a custom logger.
func NewWithLogger(_ context.Context, logger *slog.Logger, opts ...Option) *Engine {
	optHolder := &OptionHolder{}
	for _, opt := range opts {
		opt(optHolder)
	}

	e := &Engine{
		logger:     logger,
		margin:     optHolder.margin,
		defaultTZ:  optHolder.defaultTZ,
		maxWorkers: optHolder.maxWorkers,
		clock:      optHolder.clock,
		// Zone lookups hit the OS zone database; a small cache keeps
		// repeated stores in the same city from re-reading it.
		locations: otter.Must(&otter.Options[string, *time.Location]{
			MaximumSize: 1_000,
		}),
	}
	if e.margin <= 0 {
		e.margin = DefaultMargin
	}
	if e.defaultTZ == "" {
		e.defaultTZ = DefaultTimezone
	}
	if e.maxWorkers <= 0 {
		e.maxWorkers = defaultMaxWorkers()
	}
	if e.clock == nil {
		e.clock = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// location resolves an IANA zone name, falling back to the default zone
// (and finally UTC) on unknown names. Unknown zones are a data problem,
// not a report failure.
func (e *Engine) location(tz string) *time.Location {
	if tz == "" {
		tz = e.defaultTZ
	}
	if loc, ok := e.locations.GetIfPresent(tz); ok {
		return loc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.logger.Warn("unknown timezone, using default", "tz", tz, "default", e.defaultTZ, "error", err)
		loc, err = time.LoadLocation(e.defaultTZ)
		if err != nil {
			loc = time.UTC
		}
	}
	e.locations.Set(tz, loc)
	return loc
}
