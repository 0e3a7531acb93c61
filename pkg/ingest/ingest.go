// Package ingest loads the three input CSVs into the store. Malformed rows
// are skipped and logged, never fatal; a bad row in a million-line poll
// dump should cost one row, not the load.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/schedule"
	"github.com/codeGROOVE-dev/storeWatch/pkg/store"
)

// Input file names expected inside a data directory.
const (
	PollsFile     = "store_status.csv"
	HoursFile     = "menu_hours.csv"
	TimezonesFile = "timezones.csv"
)

// timestampLayouts covers the formats seen in status dumps: RFC 3339 with
// zone, the "2023-01-24 09:06:42.605777 UTC" form, and naive timestamps
// which are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a poll timestamp, normalizing to UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// LoadDir loads every recognized CSV present in dir. Missing files are
// logged and skipped so partial datasets still load.
func LoadDir(ctx context.Context, db *store.DB, dir string, logger *slog.Logger) error {
	type loader struct {
		name string
		load func(context.Context, *store.DB, io.Reader, *slog.Logger) (int, error)
	}
	for _, l := range []loader{
		{PollsFile, LoadPolls},
		{HoursFile, LoadBusinessHours},
		{TimezonesFile, LoadTimezones},
	} {
		path := filepath.Join(dir, l.name)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("input file missing, skipping", "path", path)
				continue
			}
			return fmt.Errorf("opening %s: %w", path, err)
		}
		n, err := l.load(ctx, db, f, logger)
		f.Close()
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		logger.Info("loaded input file", "path", path, "rows", n)
	}
	return nil
}

// header maps column names to indices, tolerating the dayOfWeek /
// day_of_week spelling split between dataset versions.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h := make(header, len(record))
	for i, name := range record {
		h[strings.TrimSpace(name)] = i
	}
	return h, nil
}

func (h header) field(record []string, names ...string) (string, bool) {
	for _, name := range names {
		if i, ok := h[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i]), true
		}
	}
	return "", false
}

// LoadPolls replaces the poll table with the contents of r. Returns the
// number of rows loaded.
func LoadPolls(ctx context.Context, db *store.DB, r io.Reader, logger *slog.Logger) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	var rows []store.PollRow
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable poll row", "error", err)
			skipped++
			continue
		}
		storeID, ok1 := h.field(record, "store_id")
		tsRaw, ok2 := h.field(record, "timestamp_utc")
		status, ok3 := h.field(record, "status")
		if !ok1 || !ok2 || !ok3 || storeID == "" || tsRaw == "" || status == "" {
			skipped++
			continue
		}
		ts, err := ParseTimestamp(tsRaw)
		if err != nil {
			logger.Warn("skipping poll row", "store_id", storeID, "error", err)
			skipped++
			continue
		}
		rows = append(rows, store.PollRow{StoreID: storeID, Timestamp: ts, Status: status})
	}

	if err := db.ReplacePolls(ctx, rows); err != nil {
		return 0, err
	}
	if skipped > 0 {
		logger.Warn("poll rows skipped", "count", skipped)
	}
	return len(rows), nil
}

// LoadBusinessHours replaces the schedule table with the contents of r.
func LoadBusinessHours(ctx context.Context, db *store.DB, r io.Reader, logger *slog.Logger) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	var rows []store.HoursRow
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable business-hour row", "error", err)
			skipped++
			continue
		}
		storeID, ok1 := h.field(record, "store_id")
		dowRaw, ok2 := h.field(record, "dayOfWeek", "day_of_week")
		startRaw, ok3 := h.field(record, "start_time_local")
		endRaw, ok4 := h.field(record, "end_time_local")
		if !ok1 || !ok2 || !ok3 || !ok4 || storeID == "" {
			skipped++
			continue
		}
		dow, err := strconv.Atoi(dowRaw)
		if err != nil || dow < 0 || dow > 6 {
			logger.Warn("skipping business-hour row", "store_id", storeID, "day_of_week", dowRaw)
			skipped++
			continue
		}
		start, err := schedule.ParseLocalTime(startRaw)
		if err != nil {
			logger.Warn("skipping business-hour row", "store_id", storeID, "error", err)
			skipped++
			continue
		}
		end, err := schedule.ParseLocalTime(endRaw)
		if err != nil {
			logger.Warn("skipping business-hour row", "store_id", storeID, "error", err)
			skipped++
			continue
		}
		rows = append(rows, store.HoursRow{
			StoreID: storeID,
			Hours:   schedule.BusinessHour{DayOfWeek: dow, Start: start, End: end},
		})
	}

	if err := db.ReplaceBusinessHours(ctx, rows); err != nil {
		return 0, err
	}
	if skipped > 0 {
		logger.Warn("business-hour rows skipped", "count", skipped)
	}
	return len(rows), nil
}

// defaultTimezone fills empty timezone_str cells so the store still counts
// toward report enumeration. Matches the engine's default zone.
const defaultTimezone = "America/Chicago"

// LoadTimezones replaces the timezone table with the contents of r.
func LoadTimezones(ctx context.Context, db *store.DB, r io.Reader, logger *slog.Logger) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	var rows []store.TimezoneRow
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable timezone row", "error", err)
			skipped++
			continue
		}
		storeID, ok := h.field(record, "store_id")
		if !ok || storeID == "" {
			skipped++
			continue
		}
		tz, _ := h.field(record, "timezone_str")
		if tz == "" {
			tz = defaultTimezone
		}
		rows = append(rows, store.TimezoneRow{StoreID: storeID, Timezone: tz})
	}

	if err := db.ReplaceTimezones(ctx, rows); err != nil {
		return 0, err
	}
	if skipped > 0 {
		logger.Warn("timezone rows skipped", "count", skipped)
	}
	return len(rows), nil
}
