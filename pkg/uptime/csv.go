package uptime

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// CSVHeader is the exact output header; downstream consumers match on it.
var CSVHeader = []string{
	"store_id",
	"uptime_last_hour_minutes",
	"uptime_last_day_hours",
	"uptime_last_week_hours",
	"downtime_last_hour_minutes",
	"downtime_last_day_hours",
	"downtime_last_week_hours",
}

// WriteCSV writes rows to path, creating parent directories as needed.
// An empty row set still produces the header.
func WriteCSV(path string, rows []StoreReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.StoreID,
			fixed2(r.UptimeLastHourMinutes),
			fixed2(r.UptimeLastDayHours),
			fixed2(r.UptimeLastWeekHours),
			fixed2(r.DowntimeLastHourMinutes),
			fixed2(r.DowntimeLastDayHours),
			fixed2(r.DowntimeLastWeekHours),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing row for %s: %w", r.StoreID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

// fixed2 formats with exactly two decimal places.
func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
