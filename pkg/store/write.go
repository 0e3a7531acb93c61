package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/schedule"
)

// PollRow is one status observation as loaded from store_status.csv.
type PollRow struct {
	StoreID   string
	Timestamp time.Time
	Status    string
}

// HoursRow is one weekly schedule row as loaded from menu_hours.csv.
type HoursRow struct {
	StoreID string
	Hours   schedule.BusinessHour
}

// TimezoneRow maps a store to its IANA zone as loaded from timezones.csv.
type TimezoneRow struct {
	StoreID  string
	Timezone string
}

// ReplacePolls truncates the poll table and bulk-loads rows in chunks.
func (d *DB) ReplacePolls(ctx context.Context, rows []PollRow) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM polls`); err != nil {
		return fmt.Errorf("truncating polls: %w", err)
	}
	return chunked(len(rows), func(lo, hi int) error {
		args := make([]any, 0, (hi-lo)*3)
		for _, r := range rows[lo:hi] {
			args = append(args, r.StoreID, r.Timestamp.UnixNano(), r.Status)
		}
		stmt := `INSERT INTO polls (store_id, timestamp_utc, status) VALUES ` +
			placeholders(hi-lo, 3)
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("inserting polls: %w", err)
		}
		return nil
	})
}

// ReplaceBusinessHours truncates the schedule table and bulk-loads rows.
func (d *DB) ReplaceBusinessHours(ctx context.Context, rows []HoursRow) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM business_hours`); err != nil {
		return fmt.Errorf("truncating business hours: %w", err)
	}
	return chunked(len(rows), func(lo, hi int) error {
		args := make([]any, 0, (hi-lo)*4)
		for _, r := range rows[lo:hi] {
			args = append(args, r.StoreID, r.Hours.DayOfWeek, r.Hours.Start.String(), r.Hours.End.String())
		}
		stmt := `INSERT INTO business_hours (store_id, day_of_week, start_time_local, end_time_local) VALUES ` +
			placeholders(hi-lo, 4)
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("inserting business hours: %w", err)
		}
		return nil
	})
}

// ReplaceTimezones truncates the timezone table and bulk-loads rows.
// Later rows win on duplicate store ids.
func (d *DB) ReplaceTimezones(ctx context.Context, rows []TimezoneRow) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM store_timezones`); err != nil {
		return fmt.Errorf("truncating timezones: %w", err)
	}
	return chunked(len(rows), func(lo, hi int) error {
		args := make([]any, 0, (hi-lo)*2)
		for _, r := range rows[lo:hi] {
			args = append(args, r.StoreID, r.Timezone)
		}
		stmt := `INSERT OR REPLACE INTO store_timezones (store_id, timezone_str) VALUES ` +
			placeholders(hi-lo, 2)
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("inserting timezones: %w", err)
		}
		return nil
	})
}

// chunked invokes fn over [lo, hi) slices of at most insertChunk rows.
func chunked(n int, fn func(lo, hi int) error) error {
	for lo := 0; lo < n; lo += insertChunk {
		hi := lo + insertChunk
		if hi > n {
			hi = n
		}
		if err := fn(lo, hi); err != nil {
			return err
		}
	}
	return nil
}

// placeholders builds "(?,?),(?,?)" for rows of width columns.
func placeholders(rows, width int) string {
	one := "(" + strings.TrimSuffix(strings.Repeat("?,", width), ",") + ")"
	var b strings.Builder
	for i := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(one)
	}
	return b.String()
}
