package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReportStatus is a user-visible job state.
type ReportStatus string

// The complete set of states a report job can be in. NotFound is an API
// response, not a stored state.
const (
	StatusRunning  ReportStatus = "Running"
	StatusComplete ReportStatus = "Complete"
	StatusFailed   ReportStatus = "Failed"
)

// ReportJob is one row of the report job-state table. It is the only
// durable cross-request state in the system; every update is its own
// small transaction so concurrent readers never see a half-written job.
type ReportJob struct {
	ID              string
	Status          ReportStatus
	PercentComplete float64
	CreatedAt       time.Time
	FinishedAt      *time.Time
	CSVPath         string
}

// CreateReport records a fresh Running job at zero percent.
func (d *DB) CreateReport(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO reports (report_id, status, percent_complete, created_at)
		VALUES (?, ?, 0, ?)`,
		id, string(StatusRunning), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("creating report %s: %w", id, err)
	}
	return nil
}

// SetProgress publishes percent complete for a running job.
func (d *DB) SetProgress(ctx context.Context, id string, percent float64) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE reports SET percent_complete = ? WHERE report_id = ?`, percent, id)
	if err != nil {
		return fmt.Errorf("updating progress for %s: %w", id, err)
	}
	return nil
}

// CompleteReport marks the job done and records the CSV location.
func (d *DB) CompleteReport(ctx context.Context, id, csvPath string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE reports SET status = ?, percent_complete = 100, finished_at = ?, csv_path = ?
		WHERE report_id = ?`,
		string(StatusComplete), time.Now().UTC().UnixNano(), csvPath, id)
	if err != nil {
		return fmt.Errorf("completing report %s: %w", id, err)
	}
	return nil
}

// FailReport marks the job failed. No partial CSV path is recorded.
func (d *DB) FailReport(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE reports SET status = ?, finished_at = ? WHERE report_id = ?`,
		string(StatusFailed), time.Now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failing report %s: %w", id, err)
	}
	return nil
}

// Report fetches a job row, or ErrNotFound.
func (d *DB) Report(ctx context.Context, id string) (ReportJob, error) {
	var (
		job        ReportJob
		status     string
		createdNS  int64
		finishedNS sql.NullInt64
		csvPath    sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT report_id, status, percent_complete, created_at, finished_at, csv_path
		FROM reports WHERE report_id = ?`, id).
		Scan(&job.ID, &status, &job.PercentComplete, &createdNS, &finishedNS, &csvPath)
	if errors.Is(err, sql.ErrNoRows) {
		return ReportJob{}, ErrNotFound
	}
	if err != nil {
		return ReportJob{}, fmt.Errorf("querying report %s: %w", id, err)
	}
	job.Status = ReportStatus(status)
	job.CreatedAt = time.Unix(0, createdNS).UTC()
	if finishedNS.Valid {
		t := time.Unix(0, finishedNS.Int64).UTC()
		job.FinishedAt = &t
	}
	job.CSVPath = csvPath.String
	return job, nil
}
