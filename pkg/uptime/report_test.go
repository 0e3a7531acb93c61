package uptime

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/schedule"
	"github.com/codeGROOVE-dev/storeWatch/pkg/store"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return records
}

func TestGenerateReportEmptyDataset(t *testing.T) {
	db := testDB(t)
	out := filepath.Join(t.TempDir(), "report.csv")

	engine := testEngine(t, WithClock(func() time.Time { return now }))
	if err := engine.GenerateReport(context.Background(), db, out, ""); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	records := readCSV(t, out)
	if len(records) != 1 {
		t.Fatalf("expected header-only CSV, got %d records", len(records))
	}
	if got := strings.Join(records[0], ","); got != strings.Join(CSVHeader, ",") {
		t.Errorf("header = %q", got)
	}
}

func TestGenerateReportOrderingAndFailedStore(t *testing.T) {
	// Store "b" carries a corrupt schedule row written behind the loader's
	// back; its aggregation fails and it must still appear, zero-valued,
	// without failing the report.
	db := testDB(t)
	ctx := context.Background()

	if err := db.ReplacePolls(ctx, []store.PollRow{
		{StoreID: "c", Timestamp: now.Add(-30 * time.Minute), Status: "active"},
		{StoreID: "a", Timestamp: now, Status: "active"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceBusinessHours(ctx, []store.HoursRow{{
		StoreID: "b",
		Hours:   schedule.BusinessHour{DayOfWeek: 0, Start: schedule.LocalTime{Hour: 25}, End: schedule.LocalTime{Hour: 17}},
	}}); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "report.csv")
	if err := db.CreateReport(ctx, "job-1"); err != nil {
		t.Fatal(err)
	}

	engine := testEngine(t)
	if err := engine.GenerateReport(ctx, db, out, "job-1"); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	records := readCSV(t, out)
	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i+1][0] != want {
			t.Errorf("row %d store = %q, want %q", i, records[i+1][0], want)
		}
	}

	// The broken store reports zeros across all six columns.
	for col := 1; col < 7; col++ {
		if records[2][col] != "0.00" {
			t.Errorf("failed store column %d = %q, want 0.00", col, records[2][col])
		}
	}
	// The healthy 24/7 stores report a fully-up last hour.
	if records[1][1] != "60.00" || records[3][1] != "60.00" {
		t.Errorf("healthy store uptime = %q, %q, want 60.00", records[1][1], records[3][1])
	}

	job, err := db.Report(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if job.PercentComplete != 100 {
		t.Errorf("final percent = %v, want 100 after last completion", job.PercentComplete)
	}
}

func TestGenerateReportIngestionOrderIrrelevant(t *testing.T) {
	run := func(t *testing.T, reversed bool) [][]string {
		db := testDB(t)
		ctx := context.Background()

		polls := []store.PollRow{
			{StoreID: "s", Timestamp: now.Add(-3 * time.Hour), Status: "inactive"},
			{StoreID: "s", Timestamp: now.Add(-2 * time.Hour), Status: "active"},
			{StoreID: "s", Timestamp: now.Add(-1 * time.Hour), Status: "inactive"},
			{StoreID: "s", Timestamp: now, Status: "active"},
		}
		if reversed {
			for i, j := 0, len(polls)-1; i < j; i, j = i+1, j-1 {
				polls[i], polls[j] = polls[j], polls[i]
			}
		}
		if err := db.ReplacePolls(ctx, polls); err != nil {
			t.Fatal(err)
		}

		out := filepath.Join(t.TempDir(), "report.csv")
		if err := testEngine(t).GenerateReport(ctx, db, out, ""); err != nil {
			t.Fatal(err)
		}
		return readCSV(t, out)
	}

	forward := run(t, false)
	backward := run(t, true)
	if len(forward) != len(backward) {
		t.Fatalf("row counts differ: %d vs %d", len(forward), len(backward))
	}
	for i := range forward {
		if strings.Join(forward[i], ",") != strings.Join(backward[i], ",") {
			t.Errorf("row %d differs: %v vs %v", i, forward[i], backward[i])
		}
	}
}

func TestGenerateReportUsesDatasetHorizon(t *testing.T) {
	// now comes from the data, not the wall clock: a report over a
	// historical dataset must not be all-downtime just because the polls
	// are old.
	db := testDB(t)
	ctx := context.Background()

	old := time.Date(2023, 1, 25, 10, 0, 0, 0, time.UTC)
	if err := db.ReplacePolls(ctx, []store.PollRow{
		{StoreID: "s", Timestamp: old.Add(-40 * time.Minute), Status: "active"},
		{StoreID: "s", Timestamp: old, Status: "active"},
	}); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "report.csv")
	if err := testEngine(t).GenerateReport(ctx, db, out, ""); err != nil {
		t.Fatal(err)
	}

	records := readCSV(t, out)
	if len(records) != 2 {
		t.Fatalf("expected 1 row, got %d", len(records)-1)
	}
	if records[1][1] != "60.00" {
		t.Errorf("uptime last hour = %q, want 60.00 anchored at the dataset horizon", records[1][1])
	}
}

func TestProgressStride(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{1, 1},
		{5, 1},
		{19, 1},
		{20, 1},
		{40, 2},
		{100, 5},
		{10_000, 5},
	}
	for _, tt := range tests {
		if got := progressStride(tt.total); got != tt.want {
			t.Errorf("progressStride(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestWriteCSVFormatting(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.csv")
	rows := []StoreReport{{
		StoreID:               "s1",
		UptimeLastHourMinutes: 60,
		UptimeLastDayHours:    13.5,
		UptimeLastWeekHours:   100.25,
	}}
	if err := WriteCSV(out, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records := readCSV(t, out)
	want := []string{"s1", "60.00", "13.50", "100.25", "0.00", "0.00", "0.00"}
	for i, w := range want {
		if records[1][i] != w {
			t.Errorf("column %d = %q, want %q", i, records[1][i], w)
		}
	}
}

func TestWriteCSVCreatesParentDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "dir", "report.csv")
	if err := WriteCSV(out, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("report file missing: %v", err)
	}
}
