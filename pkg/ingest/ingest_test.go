package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), slog.Default())
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2023-01-24T09:06:42Z", time.Date(2023, 1, 24, 9, 6, 42, 0, time.UTC), false},
		{"2023-01-24 09:06:42.605777 UTC", time.Date(2023, 1, 24, 9, 6, 42, 605777000, time.UTC), false},
		{"2023-01-24 09:06:42", time.Date(2023, 1, 24, 9, 6, 42, 0, time.UTC), false},
		{"2023-01-24 09:06:42.605777", time.Date(2023, 1, 24, 9, 6, 42, 605777000, time.UTC), false},
		{"2023-01-24T04:06:42-05:00", time.Date(2023, 1, 24, 9, 6, 42, 0, time.UTC), false},
		{"not a time", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadPollsSkipsMalformedRows(t *testing.T) {
	db := testDB(t)
	input := strings.Join([]string{
		"store_id,status,timestamp_utc",
		"s1,active,2023-01-24 09:06:42.605777 UTC",
		"s1,inactive,not-a-timestamp",
		",active,2023-01-24 10:00:00 UTC",
		"s2,active,2023-01-24 11:00:00 UTC",
	}, "\n")

	n, err := LoadPolls(context.Background(), db, strings.NewReader(input), slog.Default())
	if err != nil {
		t.Fatalf("LoadPolls: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d rows, want 2 (malformed rows skipped)", n)
	}

	ids, err := db.StoreIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("StoreIDs = %v, want [s1 s2]", ids)
	}
}

func TestLoadBusinessHoursHeaderVariants(t *testing.T) {
	db := testDB(t)

	for _, dowHeader := range []string{"dayOfWeek", "day_of_week"} {
		input := strings.Join([]string{
			"store_id," + dowHeader + ",start_time_local,end_time_local",
			"s1,0,09:00:00,17:00:00",
			"s1,9,09:00:00,17:00:00",
			"s1,1,25:00:00,17:00:00",
		}, "\n")

		n, err := LoadBusinessHours(context.Background(), db, strings.NewReader(input), slog.Default())
		if err != nil {
			t.Fatalf("LoadBusinessHours(%s): %v", dowHeader, err)
		}
		if n != 1 {
			t.Errorf("header %s: loaded %d rows, want 1 (bad dow and bad time skipped)", dowHeader, n)
		}
	}
}

func TestLoadTimezonesDefaultsEmptyZone(t *testing.T) {
	db := testDB(t)
	input := strings.Join([]string{
		"store_id,timezone_str",
		"s1,America/Denver",
		"s2,",
	}, "\n")

	n, err := LoadTimezones(context.Background(), db, strings.NewReader(input), slog.Default())
	if err != nil {
		t.Fatalf("LoadTimezones: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d rows, want 2", n)
	}

	session, err := db.ReadSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	tz, err := session.Timezone(context.Background(), "s2")
	if err != nil || tz != defaultTimezone {
		t.Errorf("Timezone(s2) = %q, %v; want %q", tz, err, defaultTimezone)
	}
}

func TestLoadReplacesPriorContents(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := "store_id,status,timestamp_utc\nold,active,2023-01-24 09:00:00"
	if _, err := LoadPolls(ctx, db, strings.NewReader(first), slog.Default()); err != nil {
		t.Fatal(err)
	}
	second := "store_id,status,timestamp_utc\nnew,active,2023-01-25 09:00:00"
	if _, err := LoadPolls(ctx, db, strings.NewReader(second), slog.Default()); err != nil {
		t.Fatal(err)
	}

	ids, err := db.StoreIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "new" {
		t.Errorf("StoreIDs after reload = %v, want [new]", ids)
	}
}
