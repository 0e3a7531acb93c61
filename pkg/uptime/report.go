package uptime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/storeWatch/pkg/store"
)

// GenerateReport computes the fleet report and writes it to csvPath.
// When reportID is non-empty, progress is published to the report job
// table as stores complete. The caller owns the final Complete/Failed
// transition; GenerateReport only reports success or failure.
func (e *Engine) GenerateReport(ctx context.Context, db *store.DB, csvPath, reportID string) error {
	start := time.Now()

	// The reference instant is the dataset's own horizon, so a static
	// dataset always produces the same report. Wall clock only when the
	// poll table is empty.
	now, ok, err := db.MaxPollTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("determining reference instant: %w", err)
	}
	if !ok {
		now = e.clock()
	}

	storeIDs, err := db.StoreIDs(ctx)
	if err != nil {
		return fmt.Errorf("enumerating stores: %w", err)
	}
	total := len(storeIDs)
	e.logger.Info("report started",
		"report_id", reportID, "stores", total, "now", now, "workers", e.maxWorkers)

	if total == 0 {
		if err := WriteCSV(csvPath, nil); err != nil {
			return fmt.Errorf("writing empty report: %w", err)
		}
		e.logger.Info("report finished", "report_id", reportID, "stores", 0)
		return nil
	}

	workers := e.maxWorkers
	if workers > total {
		workers = total
	}

	ids := make(chan string)
	results := make(chan StoreReport)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				results <- e.safeComputeStore(ctx, db, id, now)
			}
		}()
	}
	go func() {
		defer close(ids)
		for _, id := range storeIDs {
			select {
			case ids <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	stride := progressStride(total)
	rows := make([]StoreReport, 0, total)
	done := 0
	for report := range results {
		rows = append(rows, report)
		done++
		if reportID != "" && (done%stride == 0 || done == total) {
			pct := float64(done) / float64(total) * 100
			if err := db.SetProgress(ctx, reportID, pct); err != nil {
				e.logger.Warn("progress update failed", "report_id", reportID, "error", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("report canceled: %w", err)
	}

	// Completion order depends on worker scheduling; the output does not.
	sort.Slice(rows, func(i, j int) bool { return rows[i].StoreID < rows[j].StoreID })

	if err := WriteCSV(csvPath, rows); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	e.logger.Info("report finished",
		"report_id", reportID, "stores", total, "elapsed", time.Since(start))
	return nil
}

// progressStride is max(1, min(5, total/20)): chatty enough for small
// fleets, quiet enough for large ones.
func progressStride(total int) int {
	stride := total / 20
	if stride > 5 {
		stride = 5
	}
	if stride < 1 {
		stride = 1
	}
	return stride
}
