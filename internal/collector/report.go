package collector

import (
	"time"

	"github.com/google/uuid"

	"github.com/helixir/arxiv-collector/internal/domain"
)

// Collection modes, used for logging, metrics and published events.
const (
	ModeUpdate   = "update"
	ModeBackfill = "backfill"
)

// CategoryResult is the outcome of one category fetch.
type CategoryResult struct {
	Category    string
	Written     int
	Accepted    int
	OutOfWindow int
	Malformed   int
	Conflicts   int
	Duration    time.Duration
	Err         error
}

// Failed reports whether the category fetch was aborted.
func (r CategoryResult) Failed() bool {
	return r.Err != nil
}

// RunReport summarizes one pass over the configured categories.
type RunReport struct {
	RunID      uuid.UUID
	Mode       string
	Window     domain.Window
	Categories []CategoryResult
}

// Written totals the records written across categories.
func (r *RunReport) Written() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Written
	}
	return total
}

// FailedCategories lists the categories whose fetch was aborted.
func (r *RunReport) FailedCategories() []string {
	var failed []string
	for _, c := range r.Categories {
		if c.Failed() {
			failed = append(failed, c.Category)
		}
	}
	return failed
}

// BackfillReport holds one RunReport per year, in ascending year order.
type BackfillReport struct {
	RunID     uuid.UUID
	StartYear int
	EndYear   int
	Years     []RunReport
}

// Written totals the records written across all years.
func (r *BackfillReport) Written() int {
	total := 0
	for i := range r.Years {
		total += r.Years[i].Written()
	}
	return total
}
