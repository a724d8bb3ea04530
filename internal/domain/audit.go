package domain

import (
	"time"

	"github.com/google/uuid"
)

// FetchStatus is the outcome of one per-category fetch attempt.
type FetchStatus string

const (
	FetchStatusOK     FetchStatus = "ok"
	FetchStatusFailed FetchStatus = "failed"
)

// FetchAuditEntry is an append-only record of one (category, run) fetch.
// MalformedCount carries the entries the parser dropped for missing a
// mandatory field.
type FetchAuditEntry struct {
	ID             int64
	RunID          uuid.UUID
	Category       string
	FetchedAt      time.Time
	ArticlesCount  int
	MalformedCount int
	Status         FetchStatus
	Error          string
}

// CategoryCount is one row of the per-category aggregate.
type CategoryCount struct {
	Category string `yaml:"category" json:"category"`
	Count    int64  `yaml:"count" json:"count"`
}

// YearCount is one row of the per-year aggregate.
type YearCount struct {
	Year  int   `yaml:"year" json:"year"`
	Count int64 `yaml:"count" json:"count"`
}

// CollectionStats summarizes the stored corpus.
type CollectionStats struct {
	Total      int64
	ByCategory []CategoryCount
	ByYear     []YearCount
	Latest     *Article
}
