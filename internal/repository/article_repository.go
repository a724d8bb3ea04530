package repository

import (
	"context"

	"github.com/helixir/arxiv-collector/internal/domain"
)

// ArticleRepository persists normalized articles and the fetch audit log.
type ArticleRepository interface {
	// UpsertArticles inserts or overwrites each article keyed on ExternalID,
	// stamping last_fetched_at with the current time. Records are written in
	// order inside one transaction. A record that violates a store constraint
	// is skipped and reported in UpsertResult.Conflicts; any other fault
	// aborts the batch and nothing from it is committed.
	UpsertArticles(ctx context.Context, articles []domain.Article) (UpsertResult, error)

	// GetArticle returns the stored article with the given identifier.
	// Returns domain.ErrNotFound if no such article exists.
	GetArticle(ctx context.Context, externalID string) (*domain.Article, error)

	// QueryArticles returns articles matching every set field of the filter,
	// most recently published first.
	QueryArticles(ctx context.Context, filter ArticleFilter) ([]domain.Article, error)

	// AppendFetchLog appends an audit entry and sets its ID.
	AppendFetchLog(ctx context.Context, entry *domain.FetchAuditEntry) error

	// ListFetchLog returns the most recent audit entries, newest first.
	ListFetchLog(ctx context.Context, limit int) ([]domain.FetchAuditEntry, error)

	// Stats aggregates the corpus. yearLimit bounds the per-year breakdown
	// to the most recent years.
	Stats(ctx context.Context, yearLimit int) (*domain.CollectionStats, error)
}

// UpsertResult reports the outcome of one UpsertArticles batch.
type UpsertResult struct {
	// Written counts records inserted or overwritten.
	Written int

	// Conflicts holds one error per skipped record.
	Conflicts []*domain.IntegrityConflictError
}

// ArticleFilter specifies criteria for QueryArticles. Zero values mean
// "no constraint".
type ArticleFilter struct {
	// Keyword is matched case-insensitively as a substring of the title,
	// abstract or author list.
	Keyword string

	// Category must equal the stored category.
	Category string

	// Year must equal the UTC year of published_at.
	Year int

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *ArticleFilter) Validate() error {
	if f.Year < 0 {
		return domain.NewValidationError("year", "must not be negative")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
