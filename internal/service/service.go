// Package service is the single entry point presentation surfaces use: it
// pairs the collector and query engine and enforces the single-writer rule
// for collection runs.
package service

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-collector/internal/collector"
	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/observability"
	"github.com/helixir/arxiv-collector/internal/query"
	"github.com/helixir/arxiv-collector/internal/traversal"
)

// Collector runs write passes over the store.
type Collector interface {
	RunIncrementalUpdate(ctx context.Context, daysBack int) (*collector.RunReport, error)
	RunBulkBackfill(ctx context.Context, startYear int) (*collector.BackfillReport, error)
}

// Reader serves read-only views of the store.
type Reader interface {
	ParseFilter(keyword, category, year, limit string) (query.Filter, error)
	Query(ctx context.Context, f query.Filter) ([]domain.Article, error)
	Detail(ctx context.Context, externalID string) (*domain.Article, error)
	Stats(ctx context.Context) (*domain.CollectionStats, error)
	FetchLog(ctx context.Context, limit int) ([]domain.FetchAuditEntry, error)
}

// Service is the facade over collection and queries.
type Service struct {
	collector Collector
	reader    Reader
	running   atomic.Bool
	logger    zerolog.Logger
}

// New creates a Service.
func New(c Collector, r Reader, logger zerolog.Logger) *Service {
	return &Service{
		collector: c,
		reader:    r,
		logger:    observability.WithComponent(logger, "service"),
	}
}

// CollectionRunning reports whether a collection run holds the store.
func (s *Service) CollectionRunning() bool {
	return s.running.Load()
}

// RunIncrementalUpdate runs an update unless another collection is in
// progress, in which case it returns domain.ErrCollectionInProgress.
func (s *Service) RunIncrementalUpdate(ctx context.Context, daysBack int) (*collector.RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrCollectionInProgress
	}
	defer s.running.Store(false)

	return s.collector.RunIncrementalUpdate(ctx, daysBack)
}

// RunBulkBackfill runs a backfill under the same single-writer rule.
func (s *Service) RunBulkBackfill(ctx context.Context, startYear int) (*collector.BackfillReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrCollectionInProgress
	}
	defer s.running.Store(false)

	return s.collector.RunBulkBackfill(ctx, startYear)
}

// UpdateResult is the outcome of a background update.
type UpdateResult struct {
	Report *collector.RunReport
	Err    error
}

// StartIncrementalUpdate claims the store and runs the update in the
// background. It returns domain.ErrCollectionInProgress without starting
// anything when another run holds the store. The returned channel receives
// exactly one result.
func (s *Service) StartIncrementalUpdate(ctx context.Context, daysBack int) (<-chan UpdateResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrCollectionInProgress
	}

	done := make(chan UpdateResult, 1)
	go func() {
		defer s.running.Store(false)
		report, err := s.collector.RunIncrementalUpdate(ctx, daysBack)
		if err != nil {
			s.logger.Error().Err(err).Int("days_back", daysBack).Msg("background update failed")
		}
		done <- UpdateResult{Report: report, Err: err}
	}()
	return done, nil
}

// ParseFilter validates raw filter inputs.
func (s *Service) ParseFilter(keyword, category, year, limit string) (query.Filter, error) {
	return s.reader.ParseFilter(keyword, category, year, limit)
}

// Query returns articles matching f, newest first.
func (s *Service) Query(ctx context.Context, f query.Filter) ([]domain.Article, error) {
	return s.reader.Query(ctx, f)
}

// Browse runs a query and returns a cursor over its results.
func (s *Service) Browse(ctx context.Context, f query.Filter) (*traversal.Cursor[domain.Article], error) {
	articles, err := s.reader.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	return traversal.New(articles), nil
}

// ArticleDetail returns one article or domain.ErrNotFound.
func (s *Service) ArticleDetail(ctx context.Context, externalID string) (*domain.Article, error) {
	return s.reader.Detail(ctx, externalID)
}

// Stats returns corpus aggregates.
func (s *Service) Stats(ctx context.Context) (*domain.CollectionStats, error) {
	return s.reader.Stats(ctx)
}

// FetchLog returns recent audit entries.
func (s *Service) FetchLog(ctx context.Context, limit int) ([]domain.FetchAuditEntry, error) {
	return s.reader.FetchLog(ctx, limit)
}
