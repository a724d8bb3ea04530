package collector

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/events"
	"github.com/helixir/arxiv-collector/internal/observability"
	"github.com/helixir/arxiv-collector/internal/papersources"
	"github.com/helixir/arxiv-collector/internal/papersources/arxiv"
	"github.com/helixir/arxiv-collector/internal/repository"
)

// FirstArchiveYear is the earliest year a backfill may start from.
const FirstArchiveYear = 1991

// Config controls what a Collector fetches and how politely.
type Config struct {
	Categories       []string
	UpdatePageSize   int
	BackfillPageSize int
	CategoryDelay    time.Duration
	YearDelay        time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Categories) == 0 {
		return domain.NewValidationError("categories", "at least one category is required")
	}
	for _, cat := range c.Categories {
		if cat == "" {
			return domain.NewValidationError("categories", "category must not be empty")
		}
	}
	if c.UpdatePageSize <= 0 || c.UpdatePageSize > arxiv.MaxPageSize {
		return domain.NewValidationError("update_page_size", fmt.Sprintf("must be between 1 and %d", arxiv.MaxPageSize))
	}
	if c.BackfillPageSize <= 0 || c.BackfillPageSize > arxiv.MaxPageSize {
		return domain.NewValidationError("backfill_page_size", fmt.Sprintf("must be between 1 and %d", arxiv.MaxPageSize))
	}
	if c.CategoryDelay < 0 || c.YearDelay < 0 {
		return domain.NewValidationError("delay", "must not be negative")
	}
	return nil
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Collector.
type Option func(*Collector)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithSleep overrides how politeness delays are observed.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Collector) { c.sleep = sleep }
}

// WithPublisher publishes one event per audit entry.
func WithPublisher(p events.Publisher) Option {
	return func(c *Collector) { c.publisher = p }
}

// WithMetrics records run and fetch metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// Collector runs incremental updates and backfills.
type Collector struct {
	fetcher   papersources.PageFetcher
	repo      repository.ArticleRepository
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
	cfg       Config
	now       func() time.Time
	sleep     SleepFunc
}

// New creates a Collector.
func New(fetcher papersources.PageFetcher, repo repository.ArticleRepository, cfg Config, logger zerolog.Logger, opts ...Option) (*Collector, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("article repository is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Collector{
		fetcher:   fetcher,
		repo:      repo,
		publisher: events.NopPublisher{},
		logger:    observability.WithComponent(logger, "collector"),
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Categories returns the configured category set.
func (c *Collector) Categories() []string {
	return slices.Clone(c.cfg.Categories)
}

// RunIncrementalUpdate fetches one page per category and keeps the entries
// published in the last daysBack days.
func (c *Collector) RunIncrementalUpdate(ctx context.Context, daysBack int) (*RunReport, error) {
	if daysBack < 1 {
		return nil, domain.NewValidationError("days", "must be at least 1")
	}

	now := c.now().UTC()
	report := &RunReport{
		RunID:  uuid.New(),
		Mode:   ModeUpdate,
		Window: domain.LastDays(now, daysBack),
	}

	logger := observability.WithRunContext(c.logger, report.RunID.String(), ModeUpdate)
	ctx = observability.WithRunID(ctx, report.RunID.String())
	c.recordRunStarted(ModeUpdate)

	logger.Info().
		Time("window_start", report.Window.Start).
		Time("window_end", report.Window.End).
		Strs("categories", c.cfg.Categories).
		Msg("incremental update started")

	err := c.runCategories(ctx, logger, report, c.cfg.UpdatePageSize)

	logger.Info().
		Int("written", report.Written()).
		Strs("failed_categories", report.FailedCategories()).
		Msg("incremental update finished")

	return report, err
}

// RunBulkBackfill walks from startYear to the current year, fetching one
// page per category for each calendar year.
func (c *Collector) RunBulkBackfill(ctx context.Context, startYear int) (*BackfillReport, error) {
	now := c.now().UTC()
	currentYear := now.Year()
	if startYear < FirstArchiveYear || startYear > currentYear {
		return nil, domain.NewValidationError("year",
			fmt.Sprintf("must be between %d and %d", FirstArchiveYear, currentYear))
	}

	report := &BackfillReport{
		RunID:     uuid.New(),
		StartYear: startYear,
		EndYear:   currentYear,
	}

	logger := observability.WithRunContext(c.logger, report.RunID.String(), ModeBackfill)
	ctx = observability.WithRunID(ctx, report.RunID.String())
	c.recordRunStarted(ModeBackfill)

	logger.Info().
		Int("start_year", startYear).
		Int("end_year", currentYear).
		Strs("categories", c.cfg.Categories).
		Msg("backfill started")

	for year := startYear; year <= currentYear; year++ {
		yearReport := RunReport{
			RunID:  report.RunID,
			Mode:   ModeBackfill,
			Window: domain.YearWindow(year, now),
		}

		err := c.runCategories(ctx, logger.With().Int("year", year).Logger(), &yearReport, c.cfg.BackfillPageSize)
		report.Years = append(report.Years, yearReport)
		if err != nil {
			return report, err
		}

		logger.Info().
			Int("year", year).
			Int("written", yearReport.Written()).
			Msg("backfill year finished")

		if err := c.sleep(ctx, c.cfg.YearDelay); err != nil {
			return report, err
		}
	}

	logger.Info().Int("written", report.Written()).Msg("backfill finished")
	return report, nil
}

// runCategories fetches every configured category into report. It stops
// early only when ctx is done.
func (c *Collector) runCategories(ctx context.Context, logger zerolog.Logger, report *RunReport, pageSize int) error {
	for _, category := range c.cfg.Categories {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := c.collectCategory(ctx, logger, report, category, pageSize)
		report.Categories = append(report.Categories, result)

		if err := c.sleep(ctx, c.cfg.CategoryDelay); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) collectCategory(ctx context.Context, logger zerolog.Logger, report *RunReport, category string, pageSize int) CategoryResult {
	logger = observability.WithFetchContext(logger, category, report.Window.Start, report.Window.End)
	started := c.now()
	result := CategoryResult{Category: category}

	err := c.fetchAndStore(ctx, logger, report.Window, category, pageSize, &result)
	result.Duration = c.now().Sub(started)

	entry := domain.FetchAuditEntry{
		RunID:     report.RunID,
		Category:  category,
		FetchedAt: c.now().UTC(),
		Status:    domain.FetchStatusOK,
	}

	if err != nil {
		result.Err = err
		entry.Status = domain.FetchStatusFailed
		entry.Error = err.Error()
		if c.metrics != nil {
			c.metrics.RecordCategoryFailed(category, result.Duration.Seconds())
		}
		logger.Error().Err(err).Msg("category fetch failed")
	} else {
		entry.ArticlesCount = result.Written
		entry.MalformedCount = result.Malformed
		if c.metrics != nil {
			c.metrics.RecordCategoryFetched(category, result.Duration.Seconds(), result.Written)
		}
		logger.Info().
			Int("written", result.Written).
			Int("accepted", result.Accepted).
			Int("out_of_window", result.OutOfWindow).
			Int("malformed", result.Malformed).
			Int("conflicts", result.Conflicts).
			Dur("duration", result.Duration).
			Msg("category fetched")
	}

	if err := c.repo.AppendFetchLog(ctx, &entry); err != nil {
		logger.Error().Err(err).Msg("failed to append fetch log")
	}

	if err := c.publisher.Publish(ctx, events.NewFetchCompleted(report.Mode, entry)); err != nil {
		logger.Warn().Err(err).Msg("failed to publish fetch event")
	}

	return result
}

func (c *Collector) fetchAndStore(ctx context.Context, logger zerolog.Logger, window domain.Window, category string, pageSize int, result *CategoryResult) error {
	payload, err := c.fetcher.FetchPage(ctx, papersources.PageQuery{
		Category:   category,
		Start:      0,
		MaxResults: pageSize,
	})
	if err != nil {
		return err
	}

	page, err := arxiv.ParsePage(payload, category, window)
	if err != nil {
		return fmt.Errorf("parse %s page: %w", category, err)
	}

	summary := page.Summary()
	result.Accepted = summary.Accepted
	result.OutOfWindow = summary.OutOfWindow
	result.Malformed = summary.Malformed
	if summary.Malformed > 0 || summary.OutOfWindow > 0 {
		logger.Debug().
			Int("malformed", summary.Malformed).
			Int("out_of_window", summary.OutOfWindow).
			Int("total_results", summary.TotalResults).
			Msg("entries dropped by parser")
	}
	if c.metrics != nil {
		c.metrics.RecordEntriesDropped(observability.DropReasonMalformed, summary.Malformed)
		c.metrics.RecordEntriesDropped(observability.DropReasonOutOfWindow, summary.OutOfWindow)
	}

	articles := slices.Collect(page.Articles())
	upserted, err := c.repo.UpsertArticles(ctx, articles)
	if err != nil {
		return fmt.Errorf("store %s articles: %w", category, err)
	}

	result.Written = upserted.Written
	result.Conflicts = len(upserted.Conflicts)
	for _, conflict := range upserted.Conflicts {
		articleLogger := observability.WithArticleContext(logger, conflict.ExternalID)
		articleLogger.
			Warn().
			Err(conflict.Cause).
			Msg("article skipped by store")
	}
	if c.metrics != nil {
		c.metrics.RecordIntegrityConflicts(len(upserted.Conflicts))
	}

	return nil
}

func (c *Collector) recordRunStarted(mode string) {
	if c.metrics != nil {
		c.metrics.RecordRunStarted(mode)
	}
}

// sleepContext waits for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsCancelled reports whether err stems from context cancellation or deadline.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
