// Package query is the read side of the collector: filtered, ordered,
// bounded reads over the record store. It never writes.
package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/observability"
	"github.com/helixir/arxiv-collector/internal/repository"
)

// Query kinds for metrics.
const (
	KindList     = "list"
	KindDetail   = "detail"
	KindStats    = "stats"
	KindFetchLog = "fetch_log"
)

// StatsYears is how many recent years Stats breaks down.
const StatsYears = 10

// Filter holds the optional, AND-combined read criteria.
type Filter struct {
	Keyword  string `json:"keyword" validate:"max=200"`
	Category string `json:"category" validate:"max=64"`
	Year     int    `json:"year" validate:"omitempty,min=1000,max=9999"`
	Limit    int    `json:"limit" validate:"gte=0"`
	Offset   int    `json:"offset" validate:"gte=0"`
}

// Config bounds result sizes.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// Engine executes reads against the store.
type Engine struct {
	repo     repository.ArticleRepository
	validate *validator.Validate
	cfg      Config
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewEngine creates a query engine. metrics may be nil.
func NewEngine(repo repository.ArticleRepository, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("article repository is required")
	}
	if cfg.MaxLimit <= 0 {
		return nil, domain.NewValidationError("max_limit", "must be positive")
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		return nil, domain.NewValidationError("default_limit", fmt.Sprintf("must be between 1 and %d", cfg.MaxLimit))
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Engine{
		repo:     repo,
		validate: v,
		cfg:      cfg,
		metrics:  metrics,
		logger:   observability.WithComponent(logger, "query"),
	}, nil
}

// ParseFilter builds a Filter from raw text inputs, as received from a
// command line or query string. Empty strings mean "no constraint"; an empty
// limit means the default. A supplied year outside 1000..9999 or a supplied
// limit outside 1..max is rejected rather than ignored.
func (e *Engine) ParseFilter(keyword, category, year, limit string) (Filter, error) {
	f := Filter{
		Keyword:  strings.TrimSpace(keyword),
		Category: strings.TrimSpace(category),
	}

	if s := strings.TrimSpace(year); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			e.recordRejected()
			return Filter{}, domain.NewValidationError("year", fmt.Sprintf("%q is not a four-digit year", s))
		}
		if y < 1000 || y > 9999 {
			e.recordRejected()
			return Filter{}, domain.NewValidationError("year", fmt.Sprintf("%q is not a four-digit year", s))
		}
		f.Year = y
	}
	if s := strings.TrimSpace(limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			e.recordRejected()
			return Filter{}, domain.NewValidationError("limit", fmt.Sprintf("%q is not a number", s))
		}
		if n < 1 || n > e.cfg.MaxLimit {
			e.recordRejected()
			return Filter{}, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", e.cfg.MaxLimit))
		}
		f.Limit = n
	}

	if err := e.normalize(&f); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Query returns matching articles, most recently published first.
func (e *Engine) Query(ctx context.Context, f Filter) ([]domain.Article, error) {
	if err := e.normalize(&f); err != nil {
		return nil, err
	}

	start := time.Now()
	articles, err := e.repo.QueryArticles(ctx, repository.ArticleFilter{
		Keyword:  f.Keyword,
		Category: f.Category,
		Year:     f.Year,
		Limit:    f.Limit,
		Offset:   f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	e.recordQuery(KindList, start)

	e.logger.Debug().
		Str("keyword", f.Keyword).
		Str("category", f.Category).
		Int("year", f.Year).
		Int("limit", f.Limit).
		Int("results", len(articles)).
		Msg("query served")

	return articles, nil
}

var versionSuffix = regexp.MustCompile(`v\d+$`)

// NormalizeID strips an "arXiv:" prefix and a trailing version suffix, so
// "arXiv:2501.00001v3" and "2501.00001" name the same record.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 6 && strings.EqualFold(id[:6], "arxiv:") {
		id = id[6:]
	}
	return versionSuffix.ReplaceAllString(id, "")
}

// Detail returns one article. Unknown identifiers yield domain.ErrNotFound.
func (e *Engine) Detail(ctx context.Context, externalID string) (*domain.Article, error) {
	id := NormalizeID(externalID)
	if id == "" {
		e.recordRejected()
		return nil, domain.NewValidationError("id", "article identifier is required")
	}

	start := time.Now()
	article, err := e.repo.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	e.recordQuery(KindDetail, start)
	return article, nil
}

// Stats aggregates the corpus: totals by category, the most recent years
// and the latest article.
func (e *Engine) Stats(ctx context.Context) (*domain.CollectionStats, error) {
	start := time.Now()
	stats, err := e.repo.Stats(ctx, StatsYears)
	if err != nil {
		return nil, fmt.Errorf("collection stats: %w", err)
	}
	e.recordQuery(KindStats, start)
	return stats, nil
}

// FetchLog returns recent audit entries, newest first.
func (e *Engine) FetchLog(ctx context.Context, limit int) ([]domain.FetchAuditEntry, error) {
	if limit == 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit < 0 || limit > e.cfg.MaxLimit {
		e.recordRejected()
		return nil, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", e.cfg.MaxLimit))
	}

	start := time.Now()
	entries, err := e.repo.ListFetchLog(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list fetch log: %w", err)
	}
	e.recordQuery(KindFetchLog, start)
	return entries, nil
}

// normalize validates f and applies the default limit.
func (e *Engine) normalize(f *Filter) error {
	if err := e.validate.Struct(f); err != nil {
		e.recordRejected()
		return toValidationError(err)
	}
	if f.Limit == 0 {
		f.Limit = e.cfg.DefaultLimit
	}
	if f.Limit > e.cfg.MaxLimit {
		e.recordRejected()
		return domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", e.cfg.MaxLimit))
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("filter", err.Error())
	}
	fe := verrs[0]
	msg := "failed " + fe.Tag()
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return domain.NewValidationError(fe.Field(), msg)
}

func (e *Engine) recordQuery(kind string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordQuery(kind, time.Since(start).Seconds())
	}
}

func (e *Engine) recordRejected() {
	if e.metrics != nil {
		e.metrics.RecordQueryRejected()
	}
}
