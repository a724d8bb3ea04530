package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/arxiv-collector/internal/database"
	"github.com/helixir/arxiv-collector/internal/domain"
)

// Compile-time interface verification.
var _ ArticleRepository = (*PgArticleRepository)(nil)

// pgIntegrityClass is the SQLSTATE class for integrity constraint violations.
const pgIntegrityClass = "23"

const pgUpsertSavepoint = "article_upsert"

const pgArticleColumns = `external_id, title, abstract, authors, category,
	published_at, updated_at, primary_link, asset_link, last_fetched_at`

// PgxPool is the subset of *pgxpool.Pool (and *database.DB) the PostgreSQL
// repository needs.
type PgxPool interface {
	DBTX
	database.TxBeginner
}

// PgArticleRepository is a PostgreSQL implementation of ArticleRepository.
type PgArticleRepository struct {
	db  PgxPool
	now func() time.Time
}

// NewPgArticleRepository creates a new PostgreSQL article repository.
func NewPgArticleRepository(db PgxPool) *PgArticleRepository {
	return &PgArticleRepository{db: db, now: time.Now}
}

// UpsertArticles writes the batch in one transaction. Each record runs under
// a savepoint so an integrity violation discards only that record.
func (r *PgArticleRepository) UpsertArticles(ctx context.Context, articles []domain.Article) (UpsertResult, error) {
	if len(articles) == 0 {
		return UpsertResult{}, nil
	}

	var result UpsertResult
	err := database.RunInTransaction(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		result, err = r.upsertInTx(ctx, tx, articles)
		return err
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

func (r *PgArticleRepository) upsertInTx(ctx context.Context, tx pgx.Tx, articles []domain.Article) (UpsertResult, error) {
	query := `
		INSERT INTO articles (
			external_id, title, abstract, authors, category,
			published_at, published_year, updated_at, primary_link, asset_link,
			last_fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_id) DO UPDATE SET
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			authors = EXCLUDED.authors,
			category = EXCLUDED.category,
			published_at = EXCLUDED.published_at,
			published_year = EXCLUDED.published_year,
			updated_at = EXCLUDED.updated_at,
			primary_link = EXCLUDED.primary_link,
			asset_link = EXCLUDED.asset_link,
			last_fetched_at = EXCLUDED.last_fetched_at`

	var result UpsertResult
	fetchedAt := r.now().UTC()

	for i := range articles {
		a := &articles[i]
		if err := a.Validate(); err != nil {
			result.Conflicts = append(result.Conflicts, domain.NewIntegrityConflictError(a.ExternalID, err))
			continue
		}

		updatedAt := a.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = a.PublishedAt
		}

		if _, err := tx.Exec(ctx, "SAVEPOINT "+pgUpsertSavepoint); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to create savepoint: %w", err)
		}

		_, err := tx.Exec(ctx, query,
			a.ExternalID,
			a.Title,
			a.Abstract,
			a.JoinedAuthors(),
			a.Category,
			a.PublishedAt.UTC(),
			a.PublishedYear(),
			updatedAt.UTC(),
			a.PrimaryLink,
			a.AssetLink,
			fetchedAt,
		)
		if err != nil {
			if !isPgIntegrityViolation(err) {
				return UpsertResult{}, fmt.Errorf("failed to upsert article %s: %w", a.ExternalID, err)
			}
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgUpsertSavepoint); rbErr != nil {
				return UpsertResult{}, fmt.Errorf("failed to roll back savepoint: %w", rbErr)
			}
			result.Conflicts = append(result.Conflicts, domain.NewIntegrityConflictError(a.ExternalID, err))
			continue
		}

		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+pgUpsertSavepoint); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to release savepoint: %w", err)
		}
		a.LastFetchedAt = fetchedAt
		result.Written++
	}

	return result, nil
}

// GetArticle retrieves an article by its external identifier.
func (r *PgArticleRepository) GetArticle(ctx context.Context, externalID string) (*domain.Article, error) {
	if externalID == "" {
		return nil, domain.NewValidationError("external_id", "external ID is required")
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+pgArticleColumns+` FROM articles WHERE external_id = $1`, externalID)
	article, err := scanPgArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", externalID)
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// QueryArticles returns articles matching the filter.
func (r *PgArticleRepository) QueryArticles(ctx context.Context, filter ArticleFilter) ([]domain.Article, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Keyword != "" {
		// Backslash is the default LIKE escape character in PostgreSQL.
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%d OR abstract ILIKE $%d OR authors ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, containsPattern(filter.Keyword))
		argIndex++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}
	if filter.Year != 0 {
		conditions = append(conditions, fmt.Sprintf("published_year = $%d", argIndex))
		args = append(args, filter.Year)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM articles
		%s
		ORDER BY published_at DESC, seq ASC
		LIMIT $%d OFFSET $%d`,
		pgArticleColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.Article, 0, min(filter.Limit, 64))
	for rows.Next() {
		article, err := scanPgArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}

	return articles, nil
}

// AppendFetchLog appends an audit entry.
func (r *PgArticleRepository) AppendFetchLog(ctx context.Context, entry *domain.FetchAuditEntry) error {
	if entry == nil {
		return domain.NewValidationError("entry", "audit entry cannot be nil")
	}
	if entry.Category == "" {
		return domain.NewValidationError("category", "category is required")
	}
	if entry.Status == "" {
		entry.Status = domain.FetchStatusOK
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = r.now().UTC()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO fetch_log (run_id, category, fetched_at, articles_count, malformed_count, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		entry.RunID,
		entry.Category,
		entry.FetchedAt,
		entry.ArticlesCount,
		entry.MalformedCount,
		string(entry.Status),
		entry.Error,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append fetch log: %w", err)
	}
	return nil
}

// ListFetchLog returns the newest audit entries first.
func (r *PgArticleRepository) ListFetchLog(ctx context.Context, limit int) ([]domain.FetchAuditEntry, error) {
	offset := 0
	applyPaginationDefaults(&limit, &offset)

	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, category, fetched_at, articles_count, malformed_count, status, error
		FROM fetch_log
		ORDER BY fetched_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch log: %w", err)
	}
	defer rows.Close()

	var entries []domain.FetchAuditEntry
	for rows.Next() {
		var e domain.FetchAuditEntry
		var status string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Category, &e.FetchedAt,
			&e.ArticlesCount, &e.MalformedCount, &status, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan fetch log entry: %w", err)
		}
		e.FetchedAt = e.FetchedAt.UTC()
		e.Status = domain.FetchStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch log: %w", err)
	}

	return entries, nil
}

// Stats aggregates the stored corpus.
func (r *PgArticleRepository) Stats(ctx context.Context, yearLimit int) (*domain.CollectionStats, error) {
	if yearLimit <= 0 {
		yearLimit = defaultStatsYears
	}

	stats := &domain.CollectionStats{}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM articles`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	catRows, err := r.db.Query(ctx, `
		SELECT category, COUNT(*) FROM articles
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	for catRows.Next() {
		var c domain.CategoryCount
		if err := catRows.Scan(&c.Category, &c.Count); err != nil {
			catRows.Close()
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.ByCategory = append(stats.ByCategory, c)
	}
	catRows.Close()
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	yearRows, err := r.db.Query(ctx, `
		SELECT published_year, COUNT(*) FROM articles
		GROUP BY published_year
		ORDER BY published_year DESC
		LIMIT $1`, yearLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to count by year: %w", err)
	}
	for yearRows.Next() {
		var y domain.YearCount
		if err := yearRows.Scan(&y.Year, &y.Count); err != nil {
			yearRows.Close()
			return nil, fmt.Errorf("failed to scan year count: %w", err)
		}
		stats.ByYear = append(stats.ByYear, y)
	}
	yearRows.Close()
	if err := yearRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating year counts: %w", err)
	}

	row := r.db.QueryRow(ctx, `SELECT `+pgArticleColumns+` FROM articles
		ORDER BY published_at DESC, seq ASC LIMIT 1`)
	latest, err := scanPgArticle(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get latest article: %w", err)
	default:
		stats.Latest = latest
	}

	return stats, nil
}

func scanPgArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	var authors string
	if err := row.Scan(&a.ExternalID, &a.Title, &a.Abstract, &authors, &a.Category,
		&a.PublishedAt, &a.UpdatedAt, &a.PrimaryLink, &a.AssetLink, &a.LastFetchedAt); err != nil {
		return nil, err
	}
	a.PublishedAt = a.PublishedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.LastFetchedAt = a.LastFetchedAt.UTC()
	a.Authors = domain.SplitAuthors(authors)
	return &a, nil
}

func isPgIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, pgIntegrityClass)
}
