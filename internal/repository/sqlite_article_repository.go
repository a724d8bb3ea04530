package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/helixir/arxiv-collector/internal/domain"
)

// Compile-time interface verification.
var _ ArticleRepository = (*SQLiteArticleRepository)(nil)

// sqliteFoldFunction lowercases text with Unicode case mapping. SQLite's
// own LIKE only folds ASCII letters.
const sqliteFoldFunction = "casefold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteFoldFunction, 1, foldValue)
}

func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

const sqliteArticleColumns = `external_id, title, abstract, authors, category,
	published_at, updated_at, primary_link, asset_link, last_fetched_at`

// SQLiteArticleRepository is the embedded implementation of ArticleRepository.
type SQLiteArticleRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteArticleRepository creates a repository over a database opened
// with database.OpenSQLite and migrated to the current schema.
func NewSQLiteArticleRepository(db *sql.DB) *SQLiteArticleRepository {
	return &SQLiteArticleRepository{db: db, now: time.Now}
}

// UpsertArticles writes the batch in one transaction, skipping records that
// violate a constraint.
func (r *SQLiteArticleRepository) UpsertArticles(ctx context.Context, articles []domain.Article) (UpsertResult, error) {
	var result UpsertResult
	if len(articles) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (
			external_id, title, abstract, authors, category,
			published_at, published_year, updated_at, primary_link, asset_link,
			last_fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			authors = excluded.authors,
			category = excluded.category,
			published_at = excluded.published_at,
			published_year = excluded.published_year,
			updated_at = excluded.updated_at,
			primary_link = excluded.primary_link,
			asset_link = excluded.asset_link,
			last_fetched_at = excluded.last_fetched_at`)
	if err != nil {
		return result, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

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

		_, err := stmt.ExecContext(ctx,
			a.ExternalID,
			a.Title,
			a.Abstract,
			a.JoinedAuthors(),
			a.Category,
			formatTime(a.PublishedAt),
			a.PublishedYear(),
			formatTime(updatedAt),
			a.PrimaryLink,
			a.AssetLink,
			formatTime(fetchedAt),
		)
		if err != nil {
			if isSQLiteConstraint(err) {
				result.Conflicts = append(result.Conflicts, domain.NewIntegrityConflictError(a.ExternalID, err))
				continue
			}
			return UpsertResult{}, fmt.Errorf("failed to upsert article %s: %w", a.ExternalID, err)
		}
		a.LastFetchedAt = fetchedAt
		result.Written++
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit upsert batch: %w", err)
	}
	return result, nil
}

// GetArticle retrieves an article by its external identifier.
func (r *SQLiteArticleRepository) GetArticle(ctx context.Context, externalID string) (*domain.Article, error) {
	if externalID == "" {
		return nil, domain.NewValidationError("external_id", "external ID is required")
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteArticleColumns+` FROM articles WHERE external_id = ?`, externalID)
	article, err := scanSQLiteArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", externalID)
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// QueryArticles returns articles matching the filter.
func (r *SQLiteArticleRepository) QueryArticles(ctx context.Context, filter ArticleFilter) ([]domain.Article, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var conditions []string
	var args []interface{}

	if filter.Keyword != "" {
		conditions = append(conditions,
			`(casefold(title) LIKE ? ESCAPE '\' OR casefold(abstract) LIKE ? ESCAPE '\' OR casefold(authors) LIKE ? ESCAPE '\')`)
		pattern := containsPattern(strings.ToLower(filter.Keyword))
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Year != 0 {
		conditions = append(conditions, "published_year = ?")
		args = append(args, filter.Year)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM articles %s
		ORDER BY published_at DESC, rowid ASC
		LIMIT ? OFFSET ?`, sqliteArticleColumns, whereClause)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.Article, 0, min(filter.Limit, 64))
	for rows.Next() {
		article, err := scanSQLiteArticle(rows)
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
func (r *SQLiteArticleRepository) AppendFetchLog(ctx context.Context, entry *domain.FetchAuditEntry) error {
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

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO fetch_log (run_id, category, fetched_at, articles_count, malformed_count, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID.String(),
		entry.Category,
		formatTime(entry.FetchedAt),
		entry.ArticlesCount,
		entry.MalformedCount,
		string(entry.Status),
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append fetch log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read fetch log id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListFetchLog returns the newest audit entries first.
func (r *SQLiteArticleRepository) ListFetchLog(ctx context.Context, limit int) ([]domain.FetchAuditEntry, error) {
	offset := 0
	applyPaginationDefaults(&limit, &offset)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, category, fetched_at, articles_count, malformed_count, status, error
		FROM fetch_log
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch log: %w", err)
	}
	defer rows.Close()

	var entries []domain.FetchAuditEntry
	for rows.Next() {
		var (
			e         domain.FetchAuditEntry
			runID     string
			fetchedAt string
			status    string
		)
		if err := rows.Scan(&e.ID, &runID, &e.Category, &fetchedAt,
			&e.ArticlesCount, &e.MalformedCount, &status, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan fetch log entry: %w", err)
		}
		if e.RunID, err = uuid.Parse(runID); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
		}
		if e.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, err
		}
		e.Status = domain.FetchStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch log: %w", err)
	}

	return entries, nil
}

// Stats aggregates the stored corpus.
func (r *SQLiteArticleRepository) Stats(ctx context.Context, yearLimit int) (*domain.CollectionStats, error) {
	if yearLimit <= 0 {
		yearLimit = defaultStatsYears
	}

	stats := &domain.CollectionStats{}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	catRows, err := r.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM articles
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var c domain.CategoryCount
		if err := catRows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.ByCategory = append(stats.ByCategory, c)
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	yearRows, err := r.db.QueryContext(ctx, `
		SELECT published_year, COUNT(*) FROM articles
		GROUP BY published_year
		ORDER BY published_year DESC
		LIMIT ?`, yearLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to count by year: %w", err)
	}
	defer yearRows.Close()
	for yearRows.Next() {
		var y domain.YearCount
		if err := yearRows.Scan(&y.Year, &y.Count); err != nil {
			return nil, fmt.Errorf("failed to scan year count: %w", err)
		}
		stats.ByYear = append(stats.ByYear, y)
	}
	if err := yearRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating year counts: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteArticleColumns+` FROM articles
		ORDER BY published_at DESC, rowid ASC LIMIT 1`)
	latest, err := scanSQLiteArticle(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get latest article: %w", err)
	default:
		stats.Latest = latest
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteArticle(row rowScanner) (*domain.Article, error) {
	var a domain.Article
	var authors, publishedAt, updatedAt, lastFetched string
	if err := row.Scan(&a.ExternalID, &a.Title, &a.Abstract, &authors, &a.Category,
		&publishedAt, &updatedAt, &a.PrimaryLink, &a.AssetLink, &lastFetched); err != nil {
		return nil, err
	}

	var err error
	if a.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if a.LastFetchedAt, err = parseTime(lastFetched); err != nil {
		return nil, err
	}
	a.Authors = domain.SplitAuthors(authors)
	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func isSQLiteConstraint(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
