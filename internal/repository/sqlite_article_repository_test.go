package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-collector/internal/database"
	"github.com/helixir/arxiv-collector/internal/domain"
)

func newSQLiteTestRepo(t *testing.T) (*SQLiteArticleRepository, *sql.DB) {
	t.Helper()

	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, database.SQLiteOptions{Path: database.MemoryPath}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator, err := database.NewSQLiteMigrator(db, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	repo := NewSQLiteArticleRepository(db)
	repo.now = stepClock(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	return repo, db
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func newTestArticle(id, category string, published time.Time) domain.Article {
	return domain.Article{
		ExternalID:  id,
		Title:       "Title of " + id,
		Abstract:    "Abstract of " + id,
		Authors:     []string{"Ada Lovelace", "Emmy Noether"},
		Category:    category,
		PublishedAt: published,
		UpdatedAt:   published.Add(time.Hour),
		PrimaryLink: "https://arxiv.org/abs/" + id,
		AssetLink:   "https://arxiv.org/pdf/" + id + ".pdf",
	}
}

func TestSQLiteArticleRepository_UpsertArticles(t *testing.T) {
	ctx := context.Background()
	published := time.Date(2025, 1, 3, 9, 30, 0, 0, time.UTC)

	t.Run("empty batch is a no-op", func(t *testing.T) {
		repo, _ := newSQLiteTestRepo(t)
		result, err := repo.UpsertArticles(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, result.Written)
	})

	t.Run("round trips every field", func(t *testing.T) {
		repo, _ := newSQLiteTestRepo(t)
		in := newTestArticle("2501.00001", "math.DG", published)

		result, err := repo.UpsertArticles(ctx, []domain.Article{in})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Written)
		assert.Empty(t, result.Conflicts)

		got, err := repo.GetArticle(ctx, "2501.00001")
		require.NoError(t, err)
		assert.Equal(t, in.Title, got.Title)
		assert.Equal(t, in.Abstract, got.Abstract)
		assert.Equal(t, in.Authors, got.Authors)
		assert.Equal(t, in.Category, got.Category)
		assert.True(t, in.PublishedAt.Equal(got.PublishedAt))
		assert.True(t, in.UpdatedAt.Equal(got.UpdatedAt))
		assert.Equal(t, in.PrimaryLink, got.PrimaryLink)
		assert.Equal(t, in.AssetLink, got.AssetLink)
		assert.False(t, got.LastFetchedAt.IsZero())
	})

	t.Run("storing the same record twice changes only last_fetched_at", func(t *testing.T) {
		repo, db := newSQLiteTestRepo(t)
		in := newTestArticle("2501.00001", "math.DG", published)

		_, err := repo.UpsertArticles(ctx, []domain.Article{in})
		require.NoError(t, err)
		first, err := repo.GetArticle(ctx, in.ExternalID)
		require.NoError(t, err)

		_, err = repo.UpsertArticles(ctx, []domain.Article{in})
		require.NoError(t, err)
		second, err := repo.GetArticle(ctx, in.ExternalID)
		require.NoError(t, err)

		assert.Equal(t, 1, countRows(t, db, "articles"))
		assert.True(t, second.LastFetchedAt.After(first.LastFetchedAt))

		first.LastFetchedAt = time.Time{}
		second.LastFetchedAt = time.Time{}
		assert.Equal(t, first, second)
	})

	t.Run("last write wins across categories", func(t *testing.T) {
		repo, db := newSQLiteTestRepo(t)

		a := newTestArticle("2501.00001", "math.DG", published)
		a.Abstract = "first abstract"
		b := newTestArticle("2501.00001", "math.SG", published)
		b.Abstract = "second abstract"

		_, err := repo.UpsertArticles(ctx, []domain.Article{a})
		require.NoError(t, err)
		_, err = repo.UpsertArticles(ctx, []domain.Article{b})
		require.NoError(t, err)

		assert.Equal(t, 1, countRows(t, db, "articles"))
		got, err := repo.GetArticle(ctx, "2501.00001")
		require.NoError(t, err)
		assert.Equal(t, "second abstract", got.Abstract)
		assert.Equal(t, "math.SG", got.Category)
	})

	t.Run("invalid record is skipped and the rest of the batch is written", func(t *testing.T) {
		repo, db := newSQLiteTestRepo(t)

		bad := newTestArticle("2501.00002", "math.DG", published)
		bad.UpdatedAt = published.Add(-time.Hour)

		result, err := repo.UpsertArticles(ctx, []domain.Article{
			newTestArticle("2501.00001", "math.DG", published),
			bad,
			newTestArticle("2501.00003", "math.DG", published),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Written)
		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, "2501.00002", result.Conflicts[0].ExternalID)
		assert.True(t, errors.Is(result.Conflicts[0], domain.ErrIntegrityConflict))
		assert.Equal(t, 2, countRows(t, db, "articles"))
	})

	t.Run("store constraint violation is skipped", func(t *testing.T) {
		repo, db := newSQLiteTestRepo(t)
		_, err := db.ExecContext(ctx, `CREATE TRIGGER reject_flagged BEFORE INSERT ON articles
			WHEN NEW.title = 'reject me'
			BEGIN SELECT RAISE(ABORT, 'flagged'); END`)
		require.NoError(t, err)

		flagged := newTestArticle("2501.00002", "math.DG", published)
		flagged.Title = "reject me"

		result, err := repo.UpsertArticles(ctx, []domain.Article{
			newTestArticle("2501.00001", "math.DG", published),
			flagged,
			newTestArticle("2501.00003", "math.DG", published),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Written)
		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, "2501.00002", result.Conflicts[0].ExternalID)

		_, err = repo.GetArticle(ctx, "2501.00002")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("cancelled context aborts the batch", func(t *testing.T) {
		repo, db := newSQLiteTestRepo(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := repo.UpsertArticles(cancelled, []domain.Article{newTestArticle("2501.00001", "math.DG", published)})
		require.Error(t, err)
		assert.Equal(t, 0, countRows(t, db, "articles"))
	})
}

func TestSQLiteArticleRepository_GetArticle(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteTestRepo(t)

	t.Run("empty id is rejected", func(t *testing.T) {
		_, err := repo.GetArticle(ctx, "")
		var validationErr *domain.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "external_id", validationErr.Field)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.GetArticle(ctx, "9999.99999")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

// seedCorpus stores a small fixed corpus spanning two categories and three years.
func seedCorpus(t *testing.T, repo ArticleRepository) []domain.Article {
	t.Helper()

	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	seeds := []struct {
		id, category, title, abstract string
		author                        string
		published                     time.Time
	}{
		{"2306.00001", "math.DG", "Ricci flow on surfaces", "We study curvature.", "Grigori Perelman", base},
		{"2306.00002", "math.SG", "Symplectic capacities", "Gromov width bounds.", "Dusa McDuff", base.AddDate(0, 0, 1)},
		{"2401.00003", "math.DG", "Minimal surfaces", "A note on RICCI curvature.", "Karen Uhlenbeck", base.AddDate(1, 0, 0)},
		{"2401.00004", "math.SG", "Floer homology", "Holomorphic curves.", "Andreas Floer", base.AddDate(1, 0, 0)},
		{"2501.00005", "math.DG", "Harmonic maps", "100% rigorous estimates.", "Richard Schoen", base.AddDate(2, 0, 0)},
		{"2501.00006", "math.SG", "Contact topology", "Legendrian knots_and links.", "Yakov Eliashberg", base.AddDate(2, 0, 1)},
	}

	articles := make([]domain.Article, 0, len(seeds))
	for _, s := range seeds {
		a := newTestArticle(s.id, s.category, s.published)
		a.Title = s.title
		a.Abstract = s.abstract
		a.Authors = []string{s.author}
		articles = append(articles, a)
	}

	result, err := repo.UpsertArticles(context.Background(), articles)
	require.NoError(t, err)
	require.Equal(t, len(articles), result.Written)
	return articles
}

func ids(articles []domain.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ExternalID)
	}
	return out
}

func TestSQLiteArticleRepository_QueryArticles(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteTestRepo(t)
	seedCorpus(t, repo)

	tests := []struct {
		name   string
		filter ArticleFilter
		want   []string
	}{
		{"no filters returns newest first", ArticleFilter{},
			[]string{"2501.00006", "2501.00005", "2401.00003", "2401.00004", "2306.00002", "2306.00001"}},
		{"limit truncates", ArticleFilter{Limit: 2}, []string{"2501.00006", "2501.00005"}},
		{"offset skips", ArticleFilter{Limit: 2, Offset: 2}, []string{"2401.00003", "2401.00004"}},
		{"category", ArticleFilter{Category: "math.SG"}, []string{"2501.00006", "2401.00004", "2306.00002"}},
		{"year", ArticleFilter{Year: 2024}, []string{"2401.00003", "2401.00004"}},
		{"keyword matches title case-insensitively", ArticleFilter{Keyword: "ricci"}, []string{"2401.00003", "2306.00001"}},
		{"keyword matches authors", ArticleFilter{Keyword: "mcduff"}, []string{"2306.00002"}},
		{"percent is literal", ArticleFilter{Keyword: "100%"}, []string{"2501.00005"}},
		{"underscore is literal", ArticleFilter{Keyword: "s_a"}, []string{"2501.00006"}},
		{"lone percent matches only literal percent", ArticleFilter{Keyword: "%"}, []string{"2501.00005"}},
		{"category and year", ArticleFilter{Category: "math.DG", Year: 2023}, []string{"2306.00001"}},
		{"no match", ArticleFilter{Category: "math.AG"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryArticles(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	t.Run("ties keep storage order", func(t *testing.T) {
		got, err := repo.QueryArticles(ctx, ArticleFilter{Year: 2024})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].PublishedAt.Equal(got[1].PublishedAt))
		assert.Equal(t, "2401.00003", got[0].ExternalID)
	})

	t.Run("negative year is rejected", func(t *testing.T) {
		_, err := repo.QueryArticles(ctx, ArticleFilter{Year: -1})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestSQLiteArticleRepository_QueryComposition(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteTestRepo(t)
	seedCorpus(t, repo)

	keywords := []string{"", "ricci", "floer", "a"}
	categories := []string{"", "math.DG", "math.SG"}
	years := []int{0, 2023, 2024, 2025}

	single := func(f ArticleFilter) map[string]bool {
		got, err := repo.QueryArticles(ctx, f)
		require.NoError(t, err)
		set := make(map[string]bool, len(got))
		for _, a := range got {
			set[a.ExternalID] = true
		}
		return set
	}

	for _, kw := range keywords {
		for _, cat := range categories {
			for _, year := range years {
				name := fmt.Sprintf("kw=%q cat=%q year=%d", kw, cat, year)
				t.Run(name, func(t *testing.T) {
					combined, err := repo.QueryArticles(ctx, ArticleFilter{Keyword: kw, Category: cat, Year: year})
					require.NoError(t, err)

					byKeyword := single(ArticleFilter{Keyword: kw})
					byCategory := single(ArticleFilter{Category: cat})
					byYear := single(ArticleFilter{Year: year})

					var want []string
					all, err := repo.QueryArticles(ctx, ArticleFilter{})
					require.NoError(t, err)
					for _, a := range all {
						if byKeyword[a.ExternalID] && byCategory[a.ExternalID] && byYear[a.ExternalID] {
							want = append(want, a.ExternalID)
						}
					}

					got := ids(combined)
					if len(want) == 0 {
						assert.Empty(t, got)
					} else {
						assert.Equal(t, want, got)
					}

					for i := 1; i < len(combined); i++ {
						assert.False(t, combined[i].PublishedAt.After(combined[i-1].PublishedAt))
					}
				})
			}
		}
	}

	t.Run("keyword folds non-ASCII case", func(t *testing.T) {
		repo, _ := newSQLiteTestRepo(t)

		cartan := newTestArticle("2502.00001", "math.DG", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		cartan.Title = "Über Flächen konstanter Krümmung"
		cartan.Authors = []string{"Élie Cartan"}
		_, err := repo.UpsertArticles(ctx, []domain.Article{cartan})
		require.NoError(t, err)

		for _, kw := range []string{"élie", "ÉLIE", "Élie", "cartan", "über", "ÜBER", "flächen", "KRÜMMUNG"} {
			got, err := repo.QueryArticles(ctx, ArticleFilter{Keyword: kw})
			require.NoError(t, err)
			assert.Equal(t, []string{"2502.00001"}, ids(got), "keyword %q", kw)
		}

		got, err := repo.QueryArticles(ctx, ArticleFilter{Keyword: "elie"})
		require.NoError(t, err)
		assert.Empty(t, got, "accents are not stripped")
	})
}

func TestSQLiteArticleRepository_FetchLog(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteTestRepo(t)
	runID := uuid.New()

	t.Run("nil entry is rejected", func(t *testing.T) {
		err := repo.AppendFetchLog(ctx, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("missing category is rejected", func(t *testing.T) {
		err := repo.AppendFetchLog(ctx, &domain.FetchAuditEntry{RunID: runID})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	ok := &domain.FetchAuditEntry{RunID: runID, Category: "math.DG", ArticlesCount: 12, MalformedCount: 1}
	require.NoError(t, repo.AppendFetchLog(ctx, ok))
	assert.NotZero(t, ok.ID)
	assert.Equal(t, domain.FetchStatusOK, ok.Status)

	failed := &domain.FetchAuditEntry{
		RunID:    runID,
		Category: "math.SG",
		Status:   domain.FetchStatusFailed,
		Error:    "connection reset",
	}
	require.NoError(t, repo.AppendFetchLog(ctx, failed))

	entries, err := repo.ListFetchLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "math.SG", entries[0].Category)
	assert.Equal(t, domain.FetchStatusFailed, entries[0].Status)
	assert.Equal(t, "connection reset", entries[0].Error)
	assert.Zero(t, entries[0].ArticlesCount)

	assert.Equal(t, "math.DG", entries[1].Category)
	assert.Equal(t, runID, entries[1].RunID)
	assert.Equal(t, 12, entries[1].ArticlesCount)
	assert.Equal(t, 1, entries[1].MalformedCount)

	limited, err := repo.ListFetchLog(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteArticleRepository_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		repo, _ := newSQLiteTestRepo(t)
		stats, err := repo.Stats(ctx, 0)
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
		assert.Empty(t, stats.ByCategory)
		assert.Empty(t, stats.ByYear)
		assert.Nil(t, stats.Latest)
	})

	t.Run("populated store", func(t *testing.T) {
		repo, _ := newSQLiteTestRepo(t)
		seedCorpus(t, repo)

		stats, err := repo.Stats(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(6), stats.Total)
		assert.Equal(t, []domain.CategoryCount{
			{Category: "math.DG", Count: 3},
			{Category: "math.SG", Count: 3},
		}, stats.ByCategory)
		assert.Equal(t, []domain.YearCount{
			{Year: 2025, Count: 2},
			{Year: 2024, Count: 2},
		}, stats.ByYear)
		require.NotNil(t, stats.Latest)
		assert.Equal(t, "2501.00006", stats.Latest.ExternalID)
	})
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
