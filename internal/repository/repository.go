// Package repository provides the Record Store: the articles table and the
// append-only fetch audit log.
//
// # Implementations
//
//   - SQLiteArticleRepository: the embedded default, backed by modernc.org/sqlite.
//   - PgArticleRepository: PostgreSQL through pgx.
//
// Both order reads by published_at descending with storage order as the
// tie-break, and both treat a constraint violation on a single record as an
// integrity conflict that is skipped while the rest of the batch is written.
//
// # Concurrency
//
// Reads are safe from any number of goroutines. Writes assume a single
// writer; the service layer refuses to start a second collection while one
// is running.
//
// # Usage Pattern
//
//	sqlDB, _ := database.OpenSQLite(ctx, opts, logger)
//	repo := repository.NewSQLiteArticleRepository(sqlDB)
//	result, err := repo.UpsertArticles(ctx, articles)
package repository

import (
	"strings"

	"github.com/helixir/arxiv-collector/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// defaultStatsYears is how many recent years Stats reports when asked for
// a non-positive count.
const defaultStatsYears = 10

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns a keyword into a LIKE pattern that matches it as a
// literal substring. The pattern uses backslash as its escape character.
func containsPattern(keyword string) string {
	return "%" + likeEscaper.Replace(keyword) + "%"
}
