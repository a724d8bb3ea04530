package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/helixir/arxiv-collector/internal/collector"
	"github.com/helixir/arxiv-collector/internal/domain"
)

func TestRenderArticle(t *testing.T) {
	a := articles("2501.00001")[0]
	a.Abstract = strings.Repeat("x", abstractPreview+50)
	a.AssetLink = "https://arxiv.org/pdf/2501.00001.pdf"

	card := renderArticle(&a, 2, 7)
	assert.Contains(t, card, "[2/7]")
	assert.Contains(t, card, "Ada Lovelace et al.")
	assert.Contains(t, card, "2025-01-03")
	assert.Contains(t, card, "…")
	assert.NotContains(t, card, "Updated")

	assert.NotContains(t, renderArticle(&a, 0, 0), "[0/0]")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ééé…", truncate("éééééé", 4))
}

func TestPrintRunReport(t *testing.T) {
	var out bytes.Buffer
	printRunReport(&out, &collector.RunReport{
		RunID: uuid.New(),
		Mode:  collector.ModeUpdate,
		Window: domain.Window{
			Start: time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		},
		Categories: []collector.CategoryResult{
			{Category: "math.DG", Written: 4, OutOfWindow: 10, Malformed: 1},
			{Category: "math.SG", Err: errors.New("status 503")},
		},
	})

	s := out.String()
	assert.Contains(t, s, "Update 2025-01-08")
	assert.Contains(t, s, "4 written (10 outside window, 1 malformed)")
	assert.Contains(t, s, "failed status 503")
}

func TestRenderAuditEntry(t *testing.T) {
	e := &domain.FetchAuditEntry{
		Category:  "math.AG",
		FetchedAt: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		Status:    domain.FetchStatusFailed,
		Error:     "arXiv API error (status 503)",
	}
	line := renderAuditEntry(e, time.UTC)
	assert.Contains(t, line, "2025-01-10 12:00:00")
	assert.Contains(t, line, "failed")
	assert.Contains(t, line, "status 503")
}

func TestNewStatsDocument(t *testing.T) {
	latest := articles("2501.00009")[0]
	doc := newStatsDocument(&domain.CollectionStats{
		Total:      1,
		ByCategory: []domain.CategoryCount{{Category: "math.DG", Count: 1}},
		ByYear:     []domain.YearCount{{Year: 2025, Count: 1}},
		Latest:     &latest,
	})
	assert.Equal(t, "2501.00009", doc.Latest.ID)
	assert.Equal(t, "2025-01-03T09:30:00Z", doc.Latest.Published)

	assert.Nil(t, newStatsDocument(&domain.CollectionStats{}).Latest)
}
