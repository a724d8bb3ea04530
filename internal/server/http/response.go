package httpserver

import (
	"time"

	"github.com/helixir/arxiv-collector/internal/domain"
)

// Article response types for JSON serialization.

type articleResponse struct {
	ExternalID    string    `json:"external_id"`
	Title         string    `json:"title"`
	Abstract      string    `json:"abstract,omitempty"`
	Authors       []string  `json:"authors"`
	AuthorDisplay string    `json:"author_display"`
	Category      string    `json:"category"`
	PublishedAt   time.Time `json:"published_at"`
	PublishedYear int       `json:"published_year"`
	UpdatedAt     time.Time `json:"updated_at"`
	PrimaryLink   string    `json:"primary_link"`
	AssetLink     string    `json:"asset_link,omitempty"`
	LastFetchedAt time.Time `json:"last_fetched_at"`
}

type listArticlesResponse struct {
	Articles []articleResponse `json:"articles"`
	Count    int               `json:"count"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type statsResponse struct {
	Total      int64                  `json:"total"`
	ByCategory []domain.CategoryCount `json:"by_category"`
	ByYear     []domain.YearCount     `json:"by_year"`
	Latest     *articleResponse       `json:"latest,omitempty"`
}

type fetchLogEntryResponse struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	Category       string    `json:"category"`
	FetchedAt      time.Time `json:"fetched_at"`
	ArticlesCount  int       `json:"articles_count"`
	MalformedCount int       `json:"malformed_count"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
}

type listFetchLogResponse struct {
	Entries []fetchLogEntryResponse `json:"entries"`
}

type startUpdateResponse struct {
	Status   string `json:"status"`
	DaysBack int    `json:"days_back"`
	Message  string `json:"message"`
}

type collectionStatusResponse struct {
	Running bool `json:"running"`
}

// Converter functions

func domainArticleToResponse(a *domain.Article) articleResponse {
	authors := a.Authors
	if authors == nil {
		authors = []string{}
	}
	return articleResponse{
		ExternalID:    a.ExternalID,
		Title:         a.Title,
		Abstract:      a.Abstract,
		Authors:       authors,
		AuthorDisplay: a.FirstAuthor(),
		Category:      a.Category,
		PublishedAt:   a.PublishedAt,
		PublishedYear: a.PublishedYear(),
		UpdatedAt:     a.UpdatedAt,
		PrimaryLink:   a.PrimaryLink,
		AssetLink:     a.AssetLink,
		LastFetchedAt: a.LastFetchedAt,
	}
}

func domainStatsToResponse(s *domain.CollectionStats) statsResponse {
	resp := statsResponse{
		Total:      s.Total,
		ByCategory: s.ByCategory,
		ByYear:     s.ByYear,
	}
	if resp.ByCategory == nil {
		resp.ByCategory = []domain.CategoryCount{}
	}
	if resp.ByYear == nil {
		resp.ByYear = []domain.YearCount{}
	}
	if s.Latest != nil {
		latest := domainArticleToResponse(s.Latest)
		resp.Latest = &latest
	}
	return resp
}

func domainAuditToResponse(e *domain.FetchAuditEntry) fetchLogEntryResponse {
	return fetchLogEntryResponse{
		ID:             e.ID,
		RunID:          e.RunID.String(),
		Category:       e.Category,
		FetchedAt:      e.FetchedAt,
		ArticlesCount:  e.ArticlesCount,
		MalformedCount: e.MalformedCount,
		Status:         string(e.Status),
		Error:          e.Error,
	}
}
