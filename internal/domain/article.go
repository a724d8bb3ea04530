package domain

import (
	"strings"
	"time"
)

// AuthorSeparator joins author names in storage.
const AuthorSeparator = "; "

// DefaultTitle is used when an entry carries no title.
const DefaultTitle = "No title"

// Article is the normalized record the collector stores and the query
// engine returns. ExternalID is the primary key.
type Article struct {
	ExternalID    string
	Title         string
	Abstract      string
	Authors       []string
	Category      string
	PublishedAt   time.Time
	UpdatedAt     time.Time
	PrimaryLink   string
	AssetLink     string
	LastFetchedAt time.Time
}

// JoinedAuthors returns the author list in its storage form.
func (a *Article) JoinedAuthors() string {
	return strings.Join(a.Authors, AuthorSeparator)
}

// FirstAuthor returns the display form of the author list: the first name,
// suffixed with "et al." when there are more.
func (a *Article) FirstAuthor() string {
	switch len(a.Authors) {
	case 0:
		return ""
	case 1:
		return a.Authors[0]
	default:
		return a.Authors[0] + " et al."
	}
}

// PublishedYear returns the UTC calendar year of PublishedAt.
func (a *Article) PublishedYear() int {
	return a.PublishedAt.UTC().Year()
}

// Validate checks the fields the store requires.
func (a *Article) Validate() error {
	if strings.TrimSpace(a.ExternalID) == "" {
		return NewValidationError("external_id", "must not be empty")
	}
	if a.PublishedAt.IsZero() {
		return NewValidationError("published_at", "must be set")
	}
	if !a.UpdatedAt.IsZero() && a.UpdatedAt.Before(a.PublishedAt) {
		return NewValidationError("updated_at", "must not precede published_at")
	}
	return nil
}

// SplitAuthors parses the storage form produced by JoinedAuthors.
func SplitAuthors(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, AuthorSeparator)
}

// NormalizeText collapses line breaks and runs of whitespace to single
// spaces and trims the result.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
