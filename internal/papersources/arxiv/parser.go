package arxiv

import (
	"bytes"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed/atom"

	"github.com/helixir/arxiv-collector/internal/domain"
)

const (
	absLinkTemplate = "https://arxiv.org/abs/%s"
	pdfLinkTemplate = "https://arxiv.org/pdf/%s.pdf"
)

// idRegex extracts the arXiv ID from the canonical abstract address and drops
// the version suffix, e.g. "http://arxiv.org/abs/2501.00001v2" -> "2501.00001"
// and "http://arxiv.org/abs/math/0101001v1" -> "math/0101001".
var idRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// errorEntryMarker identifies the single entry arXiv returns for a rejected query.
const errorEntryMarker = "arxiv.org/api/errors"

// Disposition classifies one feed entry.
type Disposition int

const (
	Accepted Disposition = iota
	OutOfWindow
	Malformed
)

// PageSummary counts how the entries of a page were classified.
type PageSummary struct {
	Entries      int
	Accepted     int
	OutOfWindow  int
	Malformed    int
	TotalResults int
}

// Page is one decoded listing page bound to the category it was fetched
// under and the window it is filtered to. It holds no iteration state.
type Page struct {
	category     string
	window       domain.Window
	entries      []*atom.Entry
	totalResults int
}

// ParsePage decodes one Atom payload. Undecodable payloads return
// domain.ErrMalformedPayload; an arXiv error document returns a
// domain.ExternalAPIError. Individual bad entries never fail the page.
func ParsePage(payload []byte, category string, window domain.Window) (*Page, error) {
	parser := &atom.Parser{}
	feed, err := parser.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	for _, e := range feed.Entries {
		if e != nil && strings.Contains(e.ID, errorEntryMarker) {
			return nil, domain.NewExternalAPIError(sourceName, 0, domain.NormalizeText(e.Summary), nil)
		}
	}

	return &Page{
		category:     category,
		window:       window,
		entries:      feed.Entries,
		totalResults: totalResults(feed),
	}, nil
}

// Articles yields the entries that carry an identifier and a publication
// timestamp inside the window. Each range over the sequence starts afresh.
func (p *Page) Articles() iter.Seq[domain.Article] {
	return func(yield func(domain.Article) bool) {
		for _, e := range p.entries {
			a, d := p.convert(e)
			if d != Accepted {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// Summary classifies every entry of the page.
func (p *Page) Summary() PageSummary {
	s := PageSummary{Entries: len(p.entries), TotalResults: p.totalResults}
	for _, e := range p.entries {
		switch _, d := p.convert(e); d {
		case Accepted:
			s.Accepted++
		case OutOfWindow:
			s.OutOfWindow++
		default:
			s.Malformed++
		}
	}
	return s
}

// Category returns the category the page was fetched under.
func (p *Page) Category() string {
	return p.category
}

func (p *Page) convert(e *atom.Entry) (domain.Article, Disposition) {
	if e == nil {
		return domain.Article{}, Malformed
	}

	id := ExtractID(e.ID)
	if id == "" {
		return domain.Article{}, Malformed
	}
	if e.PublishedParsed == nil {
		return domain.Article{}, Malformed
	}

	published := e.PublishedParsed.UTC()
	if !p.window.Contains(published) {
		return domain.Article{}, OutOfWindow
	}

	updated := published
	if e.UpdatedParsed != nil && !e.UpdatedParsed.Before(published) {
		updated = e.UpdatedParsed.UTC()
	}

	title := domain.NormalizeText(e.Title)
	if title == "" {
		title = domain.DefaultTitle
	}

	authors := make([]string, 0, len(e.Authors))
	for _, person := range e.Authors {
		if person == nil {
			continue
		}
		if name := domain.NormalizeText(person.Name); name != "" {
			authors = append(authors, name)
		}
	}

	return domain.Article{
		ExternalID:  id,
		Title:       title,
		Abstract:    domain.NormalizeText(e.Summary),
		Authors:     authors,
		Category:    p.category,
		PublishedAt: published,
		UpdatedAt:   updated,
		PrimaryLink: fmt.Sprintf(absLinkTemplate, id),
		AssetLink:   fmt.Sprintf(pdfLinkTemplate, id),
	}, Accepted
}

// ExtractID returns the version-less arXiv ID from an abstract address, or
// "" when the address is not one.
func ExtractID(address string) string {
	m := idRegex.FindStringSubmatch(strings.TrimSpace(address))
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func totalResults(feed *atom.Feed) int {
	for _, ns := range feed.Extensions {
		for _, ext := range ns["totalResults"] {
			if n, err := strconv.Atoi(strings.TrimSpace(ext.Value)); err == nil {
				return n
			}
		}
	}
	return 0
}
