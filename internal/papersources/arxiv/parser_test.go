package arxiv

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-collector/internal/domain"
)

const listingFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <id>https://arxiv.org/api/abc</id>
  <title>arXiv Query: search_query=cat:math.AG</title>
  <updated>2025-01-03T00:00:00Z</updated>
  <opensearch:totalResults>53210</opensearch:totalResults>
  <opensearch:startIndex>0</opensearch:startIndex>
  <opensearch:itemsPerPage>5</opensearch:itemsPerPage>
  <entry>
    <id>http://arxiv.org/abs/2501.00001v2</id>
    <updated>2025-01-02T10:00:00Z</updated>
    <published>2025-01-01T09:00:00Z</published>
    <title>Mirror symmetry
      for   toric stacks</title>
    <summary>  We prove a conjecture
  on stacks.
</summary>
    <author><name>A. Author</name></author>
    <author><name>B. Author</name></author>
    <link href="http://arxiv.org/abs/2501.00001v2" rel="alternate" type="text/html"/>
    <arxiv:primary_category term="math.AG"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/math/0101001v1</id>
    <published>2025-01-02T09:00:00+09:00</published>
    <summary>No title and no update stamp.</summary>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2412.99999v1</id>
    <updated>2024-12-30T00:00:00Z</updated>
    <published>2024-12-20T00:00:00Z</published>
    <title>Too old</title>
  </entry>
  <entry>
    <updated>2025-01-02T00:00:00Z</updated>
    <published>2025-01-02T00:00:00Z</published>
    <title>No identifier</title>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2501.00005v1</id>
    <title>No publication date</title>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2501.00006v1</id>
    <updated>2024-12-01T00:00:00Z</updated>
    <published>2025-01-02T12:00:00Z</published>
    <title>Update stamp precedes publication</title>
  </entry>
</feed>`

const errorFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_1234</id>
    <title>Error</title>
    <summary>incorrect id format for 1234</summary>
  </entry>
</feed>`

func testWindow(t *testing.T) domain.Window {
	t.Helper()
	w, err := domain.NewWindow(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return w
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage([]byte(listingFeedXML), "math.AG", testWindow(t))
	require.NoError(t, err)

	articles := slices.Collect(page.Articles())
	require.Len(t, articles, 3)

	t.Run("normalizes accepted entry", func(t *testing.T) {
		a := articles[0]
		assert.Equal(t, "2501.00001", a.ExternalID)
		assert.Equal(t, "Mirror symmetry for toric stacks", a.Title)
		assert.Equal(t, "We prove a conjecture on stacks.", a.Abstract)
		assert.Equal(t, []string{"A. Author", "B. Author"}, a.Authors)
		assert.Equal(t, "A. Author; B. Author", a.JoinedAuthors())
		assert.Equal(t, "math.AG", a.Category)
		assert.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), a.PublishedAt)
		assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), a.UpdatedAt)
		assert.Equal(t, "https://arxiv.org/abs/2501.00001", a.PrimaryLink)
		assert.Equal(t, "https://arxiv.org/pdf/2501.00001.pdf", a.AssetLink)
		assert.True(t, a.LastFetchedAt.IsZero())
	})

	t.Run("applies defaults for optional fields", func(t *testing.T) {
		a := articles[1]
		assert.Equal(t, "math/0101001", a.ExternalID)
		assert.Equal(t, domain.DefaultTitle, a.Title)
		assert.Empty(t, a.Authors)
		assert.Equal(t, "", a.JoinedAuthors())
		// +09:00 is normalized to UTC.
		assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), a.PublishedAt)
		assert.Equal(t, a.PublishedAt, a.UpdatedAt)
	})

	t.Run("clamps update stamp to publication", func(t *testing.T) {
		a := articles[2]
		assert.Equal(t, "2501.00006", a.ExternalID)
		assert.Equal(t, a.PublishedAt, a.UpdatedAt)
	})

	t.Run("summary classifies every entry", func(t *testing.T) {
		s := page.Summary()
		assert.Equal(t, PageSummary{
			Entries:      6,
			Accepted:     3,
			OutOfWindow:  1,
			Malformed:    2,
			TotalResults: 53210,
		}, s)
	})

	t.Run("sequence is restartable", func(t *testing.T) {
		again := slices.Collect(page.Articles())
		assert.Equal(t, articles, again)
	})

	t.Run("early stop", func(t *testing.T) {
		var seen int
		for range page.Articles() {
			seen++
			break
		}
		assert.Equal(t, 1, seen)
	})
}

func TestParsePage_WindowBoundsInOtherZones(t *testing.T) {
	// The same instants as testWindow, expressed in UTC-5.
	est := time.FixedZone("EST", -5*3600)
	w, err := domain.NewWindow(
		time.Date(2024, 12, 31, 19, 0, 0, 0, est),
		time.Date(2025, 1, 2, 19, 0, 0, 0, est),
	)
	require.NoError(t, err)

	page, err := ParsePage([]byte(listingFeedXML), "math.AG", w)
	require.NoError(t, err)

	ids := make([]string, 0)
	for a := range page.Articles() {
		ids = append(ids, a.ExternalID)
	}
	assert.Equal(t, []string{"2501.00001", "math/0101001", "2501.00006"}, ids)
}

func TestParsePage_InclusiveBounds(t *testing.T) {
	published := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		window domain.Window
		want   int
	}{
		{name: "start equals published", window: domain.Window{Start: published, End: published.Add(time.Hour)}, want: 1},
		{name: "end equals published", window: domain.Window{Start: published.Add(-time.Hour), End: published}, want: 1},
		{name: "one second late", window: domain.Window{Start: published.Add(time.Second), End: published.Add(time.Hour)}, want: 0},
	}

	feed := `<feed xmlns="http://www.w3.org/2005/Atom"><entry>
<id>http://arxiv.org/abs/2501.00001v1</id><published>2025-01-01T09:00:00Z</published><title>T</title>
</entry></feed>`

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParsePage([]byte(feed), "math.DG", tt.window)
			require.NoError(t, err)
			assert.Len(t, slices.Collect(page.Articles()), tt.want)
		})
	}
}

func TestParsePage_Empty(t *testing.T) {
	feed := `<feed xmlns="http://www.w3.org/2005/Atom"><title>empty</title></feed>`
	page, err := ParsePage([]byte(feed), "math.QA", testWindow(t))
	require.NoError(t, err)

	assert.Empty(t, slices.Collect(page.Articles()))
	assert.Equal(t, 0, page.Summary().Entries)
	assert.Equal(t, "math.QA", page.Category())
}

func TestParsePage_Errors(t *testing.T) {
	t.Run("malformed payload", func(t *testing.T) {
		_, err := ParsePage([]byte("<html><body>oops"), "math.AG", testWindow(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	})

	t.Run("arXiv error document", func(t *testing.T) {
		_, err := ParsePage([]byte(errorFeedXML), "math.AG", testWindow(t))
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "incorrect id format for 1234", apiErr.Message)
		assert.ErrorIs(t, err, domain.ErrTransientFetch)
	})
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://arxiv.org/abs/2501.00001v1", "2501.00001"},
		{"http://arxiv.org/abs/2501.00001v12", "2501.00001"},
		{"https://arxiv.org/abs/2501.00001", "2501.00001"},
		{"http://arxiv.org/abs/hep-th/9901001v3", "hep-th/9901001"},
		{"  http://arxiv.org/abs/math/0101001v1\n", "math/0101001"},
		{"http://example.com/2501.00001", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractID(tt.in))
		})
	}
}
