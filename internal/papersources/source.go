package papersources

import "context"

// PageQuery selects one page of a category listing, newest submissions first.
type PageQuery struct {
	// Category is the taxonomy code, e.g. "math.AG".
	Category string

	// Start is the zero-based offset of the first result.
	Start int

	// MaxResults bounds the number of entries in the page.
	MaxResults int
}

// PageFetcher retrieves raw page payloads from a remote literature API.
// Implementations issue exactly one remote request per call.
type PageFetcher interface {
	// Name returns the source identifier used in logs and errors.
	Name() string

	// FetchPage returns the raw payload for one page.
	FetchPage(ctx context.Context, q PageQuery) ([]byte, error)
}
