// Package traversal implements the browsing state machine shared by every
// presentation surface: a position over an ordered result list that wraps
// on next/previous and bounds-checks direct jumps.
package traversal

import (
	"fmt"

	"github.com/helixir/arxiv-collector/internal/domain"
)

// Cursor walks a fixed result list. Its entire state is the list and the
// current zero-based index. A Cursor is not safe for concurrent use.
type Cursor[T any] struct {
	items      []T
	index      int
	terminated bool
}

// New returns a cursor positioned on the first item.
func New[T any](items []T) *Cursor[T] {
	return &Cursor[T]{items: items}
}

// Len returns the number of items.
func (c *Cursor[T]) Len() int {
	return len(c.items)
}

// Index returns the current zero-based position.
func (c *Cursor[T]) Index() int {
	return c.index
}

// Position returns the current one-based position, as shown to users.
func (c *Cursor[T]) Position() int {
	return c.index + 1
}

// Current returns the item under the cursor. ok is false for an empty list
// or a terminated cursor.
func (c *Cursor[T]) Current() (item T, ok bool) {
	if c.terminated || len(c.items) == 0 {
		return item, false
	}
	return c.items[c.index], true
}

// Advance moves to the next item, wrapping from the last to the first.
func (c *Cursor[T]) Advance() (T, bool) {
	if n := len(c.items); n > 0 && !c.terminated {
		c.index = (c.index + 1) % n
	}
	return c.Current()
}

// Retreat moves to the previous item, wrapping from the first to the last.
func (c *Cursor[T]) Retreat() (T, bool) {
	if n := len(c.items); n > 0 && !c.terminated {
		c.index = (c.index - 1 + n) % n
	}
	return c.Current()
}

// JumpTo moves to the one-based position n. Positions outside 1..Len are
// rejected with domain.ErrOutOfRange and leave the cursor where it was.
func (c *Cursor[T]) JumpTo(n int) (T, error) {
	var zero T
	if c.terminated {
		return zero, fmt.Errorf("cursor terminated: %w", domain.ErrOutOfRange)
	}
	if n < 1 || n > len(c.items) {
		return zero, fmt.Errorf("position %d not in 1..%d: %w", n, len(c.items), domain.ErrOutOfRange)
	}
	c.index = n - 1
	return c.items[c.index], nil
}

// Terminate ends the traversal. Later moves are no-ops.
func (c *Cursor[T]) Terminate() {
	c.terminated = true
}

// Terminated reports whether Terminate was called.
func (c *Cursor[T]) Terminated() bool {
	return c.terminated
}
