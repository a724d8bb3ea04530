package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	t.Run("error message", func(t *testing.T) {
		err := &ValidationError{
			Field:   "year",
			Message: "must be numeric",
		}
		assert.Equal(t, "validation error: year: must be numeric", err.Error())
	})

	t.Run("unwrap returns ErrInvalidInput", func(t *testing.T) {
		err := fmt.Errorf("parse filter: %w", NewValidationError("limit", "too large"))
		assert.ErrorIs(t, err, ErrInvalidInput)

		var ve *ValidationError
		assert.True(t, errors.As(err, &ve))
		assert.Equal(t, "limit", ve.Field)
	})
}

func TestNotFoundError(t *testing.T) {
	t.Run("error message", func(t *testing.T) {
		err := NewNotFoundError("article", "2501.00001")
		assert.Equal(t, "article not found: 2501.00001", err.Error())
	})

	t.Run("unwrap returns ErrNotFound", func(t *testing.T) {
		assert.ErrorIs(t, NewNotFoundError("article", "x"), ErrNotFound)
	})
}

func TestRateLimitError(t *testing.T) {
	t.Run("error message", func(t *testing.T) {
		err := NewRateLimitError("arxiv", 30*time.Second)
		assert.Equal(t, "rate limited by arxiv: retry after 30s", err.Error())
	})

	t.Run("is both rate limited and transient", func(t *testing.T) {
		err := NewRateLimitError("arxiv", time.Minute)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.ErrorIs(t, err, ErrTransientFetch)
	})
}

func TestExternalAPIError(t *testing.T) {
	t.Run("error message with status", func(t *testing.T) {
		err := NewExternalAPIError("arxiv", 503, "service unavailable", nil)
		assert.Equal(t, "arxiv API error (status 503): service unavailable", err.Error())
	})

	t.Run("error message for transport fault", func(t *testing.T) {
		err := NewExternalAPIError("arxiv", 0, "connection refused", assert.AnError)
		assert.Equal(t, "arxiv API error: connection refused", err.Error())
	})

	t.Run("unwrap matches transient sentinel and cause", func(t *testing.T) {
		err := NewExternalAPIError("arxiv", 500, "boom", assert.AnError)
		assert.ErrorIs(t, err, ErrTransientFetch)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("unwrap without cause", func(t *testing.T) {
		err := NewExternalAPIError("arxiv", 404, "not found", nil)
		assert.ErrorIs(t, err, ErrTransientFetch)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestIntegrityConflictError(t *testing.T) {
	err := NewIntegrityConflictError("2501.00001", assert.AnError)
	assert.Contains(t, err.Error(), `"2501.00001"`)
	assert.ErrorIs(t, err, ErrIntegrityConflict)
	assert.ErrorIs(t, err, assert.AnError)
}
