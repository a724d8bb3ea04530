package main

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/traversal"
)

func articles(ids ...string) []domain.Article {
	published := time.Date(2025, 1, 3, 9, 30, 0, 0, time.UTC)
	out := make([]domain.Article, len(ids))
	for i, id := range ids {
		out[i] = domain.Article{
			ExternalID:  id,
			Title:       "Title " + id,
			Authors:     []string{"Ada Lovelace", "Emmy Noether"},
			Category:    "math.DG",
			PublishedAt: published,
			UpdatedAt:   published,
			PrimaryLink: "https://arxiv.org/abs/" + id,
		}
	}
	return out
}

var positionHeader = regexp.MustCompile(`\[\d+/\d+\]`)

// shownPositions extracts the [i/n] card headers in display order.
func shownPositions(out string) []string {
	return positionHeader.FindAllString(out, -1)
}

func TestTraverse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"next wraps to first", "n\n\nn\nq\n", []string{"[1/3]", "[2/3]", "[3/3]", "[1/3]"}},
		{"previous wraps to last", "p\nq\n", []string{"[1/3]", "[3/3]"}},
		{"jump", "3\n1\nq\n", []string{"[1/3]", "[3/3]", "[1/3]"}},
		{"out of range jump keeps position", "2\n9\nn\nq\n", []string{"[1/3]", "[2/3]", "[3/3]"}},
		{"end of input terminates", "n\n", []string{"[1/3]", "[2/3]"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			cursor := traversal.New(articles("a", "b", "c"))

			require.NoError(t, traverse(strings.NewReader(tc.input), &out, cursor))
			assert.Equal(t, tc.want, shownPositions(out.String()))
			assert.True(t, cursor.Terminated())
		})
	}
}

func TestTraverse_OutOfRangeMessage(t *testing.T) {
	var out bytes.Buffer
	cursor := traversal.New(articles("a", "b"))

	require.NoError(t, traverse(strings.NewReader("0\nq\n"), &out, cursor))
	assert.Contains(t, out.String(), "no article #0 (1-2)")
	assert.Equal(t, 1, cursor.Position())
}

func TestTraverse_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	cursor := traversal.New(articles("a"))

	require.NoError(t, traverse(strings.NewReader("x\nq\n"), &out, cursor))
	assert.Contains(t, out.String(), `unknown command "x"`)
}

func TestTraverse_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, traverse(strings.NewReader(""), &out, traversal.New[domain.Article](nil)))
	assert.Equal(t, "No articles found.\n", out.String())
}
