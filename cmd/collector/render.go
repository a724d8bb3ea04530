package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/helixir/arxiv-collector/internal/collector"
	"github.com/helixir/arxiv-collector/internal/domain"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#D0312D", Dark: "#F25D94"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(colorDim).Width(11)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(colorRed)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1).
			Width(88)
)

// abstractPreview bounds the abstract shown on a card.
const abstractPreview = 600

// renderArticle draws one article card. position and total are one-based;
// zero total omits the position header.
func renderArticle(a *domain.Article, position, total int) string {
	var b strings.Builder

	if total > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("[%d/%d]", position, total)))
		b.WriteString("\n")
	}
	b.WriteString(titleStyle.Render(a.Title))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	field("ID", a.ExternalID)
	field("Authors", a.FirstAuthor())
	field("Category", a.Category)
	field("Published", a.PublishedAt.UTC().Format("2006-01-02"))
	if !a.UpdatedAt.Equal(a.PublishedAt) {
		field("Updated", a.UpdatedAt.UTC().Format("2006-01-02"))
	}
	field("Link", a.PrimaryLink)
	field("PDF", a.AssetLink)

	if a.Abstract != "" {
		b.WriteString("\n")
		b.WriteString(truncate(a.Abstract, abstractPreview))
	}

	return cardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// truncate shortens s to at most n runes, ending with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printRunReport(w io.Writer, r *collector.RunReport) {
	fmt.Fprintf(w, "%s %s → %s\n",
		titleStyle.Render(capitalize(r.Mode)),
		r.Window.Start.UTC().Format("2006-01-02"),
		r.Window.End.UTC().Format("2006-01-02 15:04"))

	for _, c := range r.Categories {
		if c.Failed() {
			fmt.Fprintf(w, "  %-10s %s %v\n", c.Category, warnStyle.Render("failed"), c.Err)
			continue
		}
		line := fmt.Sprintf("  %-10s %s %d written", c.Category, okStyle.Render("ok"), c.Written)
		var notes []string
		if c.OutOfWindow > 0 {
			notes = append(notes, fmt.Sprintf("%d outside window", c.OutOfWindow))
		}
		if c.Malformed > 0 {
			notes = append(notes, fmt.Sprintf("%d malformed", c.Malformed))
		}
		if c.Conflicts > 0 {
			notes = append(notes, fmt.Sprintf("%d rejected", c.Conflicts))
		}
		if len(notes) > 0 {
			line += dimStyle.Render(" (" + strings.Join(notes, ", ") + ")")
		}
		fmt.Fprintln(w, line)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func printStats(w io.Writer, s *domain.CollectionStats) {
	fmt.Fprintf(w, "%s %d\n", titleStyle.Render("Articles:"), s.Total)
	if s.Total == 0 {
		return
	}

	fmt.Fprintln(w, "\n"+titleStyle.Render("By category"))
	for _, c := range s.ByCategory {
		fmt.Fprintf(w, "  %-12s %d\n", c.Category, c.Count)
	}

	fmt.Fprintln(w, "\n"+titleStyle.Render("By year"))
	for _, y := range s.ByYear {
		fmt.Fprintf(w, "  %-12d %d\n", y.Year, y.Count)
	}

	if s.Latest != nil {
		fmt.Fprintln(w, "\n"+titleStyle.Render("Latest"))
		fmt.Fprintf(w, "  %s  %s\n  %s\n",
			s.Latest.PublishedAt.UTC().Format("2006-01-02"), s.Latest.ExternalID, s.Latest.Title)
	}
}

func renderAuditEntry(e *domain.FetchAuditEntry, loc *time.Location) string {
	status := okStyle.Render(string(e.Status))
	if e.Status == domain.FetchStatusFailed {
		status = warnStyle.Render(string(e.Status))
	}
	line := fmt.Sprintf("%s  %-10s %-7s %4d written",
		e.FetchedAt.In(loc).Format("2006-01-02 15:04:05"), e.Category, status, e.ArticlesCount)
	if e.MalformedCount > 0 {
		line += fmt.Sprintf(", %d malformed", e.MalformedCount)
	}
	if e.Error != "" {
		line += "  " + dimStyle.Render(e.Error)
	}
	return line
}

// statsDocument is the YAML shape of `stats --output yaml`.
type statsDocument struct {
	Total      int64                  `yaml:"total"`
	ByCategory []domain.CategoryCount `yaml:"by_category"`
	ByYear     []domain.YearCount     `yaml:"by_year"`
	Latest     *latestDocument        `yaml:"latest,omitempty"`
}

type latestDocument struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Category  string `yaml:"category"`
	Published string `yaml:"published"`
}

func newStatsDocument(s *domain.CollectionStats) statsDocument {
	doc := statsDocument{
		Total:      s.Total,
		ByCategory: s.ByCategory,
		ByYear:     s.ByYear,
	}
	if s.Latest != nil {
		doc.Latest = &latestDocument{
			ID:        s.Latest.ExternalID,
			Title:     s.Latest.Title,
			Category:  s.Latest.Category,
			Published: s.Latest.PublishedAt.UTC().Format(time.RFC3339),
		}
	}
	return doc
}
