package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixir/arxiv-collector/internal/collector"
)

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [year]",
		Short: "Backfill every configured category from a starting year to now",
		Long: `Backfill walks the calendar years from the starting year up to the current
year, fetching each configured category once per year. Interrupt it and run
init again with a later year to resume.

Defaults to collector.backfill_start_year from the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := c.cfg.Collector.BackfillStartYear
			if len(args) == 1 {
				y, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid year %q", args[0])
				}
				year = y
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			report, err := c.svc.RunBulkBackfill(ctx, year)
			if report != nil {
				for i := range report.Years {
					printRunReport(c.out, &report.Years[i])
				}
				fmt.Fprintf(c.out, "\n%s %d article(s) written for %d-%d\n",
					okStyle.Render("Backfill:"), report.Written(), report.StartYear, report.EndYear)
			}
			if err != nil {
				if collector.IsCancelled(err) {
					fmt.Fprintln(c.out, warnStyle.Render("Interrupted. Re-run init with a later year to resume."))
				}
				return err
			}
			return nil
		},
	}
}

func (c *cli) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [days]",
		Short: "Fetch the last N days for every configured category",
		Long:  "Update fetches the most recent listings per category and keeps those published within the last N days. Defaults to collector.update_days from the config.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := c.cfg.Collector.UpdateDays
			if len(args) == 1 {
				d, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid number of days %q", args[0])
				}
				days = d
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			report, err := c.svc.RunIncrementalUpdate(ctx, days)
			if report != nil {
				printRunReport(c.out, report)
			}
			return err
		},
	}
}

func (c *cli) browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [limit]",
		Short: "Page through the most recent articles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := ""
			if len(args) == 1 {
				limit = args[0]
			}
			filter, err := c.svc.ParseFilter("", "", "", limit)
			if err != nil {
				return err
			}

			cursor, err := c.svc.Browse(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return traverse(c.in, c.out, cursor)
		},
	}
}

func (c *cli) searchCmd() *cobra.Command {
	var category, year, limit string

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search titles, abstracts and authors for a keyword",
		Long:  "Search matches the keyword as a case-insensitive substring of the title, abstract or author list, optionally narrowed to one category and one publication year.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := c.svc.ParseFilter(args[0], category, year, limit)
			if err != nil {
				return err
			}

			cursor, err := c.svc.Browse(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%d result(s) for %q\n", cursor.Len(), filter.Keyword)
			return traverse(c.in, c.out, cursor)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only articles in this category (e.g. math.DG)")
	cmd.Flags().StringVar(&year, "year", "", "only articles published in this year")
	cmd.Flags().StringVar(&limit, "limit", "", "maximum number of results")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the collected articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := c.svc.Stats(cmd.Context())
			if err != nil {
				return err
			}

			switch output {
			case "text":
				printStats(c.out, stats)
				return nil
			case "yaml":
				enc := yaml.NewEncoder(c.out)
				enc.SetIndent(2)
				if err := enc.Encode(newStatsDocument(stats)); err != nil {
					return fmt.Errorf("encoding stats: %w", err)
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown output format %q (want text or yaml)", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one article by arXiv identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			article, err := c.svc.ArticleDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, renderArticle(article, 0, 0))
			return nil
		},
	}
}

func (c *cli) logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log [limit]",
		Short: "List recent fetch attempts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 20
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid limit %q", args[0])
				}
				limit = n
			}

			entries, err := c.svc.FetchLog(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(c.out, "No fetches recorded yet.")
				return nil
			}
			for i := range entries {
				fmt.Fprintln(c.out, renderAuditEntry(&entries[i], time.Local))
			}
			return nil
		},
	}
}
