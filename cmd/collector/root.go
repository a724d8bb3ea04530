package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/arxiv-collector/internal/app"
	"github.com/helixir/arxiv-collector/internal/config"
	"github.com/helixir/arxiv-collector/internal/observability"
	"github.com/helixir/arxiv-collector/internal/service"
)

// cli carries what every subcommand needs once the root pre-run has opened
// the store.
type cli struct {
	in         io.Reader
	out        io.Writer
	configPath string
	verbose    bool

	cfg    *config.Config
	app    *app.App
	svc    *service.Service
	logger zerolog.Logger
}

// execute runs the command line and releases the store whether or not the
// subcommand succeeded.
func execute(in io.Reader, out, errOut io.Writer, args []string) error {
	c := &cli{in: in, out: out}
	root := c.rootCmd()
	root.SetErr(errOut)
	root.SetArgs(args)

	err := root.Execute()
	if closeErr := c.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "arxiv-collector",
		Short:        "Harvest arXiv listings into a local store and browse them",
		Long:         "arxiv-collector harvests arXiv listings for a fixed set of categories into a local store, then lets you browse, search and summarize the collected articles.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log collector progress to stderr")

	root.AddCommand(
		c.initCmd(),
		c.updateCmd(),
		c.browseCmd(),
		c.searchCmd(),
		c.statsCmd(),
		c.showCmd(),
		c.logCmd(),
	)
	return root
}

// open loads configuration and assembles the service.
func (c *cli) open(ctx context.Context) error {
	if c.app != nil {
		return nil
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := "warn"
	if c.verbose {
		level = "info"
	}
	c.logger = observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.Kitchen,
	}).With().Str("component", "cli").Logger()

	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg, c.logger, app.Options{})
	if err != nil {
		return err
	}
	c.app = a
	c.svc = a.Service
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// signalContext cancels on Ctrl-C so a long collection stops cleanly
// between requests.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
