package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-grep/applog"
	"github.com/dhcgn/mail-grep/config"
	"github.com/dhcgn/mail-grep/mailbox"
	"github.com/dhcgn/mail-grep/progress"
	"github.com/dhcgn/mail-grep/runner"
	"github.com/dhcgn/mail-grep/search"
	"github.com/dhcgn/mail-grep/source"
)

// Process exit codes.
const (
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mail-grep PATTERN",
		Short:         "Search Apple Mail messages with a regular expression and export the hits",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd, args)
			if err != nil {
				return err
			}

			session, err := applog.Setup(applog.Options{
				Level:       cfg.LogLevel,
				Dir:         cfg.LogDir,
				ProjectOnly: !cfg.AllLogs,
			})
			if err != nil {
				return err
			}
			defer func() {
				_ = session.Close()
			}()

			logger := session.Logger
			slog.SetDefault(logger)
			logger.Info("starting mail-grep", "pattern", cfg.Pattern, "source", cfg.Source, "workers", cfg.Workers)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				if !errors.Is(err, runner.ErrInterrupted) {
					logger.Error("mail-grep failed", "err", fmt.Sprintf("%+v", err))
				}
				return err
			}
			return nil
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(exitFailure)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, runner.ErrInterrupted) {
			os.Exit(exitInterrupted)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitFailure)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pattern, err := search.Compile(cfg.Pattern, cfg.IgnoreCase)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	candidates, err := source.Collect(source.Options{
		Root:       cfg.Source,
		NoExclude:  cfg.NoExclude,
		SkipSent:   cfg.SkipSent,
		Classifier: mailbox.Classifier{},
	}, logger)
	if err != nil {
		return fmt.Errorf("source.Collect: %w", err)
	}
	logger.Debug("collected mail files", "count", len(candidates))

	r, err := runner.New(ctx, cfg, search.NewMatcher(pattern, cfg.Parts, logger), logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	bar := progress.New(source.Count(candidates), cfg.LogLevel)
	progress.NewProgressReporter(r, bar, logger)

	source.NewProducer(candidates, r, logger)

	return r.Start()
}
