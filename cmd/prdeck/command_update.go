package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"prdeck/internal/logging"
	"prdeck/internal/update"
)

type UpdateCommand struct {
	wiring commandWiring
}

func NewUpdateCommand(wiring commandWiring) *UpdateCommand {
	return &UpdateCommand{wiring: wiring}
}

func (c *UpdateCommand) Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: prdeck update <check|install>")
	}
	fs := flag.NewFlagSet("update "+args[0], flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := c.wiring.loadConfig()
	if err != nil {
		return err
	}
	if cfg.UpdatesDisabled() {
		fmt.Fprintln(c.wiring.stdout, "Updates are disabled in config (update.disabled = true).")
		return nil
	}
	logger := logging.New(c.wiring.stderr, logging.ParseLevel(cfg.LogLevel()))
	orchestrator, err := newOrchestrator(cfg, c.wiring.version, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := orchestrator.Startup(ctx); err != nil {
		logger.Warn("update startup cleanup failed", logging.Err(err))
	}

	switch args[0] {
	case "check":
		return c.check(ctx, orchestrator)
	case "install":
		return c.install(ctx, orchestrator)
	default:
		return fmt.Errorf("unknown update command: %s", args[0])
	}
}

func (c *UpdateCommand) check(ctx context.Context, o *update.Orchestrator) error {
	if pending, ok := o.Pending(ctx); ok {
		fmt.Fprintf(c.wiring.stdout, "Update %s is downloaded; run `prdeck update install`.\n", update.DisplayVersion(pending))
	}
	result, err := o.Check(ctx)
	if err != nil {
		return err
	}
	if !result.Available {
		fmt.Fprintf(c.wiring.stdout, "prdeck %s is up to date.\n", c.wiring.version)
		return nil
	}
	fmt.Fprintf(c.wiring.stdout, "prdeck %s is available (current %s).\n", result.Version, result.Current)
	return nil
}

func (c *UpdateCommand) install(ctx context.Context, o *update.Orchestrator) error {
	if _, ok := o.Pending(ctx); !ok {
		result, err := o.Check(ctx)
		if err != nil {
			return err
		}
		if !result.Available {
			fmt.Fprintf(c.wiring.stdout, "prdeck %s is up to date.\n", c.wiring.version)
			return nil
		}
		fmt.Fprintf(c.wiring.stdout, "Downloading prdeck %s…\n", result.Version)
		var progress update.ProgressFunc
		if isTerminal(c.wiring.stderr) {
			progress = func(done, total int64) {
				if total > 0 {
					fmt.Fprintf(c.wiring.stderr, "\r%3d%%", done*100/total)
				}
			}
		}
		_, err = o.Download(ctx, result.Asset.DownloadURL, result.Version, progress)
		if progress != nil {
			fmt.Fprintln(c.wiring.stderr)
		}
		if err != nil {
			return err
		}
	}
	outcome, err := o.ApplyPending(ctx)
	switch outcome {
	case update.ApplyApplied:
		fmt.Fprintln(c.wiring.stdout, "Update installed. Restart prdeck to use it.")
		return nil
	case update.ApplyNothingPending:
		fmt.Fprintln(c.wiring.stdout, "No update is staged.")
		return nil
	case update.ApplyRolledBack:
		return fmt.Errorf("new binary failed verification; previous version restored: %w", err)
	}
	return err
}
