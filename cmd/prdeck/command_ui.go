package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"prdeck/internal/ai"
	"prdeck/internal/app"
	"prdeck/internal/client"
	"prdeck/internal/config"
	"prdeck/internal/git"
	"prdeck/internal/logging"
	"prdeck/internal/update"
)

type UICommand struct {
	wiring commandWiring
}

func NewUICommand(wiring commandWiring) *UICommand {
	return &UICommand{wiring: wiring}
}

func (c *UICommand) Run(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	dir := fs.String("C", ".", "repository directory")
	logLevel := fs.String("log-level", "", "override logging.level (debug|info|warn|error)")
	noUpdate := fs.Bool("no-update-check", false, "skip the background update check")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.wiring.loadConfig()
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger, logCloser := openUILog(cfg)
	defer logCloser.Close()

	sess, err := openSession(cfg, c.wiring.getenv, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	services := app.Services{
		Auth:       sess.auth,
		Secrets:    sess.secrets,
		SaveConfig: config.SaveCoreConfig,
		Generator: func(ctx context.Context, model string) (app.Generator, error) {
			key, err := ai.ResolveAPIKey(ctx, sess.secrets, c.wiring.getenv)
			if err != nil {
				return nil, err
			}
			gen, err := ai.NewClient(cfg.AIBaseURL(), model, key, logger.With(logging.F("component", "ai")))
			if err != nil {
				return nil, err
			}
			return gen, nil
		},
	}
	c.wireRepository(&services, cfg, *dir, sess, logger)

	if !*noUpdate && !cfg.UpdatesDisabled() {
		orchestrator, err := newOrchestrator(cfg, c.wiring.version, logger)
		if err != nil {
			logger.Warn("updates unavailable", logging.Err(err))
		} else {
			startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := orchestrator.Startup(startupCtx); err != nil {
				logger.Warn("update startup cleanup failed", logging.Err(err))
				if update.IsCritical(err) {
					fmt.Fprintln(c.wiring.stderr, err)
				}
			}
			cancel()
			services.Updater = orchestrator
		}
	}

	logger.Info("ui starting", logging.F("version", c.wiring.version))
	return app.Run(cfg, services, app.WithLogger(logger), app.WithVersion(c.wiring.version))
}

// wireRepository attaches git and forge services when dir is a clone with a
// GitHub origin. Outside a repository the UI still starts with settings,
// auth and updates available.
func (c *UICommand) wireRepository(services *app.Services, cfg config.CoreConfig, dir string, sess *session, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	repo, err := git.Open(ctx, dir)
	if err != nil {
		logger.Info("not inside a git repository", logging.Err(err))
		return
	}
	services.Git = repo
	if gitDir, err := repo.GitDir(ctx); err == nil {
		services.GitDir = gitDir
	}
	forgeRepo, err := repo.Repository(ctx)
	if err != nil {
		logger.Warn("origin is not a GitHub repository", logging.Err(err))
		return
	}
	services.Forge = client.New(cfg.APIBaseURL(), forgeRepo, sess.auth, logger.With(logging.F("component", "forge")))
}

// openUILog sends logs to ui.log; the terminal belongs to the UI.
func openUILog(cfg config.CoreConfig) (logging.Logger, io.Closer) {
	path, err := config.UILogPath()
	if err == nil {
		logger, closer, err := logging.OpenFile(path, logging.ParseLevel(cfg.LogLevel()))
		if err == nil {
			return logger, closer
		}
		fmt.Fprintf(os.Stderr, "ui log unavailable: %v\n", err)
	}
	return logging.Nop(), io.NopCloser(nil)
}
