package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"prdeck/internal/auth"
	"prdeck/internal/client"
	"prdeck/internal/config"
	"prdeck/internal/credentials"
	"prdeck/internal/logging"
	"prdeck/internal/store"
	"prdeck/internal/update"
)

// version is replaced at release time with -ldflags "-X main.version=1.2.3".
var version = "dev"

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

// buildVersion prefers the linker-stamped version, then the module version
// recorded by `go install`. Anything else is a development build, which
// never self-updates.
func buildVersion() string {
	if version != "" && version != "dev" {
		return strings.TrimPrefix(version, "v")
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return strings.TrimPrefix(v, "v")
		}
	}
	return "dev"
}

type VersionCommand struct {
	stdout  io.Writer
	version string
}

func NewVersionCommand(stdout io.Writer, version string) *VersionCommand {
	return &VersionCommand{stdout: stdout, version: version}
}

// Run prints "prdeck <version>". The updater's self-test parses this exact
// line from a freshly staged binary.
func (c *VersionCommand) Run([]string) error {
	_, err := fmt.Fprintf(c.stdout, "prdeck %s\n", c.version)
	return err
}

// session bundles the credential stack every command that talks to the
// forge needs. Close releases the secret store.
type session struct {
	cfg     config.CoreConfig
	secrets *credentials.Cache
	oauth   *auth.OAuthClient
	auth    *auth.Manager
	closer  io.Closer
}

func openSession(cfg config.CoreConfig, getenv func(string) string, logger logging.Logger) (*session, error) {
	backend, closer, err := credentials.OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	cache := credentials.NewCache(backend, credentials.ServiceName)
	oauth := auth.NewOAuthClient(cfg.WebBaseURL(), cfg.OAuthClientID(), cfg.Scopes(), logger.With(logging.F("component", "oauth")))
	manager := auth.NewManager(cache, oauth,
		auth.WithEnv(getenv),
		auth.WithLogger(logger.With(logging.F("component", "auth"))),
	)
	return &session{cfg: cfg, secrets: cache, oauth: oauth, auth: manager, closer: closer}, nil
}

func (s *session) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func newOrchestrator(cfg config.CoreConfig, currentVersion string, logger logging.Logger) (*update.Orchestrator, error) {
	feed, err := client.NewReleaseFeed(cfg.APIBaseURL(), cfg.UpdateRepository(), logger.With(logging.F("component", "releases")))
	if err != nil {
		return nil, err
	}
	checkpointPath, err := config.UpdateCheckpointPath()
	if err != nil {
		return nil, err
	}
	stagingDir, err := config.UpdatesDir()
	if err != nil {
		return nil, err
	}
	return update.New(update.Options{
		CurrentVersion: currentVersion,
		Feed:           feed,
		Checkpoints:    store.NewFileUpdateCheckpointStore(checkpointPath),
		StagingDir:     stagingDir,
		CheckInterval:  cfg.UpdateCheckInterval(),
		Logger:         logger.With(logging.F("component", "update")),
	}), nil
}
