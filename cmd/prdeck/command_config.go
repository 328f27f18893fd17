package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"prdeck/internal/config"
)

type ConfigCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (config.CoreConfig, error)
}

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"
)

type configOutput struct {
	Paths       configPathsOutput      `json:"paths" toml:"paths"`
	GitHub      effectiveGitHubConfig  `json:"github" toml:"github"`
	Update      effectiveUpdateConfig  `json:"update" toml:"update"`
	Credentials effectiveBackendConfig `json:"credentials" toml:"credentials"`
	AI          effectiveAIConfig      `json:"ai" toml:"ai"`
	UI          effectiveUIConfig      `json:"ui" toml:"ui"`
	Logging     effectiveLoggingConfig `json:"logging" toml:"logging"`
}

type configPathsOutput struct {
	Config  string `json:"config" toml:"config"`
	Secrets string `json:"secrets" toml:"secrets"`
	Updates string `json:"updates" toml:"updates"`
	UILog   string `json:"ui_log" toml:"ui_log"`
}

type effectiveGitHubConfig struct {
	APIBaseURL    string   `json:"api_base_url" toml:"api_base_url"`
	WebBaseURL    string   `json:"web_base_url" toml:"web_base_url"`
	OAuthClientID string   `json:"oauth_client_id" toml:"oauth_client_id"`
	Scopes        []string `json:"scopes" toml:"scopes"`
}

type effectiveUpdateConfig struct {
	Repository           string `json:"repository" toml:"repository"`
	CheckIntervalMinutes int    `json:"check_interval_minutes" toml:"check_interval_minutes"`
	AutoDownload         bool   `json:"auto_download" toml:"auto_download"`
	Disabled             bool   `json:"disabled" toml:"disabled"`
}

type effectiveBackendConfig struct {
	Backend string `json:"backend" toml:"backend"`
}

type effectiveAIConfig struct {
	Model      string `json:"model" toml:"model"`
	APIBaseURL string `json:"api_base_url" toml:"api_base_url"`
}

type effectiveUIConfig struct {
	PollIntervalSeconds int  `json:"poll_interval_seconds" toml:"poll_interval_seconds"`
	TickIntervalMillis  int  `json:"tick_interval_ms" toml:"tick_interval_ms"`
	WatchRepository     bool `json:"watch_repository" toml:"watch_repository"`
}

type effectiveLoggingConfig struct {
	Level string `json:"level" toml:"level"`
}

func NewConfigCommand(stdout, stderr io.Writer, loadConfig func() (config.CoreConfig, error)) *ConfigCommand {
	if loadConfig == nil {
		loadConfig = config.LoadCoreConfig
	}
	return &ConfigCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
	}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaults := fs.Bool("default", false, "print default config values")
	format := fs.String("format", configFormatJSON, "output format: json|toml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resolvedFormat, err := resolveConfigFormat(*format)
	if err != nil {
		return err
	}
	payload, err := c.buildOutput(*defaults)
	if err != nil {
		return err
	}
	return writeConfigOutput(c.stdout, resolvedFormat, payload)
}

func (c *ConfigCommand) buildOutput(defaults bool) (configOutput, error) {
	var cfg config.CoreConfig
	if defaults {
		cfg = config.DefaultCoreConfig()
	} else {
		loaded, err := c.loadConfig()
		if err != nil {
			return configOutput{}, err
		}
		cfg = loaded
	}

	var out configOutput
	var err error
	if out.Paths.Config, err = config.CoreConfigPath(); err != nil {
		return configOutput{}, err
	}
	if out.Paths.Secrets, err = config.SecretsDBPath(); err != nil {
		return configOutput{}, err
	}
	if out.Paths.Updates, err = config.UpdatesDir(); err != nil {
		return configOutput{}, err
	}
	if out.Paths.UILog, err = config.UILogPath(); err != nil {
		return configOutput{}, err
	}

	out.GitHub = effectiveGitHubConfig{
		APIBaseURL:    cfg.APIBaseURL(),
		WebBaseURL:    cfg.WebBaseURL(),
		OAuthClientID: cfg.OAuthClientID(),
		Scopes:        cfg.Scopes(),
	}
	out.Update = effectiveUpdateConfig{
		Repository:           cfg.UpdateRepository(),
		CheckIntervalMinutes: int(cfg.UpdateCheckInterval().Minutes()),
		AutoDownload:         cfg.UpdateAutoDownload(),
		Disabled:             cfg.UpdatesDisabled(),
	}
	out.Credentials = effectiveBackendConfig{Backend: cfg.CredentialsBackend()}
	out.AI = effectiveAIConfig{Model: cfg.AIModel(), APIBaseURL: cfg.AIBaseURL()}
	out.UI = effectiveUIConfig{
		PollIntervalSeconds: int(cfg.PollInterval().Seconds()),
		TickIntervalMillis:  int(cfg.TickInterval().Milliseconds()),
		WatchRepository:     cfg.WatchRepository(),
	}
	out.Logging = effectiveLoggingConfig{Level: cfg.LogLevel()}
	return out, nil
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case configFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case configFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	default:
		return errors.New("unsupported format")
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatJSON:
		return configFormatJSON, nil
	case configFormatTOML:
		return configFormatTOML, nil
	default:
		return "", errors.New("invalid format: must be json or toml")
	}
}
