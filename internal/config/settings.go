package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultAPIBaseURL         = "https://api.github.com"
	defaultWebBaseURL         = "https://github.com"
	defaultOAuthClientID      = "Ov23liPrdeckDevFlow01"
	defaultUpdateRepository   = "prdeck/prdeck"
	defaultUpdateIntervalMins = 60
	defaultAIModel            = "gemini-2.5-flash"
	defaultAIBaseURL          = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultPollIntervalSecs   = 30
	defaultTickIntervalMillis = 250

	CredentialsBackendKeyring = "keyring"
	CredentialsBackendFile    = "file"
)

var defaultScopes = []string{"repo", "read:org"}

// AIModels lists the selectable generation models in display order.
var AIModels = []string{
	"gemini-2.0-flash",
	"gemini-2.5-flash",
	"gemini-3-flash-preview",
}

type CoreConfig struct {
	GitHub      CoreGitHubConfig      `toml:"github"`
	Update      CoreUpdateConfig      `toml:"update"`
	Credentials CoreCredentialsConfig `toml:"credentials"`
	AI          CoreAIConfig          `toml:"ai"`
	UI          CoreUIConfig          `toml:"ui"`
	Logging     CoreLoggingConfig     `toml:"logging"`
}

type CoreGitHubConfig struct {
	APIBaseURL    string   `toml:"api_base_url"`
	WebBaseURL    string   `toml:"web_base_url"`
	OAuthClientID string   `toml:"oauth_client_id"`
	Scopes        []string `toml:"scopes"`
}

type CoreUpdateConfig struct {
	Repository           string `toml:"repository"`
	CheckIntervalMinutes int    `toml:"check_interval_minutes"`
	AutoDownload         *bool  `toml:"auto_download"`
	Disabled             bool   `toml:"disabled"`
}

type CoreCredentialsConfig struct {
	Backend string `toml:"backend"`
}

type CoreAIConfig struct {
	Model      string `toml:"model"`
	APIBaseURL string `toml:"api_base_url"`
}

type CoreUIConfig struct {
	PollIntervalSeconds int   `toml:"poll_interval_seconds"`
	TickIntervalMillis  int   `toml:"tick_interval_ms"`
	WatchRepository     *bool `toml:"watch_repository"`
}

type CoreLoggingConfig struct {
	Level string `toml:"level"`
}

func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		GitHub: CoreGitHubConfig{
			APIBaseURL:    defaultAPIBaseURL,
			WebBaseURL:    defaultWebBaseURL,
			OAuthClientID: defaultOAuthClientID,
			Scopes:        append([]string{}, defaultScopes...),
		},
		Update: CoreUpdateConfig{
			Repository:           defaultUpdateRepository,
			CheckIntervalMinutes: defaultUpdateIntervalMins,
		},
		Credentials: CoreCredentialsConfig{Backend: CredentialsBackendKeyring},
		AI:          CoreAIConfig{Model: defaultAIModel, APIBaseURL: defaultAIBaseURL},
		UI: CoreUIConfig{
			PollIntervalSeconds: defaultPollIntervalSecs,
			TickIntervalMillis:  defaultTickIntervalMillis,
		},
		Logging: CoreLoggingConfig{Level: "info"},
	}
}

func LoadCoreConfig() (CoreConfig, error) {
	path, err := CoreConfigPath()
	if err != nil {
		return CoreConfig{}, err
	}
	return loadCoreConfigFromPath(path)
}

// SaveCoreConfig writes cfg to config.toml, replacing the previous file
// atomically.
func SaveCoreConfig(cfg CoreConfig) error {
	path, err := CoreConfigPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func (c CoreConfig) APIBaseURL() string {
	return trimmedURL(c.GitHub.APIBaseURL, defaultAPIBaseURL)
}

func (c CoreConfig) WebBaseURL() string {
	return trimmedURL(c.GitHub.WebBaseURL, defaultWebBaseURL)
}

func (c CoreConfig) OAuthClientID() string {
	id := strings.TrimSpace(c.GitHub.OAuthClientID)
	if id == "" {
		return defaultOAuthClientID
	}
	return id
}

func (c CoreConfig) Scopes() []string {
	scopes := normalizedList(c.GitHub.Scopes)
	if len(scopes) == 0 {
		return append([]string{}, defaultScopes...)
	}
	return scopes
}

func (c CoreConfig) UpdateRepository() string {
	repo := strings.Trim(strings.TrimSpace(c.Update.Repository), "/")
	if repo == "" {
		return defaultUpdateRepository
	}
	return repo
}

func (c CoreConfig) UpdateCheckInterval() time.Duration {
	mins := c.Update.CheckIntervalMinutes
	if mins <= 0 {
		mins = defaultUpdateIntervalMins
	}
	return time.Duration(mins) * time.Minute
}

func (c CoreConfig) UpdateAutoDownload() bool {
	if c.Update.AutoDownload == nil {
		return true
	}
	return *c.Update.AutoDownload
}

func (c CoreConfig) UpdatesDisabled() bool {
	return c.Update.Disabled
}

func (c CoreConfig) CredentialsBackend() string {
	switch strings.ToLower(strings.TrimSpace(c.Credentials.Backend)) {
	case CredentialsBackendFile:
		return CredentialsBackendFile
	default:
		return CredentialsBackendKeyring
	}
}

func (c CoreConfig) AIModel() string {
	model := strings.TrimSpace(c.AI.Model)
	for _, known := range AIModels {
		if model == known {
			return model
		}
	}
	return defaultAIModel
}

// NextAIModel returns the model following the current one, wrapping around.
func (c CoreConfig) NextAIModel() string {
	current := c.AIModel()
	for i, model := range AIModels {
		if model == current {
			return AIModels[(i+1)%len(AIModels)]
		}
	}
	return defaultAIModel
}

func (c CoreConfig) AIBaseURL() string {
	return trimmedURL(c.AI.APIBaseURL, defaultAIBaseURL)
}

func (c CoreConfig) PollInterval() time.Duration {
	secs := c.UI.PollIntervalSeconds
	if secs <= 0 {
		secs = defaultPollIntervalSecs
	}
	return time.Duration(secs) * time.Second
}

func (c CoreConfig) TickInterval() time.Duration {
	ms := c.UI.TickIntervalMillis
	if ms <= 0 {
		ms = defaultTickIntervalMillis
	}
	return time.Duration(ms) * time.Millisecond
}

func (c CoreConfig) WatchRepository() bool {
	if c.UI.WatchRepository == nil {
		return true
	}
	return *c.UI.WatchRepository
}

func (c CoreConfig) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func loadCoreConfigFromPath(path string) (CoreConfig, error) {
	cfg := DefaultCoreConfig()
	if err := readTOML(path, &cfg); err != nil {
		return CoreConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "config-*.toml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func trimmedURL(raw, fallback string) string {
	value := strings.TrimRight(strings.TrimSpace(raw), "/")
	if value == "" {
		return fallback
	}
	return value
}

func normalizedList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
