package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	toml "github.com/pelletier/go-toml/v2"

	"prdeck/internal/config"
)

func testWiring(t *testing.T, stdin string, env map[string]string) (commandWiring, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("PRDECK_HOME", t.TempDir())
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return commandWiring{
		stdin:  strings.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
		loadConfig: func() (config.CoreConfig, error) {
			cfg := config.DefaultCoreConfig()
			cfg.Credentials.Backend = config.CredentialsBackendFile
			cfg.Logging.Level = "error"
			return cfg, nil
		},
		getenv:  func(key string) string { return env[key] },
		version: "1.2.3",
	}, stdout, stderr
}

func TestVersionCommandPrintsSelfTestLine(t *testing.T) {
	stdout := &bytes.Buffer{}
	if err := NewVersionCommand(stdout, "1.2.3").Run(nil); err != nil {
		t.Fatalf("version: %v", err)
	}
	if stdout.String() != "prdeck 1.2.3\n" {
		t.Fatalf("unexpected version output %q", stdout.String())
	}
}

func TestConfigCommandJSON(t *testing.T) {
	wiring, stdout, _ := testWiring(t, "", nil)
	cmd := NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadConfig)
	if err := cmd.Run(nil); err != nil {
		t.Fatalf("config: %v", err)
	}
	var out configOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout.String())
	}
	if out.Credentials.Backend != config.CredentialsBackendFile {
		t.Fatalf("expected loaded backend, got %q", out.Credentials.Backend)
	}
	if !strings.HasSuffix(out.Paths.Config, "config.toml") {
		t.Fatalf("unexpected config path %q", out.Paths.Config)
	}
	if out.UI.PollIntervalSeconds != 30 {
		t.Fatalf("expected default poll interval, got %d", out.UI.PollIntervalSeconds)
	}
}

func TestConfigCommandDefaultsTOML(t *testing.T) {
	wiring, stdout, _ := testWiring(t, "", nil)
	cmd := NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadConfig)
	if err := cmd.Run([]string{"--default", "--format", "toml"}); err != nil {
		t.Fatalf("config: %v", err)
	}
	var out configOutput
	if err := toml.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout.String())
	}
	if out.Credentials.Backend != config.CredentialsBackendKeyring {
		t.Fatalf("expected default backend, got %q", out.Credentials.Backend)
	}
	if !out.Update.AutoDownload {
		t.Fatalf("expected auto download by default")
	}
}

func TestConfigCommandRejectsUnknownFormat(t *testing.T) {
	wiring, _, _ := testWiring(t, "", nil)
	cmd := NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadConfig)
	err := cmd.Run([]string{"--format", "yaml"})
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestAuthStatusReportsEnvironmentToken(t *testing.T) {
	wiring, stdout, _ := testWiring(t, "", map[string]string{"GITHUB_TOKEN": "ghp_abcdefghijklmnop"})
	if err := NewAuthCommand(wiring).Run([]string{"status"}); err != nil {
		t.Fatalf("status: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "environment") {
		t.Fatalf("expected environment method, got %q", out)
	}
	if strings.Contains(out, "ghp_abcdefghijklmnop") {
		t.Fatalf("status leaked the token: %q", out)
	}
}

func TestAuthLoginWithPATThenStatusAndLogout(t *testing.T) {
	wiring, stdout, _ := testWiring(t, "ghp_personaltoken123\n", nil)
	cmd := NewAuthCommand(wiring)
	if err := cmd.Run([]string{"login", "--pat"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	stdout.Reset()
	if err := cmd.Run([]string{"status"}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout.String(), "Method: token") {
		t.Fatalf("expected token method, got %q", stdout.String())
	}

	if err := cmd.Run([]string{"logout"}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	stdout.Reset()
	if err := cmd.Run([]string{"status"}); err != nil {
		t.Fatalf("status after logout: %v", err)
	}
	if !strings.Contains(stdout.String(), "Not logged in") {
		t.Fatalf("expected logged out status, got %q", stdout.String())
	}
}

func TestAuthLoginWithEmptyPATFails(t *testing.T) {
	wiring, _, _ := testWiring(t, "\n", nil)
	if err := NewAuthCommand(wiring).Run([]string{"login", "--pat"}); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestAuthUnknownSubcommand(t *testing.T) {
	wiring, _, _ := testWiring(t, "", nil)
	err := NewAuthCommand(wiring).Run([]string{"whoami"})
	if err == nil || !strings.Contains(err.Error(), "unknown auth command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestUpdateCommandHonorsDisabledConfig(t *testing.T) {
	wiring, stdout, _ := testWiring(t, "", nil)
	wiring.loadConfig = func() (config.CoreConfig, error) {
		cfg := config.DefaultCoreConfig()
		cfg.Update.Disabled = true
		return cfg, nil
	}
	if err := NewUpdateCommand(wiring).Run([]string{"check"}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(stdout.String(), "disabled") {
		t.Fatalf("expected disabled notice, got %q", stdout.String())
	}
}

func TestBuildCommandsRegistersEveryCommand(t *testing.T) {
	wiring, _, _ := testWiring(t, "", nil)
	commands := buildCommands(wiring)
	for _, name := range []string{"ui", "auth", "update", "config", "version"} {
		if _, ok := commands[name]; !ok {
			t.Fatalf("missing command %q", name)
		}
	}
}
