package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName = ".prdeck"
	homeEnvVar = "PRDECK_HOME"
)

// DataDir returns the base directory for prdeck state. PRDECK_HOME
// overrides the default of ~/.prdeck.
func DataDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(homeEnvVar)); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

func dataPath(parts ...string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dataDir}, parts...)...), nil
}

// CoreConfigPath returns the path to config.toml.
func CoreConfigPath() (string, error) {
	return dataPath("config.toml")
}

// UpdateCheckpointPath returns the path to the self-update checkpoint.
func UpdateCheckpointPath() (string, error) {
	return dataPath("update-state.json")
}

// UpdatesDir returns the staging directory for downloaded releases.
func UpdatesDir() (string, error) {
	return dataPath("updates")
}

// SecretsDBPath returns the bbolt database used by the file secret backend.
func SecretsDBPath() (string, error) {
	return dataPath("secrets.db")
}

func UILogPath() (string, error) {
	return dataPath("logs", "ui.log")
}
