package main

import (
	"io"
	"os"

	"prdeck/internal/config"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (config.CoreConfig, error)
	getenv     func(string) string
	version    string
}

func defaultCommandWiring(stdin io.Reader, stdout, stderr io.Writer) commandWiring {
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.LoadCoreConfig,
		getenv:     os.Getenv,
		version:    buildVersion(),
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"ui":      NewUICommand(wiring),
		"auth":    NewAuthCommand(wiring),
		"update":  NewUpdateCommand(wiring),
		"config":  NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadConfig),
		"version": NewVersionCommand(wiring.stdout, wiring.version),
	}
}
