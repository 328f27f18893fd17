package main

import (
	"fmt"
	"os"
)

const usageText = `prdeck is a terminal client for GitHub pull requests, tags and workflow runs.

Usage:
  prdeck [command] [flags]

Commands:
  ui        run the terminal UI (default)
  auth      login, logout or show credential status
  update    check for or install a new release
  config    print configuration (effective or defaults)
  version   print the version
  help      show help

Flags:
  -h, --help      show help
  -v, --version   print the version

Examples:
  prdeck
  prdeck auth login
  prdeck auth login --pat < token.txt
  prdeck update install
  prdeck config --format toml
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	wiring := defaultCommandWiring(os.Stdin, os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	name := "ui"
	if len(args) > 0 {
		switch args[0] {
		case "-h", "--help", "help":
			printUsage()
			return
		case "-v", "--version":
			name = "version"
			args = args[1:]
		default:
			if len(args[0]) > 0 && args[0][0] != '-' {
				name = args[0]
				args = args[1:]
			}
		}
	}

	runner, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", name)
		printUsage()
		os.Exit(2)
	}
	exitOnErr(name, runner.Run(args), wiring.stderr)
}
