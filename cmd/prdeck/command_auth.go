package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/term"

	"prdeck/internal/auth"
	"prdeck/internal/logging"
)

type AuthCommand struct {
	wiring commandWiring
}

func NewAuthCommand(wiring commandWiring) *AuthCommand {
	return &AuthCommand{wiring: wiring}
}

func (c *AuthCommand) Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: prdeck auth <login|logout|status>")
	}
	switch args[0] {
	case "login":
		return c.login(args[1:])
	case "logout":
		return c.logout(args[1:])
	case "status":
		return c.status(args[1:])
	default:
		return fmt.Errorf("unknown auth command: %s", args[0])
	}
}

func (c *AuthCommand) open() (*session, error) {
	cfg, err := c.wiring.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(c.wiring.stderr, logging.ParseLevel(cfg.LogLevel()))
	return openSession(cfg, c.wiring.getenv, logger)
}

func (c *AuthCommand) login(args []string) error {
	fs := flag.NewFlagSet("auth login", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	pat := fs.Bool("pat", false, "store a personal access token read from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := c.open()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *pat {
		token, err := c.readToken()
		if err != nil {
			return err
		}
		if err := sess.auth.LoginWithToken(ctx, token); err != nil {
			return err
		}
		fmt.Fprintln(c.wiring.stdout, "Personal access token stored.")
		return nil
	}

	code, err := sess.oauth.RequestCode(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.wiring.stdout, "Open %s and enter the code: %s\n", code.VerificationURI, code.UserCode)
	fmt.Fprintln(c.wiring.stdout, "Waiting for authorization…")
	data, err := sess.oauth.Poll(ctx, code)
	if err != nil {
		return err
	}
	if err := sess.auth.StoreTokenData(ctx, data); err != nil {
		return err
	}
	fmt.Fprintln(c.wiring.stdout, "Logged in.")
	return nil
}

// readToken reads without echo from a terminal, or one line from piped
// input.
func (c *AuthCommand) readToken() (string, error) {
	if f, ok := c.wiring.stdin.(*os.File); ok && isTerminal(f) {
		fmt.Fprint(c.wiring.stderr, "Token: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.wiring.stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := bufio.NewReader(c.wiring.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no token provided on stdin")
	}
	return token, nil
}

func (c *AuthCommand) logout(args []string) error {
	fs := flag.NewFlagSet("auth logout", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := c.open()
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.auth.Logout(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(c.wiring.stdout, "Stored credentials removed.")
	if strings.TrimSpace(c.wiring.getenv(auth.EnvTokenVar)) != "" {
		fmt.Fprintf(c.wiring.stdout, "%s is still set and will be used.\n", auth.EnvTokenVar)
	}
	return nil
}

func (c *AuthCommand) status(args []string) error {
	fs := flag.NewFlagSet("auth status", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := c.open()
	if err != nil {
		return err
	}
	defer sess.Close()
	st, err := sess.auth.Status(context.Background())
	if err != nil {
		return err
	}
	if st.Method == auth.MethodNone {
		fmt.Fprintln(c.wiring.stdout, "Not logged in. Run `prdeck auth login`.")
		return nil
	}
	fmt.Fprintf(c.wiring.stdout, "Method: %s\n", st.Method)
	fmt.Fprintf(c.wiring.stdout, "Token:  %s\n", st.MaskedToken)
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(c.wiring.stdout, "Expires: %s\n", st.ExpiresAt.Local().Format(time.RFC1123))
		fmt.Fprintf(c.wiring.stdout, "Refreshable: %t\n", st.CanRefresh)
	}
	return nil
}

func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
