package update

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const selfTestTimeout = 10 * time.Second

// SelfTester runs a binary and returns the version it reports.
type SelfTester func(ctx context.Context, path string) (string, error)

// ExecSelfTest runs `<path> --version` and expects "prdeck <version>".
func ExecSelfTest(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, selfTestTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s --version: %w", path, err)
	}
	return parseIdentity(out.String())
}

func parseIdentity(output string) (string, error) {
	line := strings.TrimSpace(output)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	prefix := BinaryName + " "
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("unexpected identity %q", line)
	}
	version := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if version == "" {
		return "", fmt.Errorf("identity %q has no version", line)
	}
	return version, nil
}
