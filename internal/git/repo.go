package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"prdeck/internal/types"
)

// Repo runs git against one working tree. Every method blocks on a git
// subprocess.
type Repo struct {
	root string
}

// Open resolves the working tree containing dir.
func Open(ctx context.Context, dir string) (*Repo, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("directory is required")
	}
	out, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return &Repo{root: strings.TrimSpace(out)}, nil
}

func (r *Repo) Root() string {
	return r.root
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return run(ctx, r.root, args...)
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s failed: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// GitDir returns the absolute .git directory.
func (r *Repo) GitDir(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) OriginURL(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Repository derives the forge repository from the origin remote.
func (r *Repo) Repository(ctx context.Context) (types.Repository, error) {
	remote, err := r.OriginURL(ctx)
	if err != nil {
		return types.Repository{}, err
	}
	owner, name, err := ParseRemote(remote)
	if err != nil {
		return types.Repository{}, err
	}
	return types.Repository{Owner: owner, Name: name, DefaultBranch: "main"}, nil
}

func (r *Repo) LocalBranches(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

func (r *Repo) ChangedFiles(ctx context.Context) ([]types.FileStatus, error) {
	out, err := r.git(ctx, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parsePorcelainZ(out), nil
}

func (r *Repo) Stage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := r.git(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

func (r *Repo) Unstage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := r.git(ctx, append([]string{"restore", "--staged", "--"}, paths...)...)
	return err
}

func (r *Repo) StageAll(ctx context.Context) error {
	_, err := r.git(ctx, "add", "-A")
	return err
}

// Commit records the staged changes and returns the short hash.
func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("commit message is required")
	}
	if _, err := r.git(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	out, err := r.git(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Push pushes the current branch, setting origin as upstream when the
// branch has none.
func (r *Repo) Push(ctx context.Context, force bool) error {
	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if branch == "HEAD" {
		return errors.New("cannot push a detached HEAD")
	}
	args := []string{"push"}
	if force {
		args = append(args, "--force-with-lease")
	}
	if _, err := r.git(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}"); err != nil {
		args = append(args, "--set-upstream", "origin", branch)
	}
	_, err = r.git(ctx, args...)
	return err
}

func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	return r.git(ctx, "diff", "--cached")
}

// BranchDiff returns the changes head introduces over base, preferring the
// remote-tracking base when it exists.
func (r *Repo) BranchDiff(ctx context.Context, base, head string) (string, error) {
	if out, err := r.git(ctx, "diff", "origin/"+base+"..."+head); err == nil {
		return out, nil
	}
	return r.git(ctx, "diff", base+"..."+head)
}

func (r *Repo) CommitsBetween(ctx context.Context, base, head string) ([]string, error) {
	out, err := r.git(ctx, "log", "--format=%s", base+".."+head)
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

func nonEmptyLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parsePorcelainZ parses `git status --porcelain=v1 -z`. Rename and copy
// entries carry the original path as an extra NUL-terminated field.
func parsePorcelainZ(out string) []types.FileStatus {
	var files []types.FileStatus
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		status := types.FileStatus{Index: entry[0], Worktree: entry[1], Path: entry[3:]}
		if status.Index == 'R' || status.Index == 'C' {
			i++
		}
		files = append(files, status)
	}
	return files
}
