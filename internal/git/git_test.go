package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prdeck/internal/types"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func initRepo(t *testing.T) *Repo {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q", "-b", "main"},
		{"config", "user.email", "dev@example.com"},
		{"config", "user.name", "Dev"},
		{"config", "commit.gpgsign", "false"},
		{"config", "tag.gpgsign", "false"},
		{"remote", "add", "origin", "git@github.com:acme/widgets.git"},
	} {
		if _, err := run(context.Background(), dir, args...); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}
	repo, err := Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return repo
}

func writeFile(t *testing.T, repo *Repo, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(repo.Root(), name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRepoStageCommitAndTags(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	writeFile(t, repo, "a.txt", "hello\n")
	writeFile(t, repo, "b file.txt", "spaces\n")
	files, err := repo.ChangedFiles(ctx)
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	if len(files) != 2 || !files[0].Untracked() {
		t.Fatalf("unexpected status %#v", files)
	}

	if err := repo.Stage(ctx, "a.txt"); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	diff, err := repo.StagedDiff(ctx)
	if err != nil || !strings.Contains(diff, "+hello") {
		t.Fatalf("StagedDiff: %q %v", diff, err)
	}
	if _, err := repo.Commit(ctx, "  "); err == nil {
		t.Fatalf("expected empty message error")
	}
	hash, err := repo.Commit(ctx, "feat: add a")
	if err != nil || hash == "" {
		t.Fatalf("Commit: %q %v", hash, err)
	}

	branch, err := repo.CurrentBranch(ctx)
	if err != nil || branch != "main" {
		t.Fatalf("CurrentBranch: %q %v", branch, err)
	}
	r, err := repo.Repository(ctx)
	if err != nil || r.FullName() != "acme/widgets" {
		t.Fatalf("Repository: %#v %v", r, err)
	}

	if err := repo.CreateTag(ctx, "v1.0.0", ""); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := repo.CreateTag(ctx, "v1.1.0", "second release"); err != nil {
		t.Fatalf("CreateTag annotated: %v", err)
	}
	tags, err := repo.ListTags(ctx)
	if err != nil || len(tags) != 2 {
		t.Fatalf("ListTags: %#v %v", tags, err)
	}
	if err := repo.DeleteTag(ctx, "v1.0.0"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	tags, _ = repo.ListTags(ctx)
	if len(tags) != 1 || tags[0].Name != "v1.1.0" || tags[0].Message != "second release" {
		t.Fatalf("unexpected tags after delete %#v", tags)
	}
}

func TestOpenRejectsNonRepository(t *testing.T) {
	requireGit(t)
	if _, err := Open(context.Background(), t.TempDir()); err == nil {
		t.Fatalf("expected error for non-repository")
	}
}

func TestParsePorcelainZ(t *testing.T) {
	out := " M go.mod\x00R  new.go\x00old.go\x00?? dir/new file.txt\x00"
	files := parsePorcelainZ(out)
	if len(files) != 3 {
		t.Fatalf("expected 3 entries, got %#v", files)
	}
	if files[0].Path != "go.mod" || files[0].Worktree != 'M' || files[0].Staged() {
		t.Fatalf("unexpected first entry %#v", files[0])
	}
	if files[1].Path != "new.go" || !files[1].Staged() {
		t.Fatalf("unexpected rename entry %#v", files[1])
	}
	if files[2].Path != "dir/new file.txt" || !files[2].Untracked() {
		t.Fatalf("unexpected untracked entry %#v", files[2])
	}
}

func TestParseRemote(t *testing.T) {
	valid := []string{
		"https://github.com/acme/widgets.git",
		"https://github.com/acme/widgets",
		"git@github.com:acme/widgets.git",
		"git@github.com:acme/widgets",
		"ssh://git@github.com/acme/widgets.git",
		"ssh://git@ghe.example.com:2222/acme/widgets.git",
	}
	for _, remote := range valid {
		owner, name, err := ParseRemote(remote)
		if err != nil || owner != "acme" || name != "widgets" {
			t.Fatalf("ParseRemote(%q) = %q %q %v", remote, owner, name, err)
		}
	}
	for _, remote := range []string{"", "not a url", "https://github.com/acme", "git@github.com:"} {
		if _, _, err := ParseRemote(remote); err == nil {
			t.Fatalf("expected error for %q", remote)
		}
	}
}

func TestMergeTags(t *testing.T) {
	local := []types.Tag{{Name: "v2", Local: true}, {Name: "v1", Local: true}}
	remote := []types.Tag{{Name: "v1", Remote: true}, {Name: "v0", Remote: true}}
	merged := MergeTags(local, remote)
	if len(merged) != 3 {
		t.Fatalf("unexpected merged tags %#v", merged)
	}
	if !merged[1].Local || !merged[1].Remote {
		t.Fatalf("expected v1 local and remote, got %#v", merged[1])
	}
	if merged[2].Name != "v0" || merged[2].Local {
		t.Fatalf("expected remote-only v0, got %#v", merged[2])
	}
}

func TestWatcherNotifiesOnBranchChange(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()
	writeFile(t, repo, "a.txt", "x\n")
	if err := repo.StageAll(ctx); err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	if _, err := repo.Commit(ctx, "init"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	gitDir, err := repo.GitDir(ctx)
	if err != nil {
		t.Fatalf("GitDir: %v", err)
	}

	notified := make(chan struct{}, 8)
	w, err := NewWatcher(gitDir, func() { notified <- struct{}{} }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if _, err := repo.git(ctx, "checkout", "-q", "-b", "feature"); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	select {
	case <-notified:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected watcher notification")
	}
}
