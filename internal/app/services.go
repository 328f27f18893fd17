package app

import (
	"context"

	"prdeck/internal/ai"
	"prdeck/internal/auth"
	"prdeck/internal/client"
	"prdeck/internal/config"
	"prdeck/internal/types"
	"prdeck/internal/update"
)

type ForgeAPI interface {
	Repository() types.Repository
	GetRepository(ctx context.Context) (types.Repository, error)
	CurrentUser(ctx context.Context) (string, error)
	ListPullRequests(ctx context.Context, state string) ([]types.PullRequest, error)
	GetPullRequest(ctx context.Context, number uint64) (types.PullRequest, error)
	CreatePullRequest(ctx context.Context, req types.NewPullRequest) (types.PullRequest, error)
	MergePullRequest(ctx context.Context, number uint64, method types.MergeMethod) (client.MergeResult, error)
	ListComments(ctx context.Context, number uint64) ([]types.Comment, error)
	AddComment(ctx context.Context, number uint64, body string) (types.Comment, error)
	ListReactions(ctx context.Context, number uint64) ([]types.Reaction, error)
	AddReaction(ctx context.Context, number uint64, content string) (types.Reaction, error)
	DeleteReaction(ctx context.Context, number, reactionID uint64) error
	ListBranches(ctx context.Context) ([]types.Branch, error)
	ListTags(ctx context.Context) ([]types.Tag, error)
	ListWorkflowRuns(ctx context.Context) ([]types.WorkflowRun, error)
}

type GitRepo interface {
	CurrentBranch(ctx context.Context) (string, error)
	LocalBranches(ctx context.Context) ([]string, error)
	ChangedFiles(ctx context.Context) ([]types.FileStatus, error)
	Stage(ctx context.Context, paths ...string) error
	Unstage(ctx context.Context, paths ...string) error
	StageAll(ctx context.Context) error
	Commit(ctx context.Context, message string) (string, error)
	Push(ctx context.Context, force bool) error
	StagedDiff(ctx context.Context) (string, error)
	BranchDiff(ctx context.Context, base, head string) (string, error)
	ListTags(ctx context.Context) ([]types.Tag, error)
	CreateTag(ctx context.Context, name, message string) error
	DeleteTag(ctx context.Context, name string) error
	PushTag(ctx context.Context, name string) error
	PushTags(ctx context.Context) error
	DeleteRemoteTag(ctx context.Context, name string) error
}

type AuthService interface {
	Status(ctx context.Context) (auth.Status, error)
	Logout(ctx context.Context) error
}

type Updater interface {
	ShouldCheck(ctx context.Context) bool
	Pending(ctx context.Context) (string, bool)
	Check(ctx context.Context) (update.CheckResult, error)
	Download(ctx context.Context, url, version string, progress update.ProgressFunc) (string, error)
	ApplyPending(ctx context.Context) (update.ApplyResult, error)
}

type Generator interface {
	CommitMessage(ctx context.Context, diff string) (string, error)
	PRContent(ctx context.Context, diff, branch string) (ai.PRContent, error)
}

// GeneratorFactory builds a generator for model, resolving the API key at
// call time.
type GeneratorFactory func(ctx context.Context, model string) (Generator, error)

type SecretWriter interface {
	Set(ctx context.Context, name, value string) error
}

// Services are the collaborators background operations call. Forge and Git
// are nil when the working directory is not a forge repository; Updater is
// nil when updates are disabled.
type Services struct {
	Forge      ForgeAPI
	Git        GitRepo
	GitDir     string
	Auth       AuthService
	Updater    Updater
	Generator  GeneratorFactory
	Secrets    SecretWriter
	SaveConfig func(config.CoreConfig) error
}
