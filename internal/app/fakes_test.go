package app

import (
	"context"
	"sync"

	"prdeck/internal/client"
	"prdeck/internal/types"
	"prdeck/internal/update"
)

type fakeForge struct {
	mu              sync.Mutex
	prs             []types.PullRequest
	runs            []types.WorkflowRun
	reactions       []types.Reaction
	listPRCalls     int
	detailCalls     int
	listRunsCalls   int
	addedReactions  []string
	deletedReaction []uint64
}

func (f *fakeForge) Repository() types.Repository {
	return types.Repository{Owner: "acme", Name: "widgets", DefaultBranch: "main"}
}

func (f *fakeForge) GetRepository(context.Context) (types.Repository, error) {
	return f.Repository(), nil
}

func (f *fakeForge) CurrentUser(context.Context) (string, error) { return "alice", nil }

func (f *fakeForge) ListPullRequests(context.Context, string) ([]types.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPRCalls++
	return append([]types.PullRequest(nil), f.prs...), nil
}

func (f *fakeForge) GetPullRequest(_ context.Context, number uint64) (types.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	return types.PullRequest{Number: number, Title: "Add widgets", State: types.PullRequestOpen}, nil
}

func (f *fakeForge) CreatePullRequest(_ context.Context, req types.NewPullRequest) (types.PullRequest, error) {
	return types.PullRequest{Number: 99, Title: req.Title, State: types.PullRequestOpen}, nil
}

func (f *fakeForge) MergePullRequest(context.Context, uint64, types.MergeMethod) (client.MergeResult, error) {
	return client.MergeResult{Merged: true}, nil
}

func (f *fakeForge) ListComments(context.Context, uint64) ([]types.Comment, error) { return nil, nil }

func (f *fakeForge) AddComment(_ context.Context, _ uint64, body string) (types.Comment, error) {
	return types.Comment{ID: 1, Author: "alice", Body: body}, nil
}

func (f *fakeForge) ListReactions(context.Context, uint64) ([]types.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Reaction(nil), f.reactions...), nil
}

func (f *fakeForge) AddReaction(_ context.Context, _ uint64, content string) (types.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedReactions = append(f.addedReactions, content)
	return types.Reaction{ID: 500, Content: content, User: "alice"}, nil
}

func (f *fakeForge) DeleteReaction(_ context.Context, _ uint64, reactionID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedReaction = append(f.deletedReaction, reactionID)
	return nil
}

func (f *fakeForge) ListBranches(context.Context) ([]types.Branch, error) {
	return []types.Branch{{Name: "main"}, {Name: "feature"}}, nil
}

func (f *fakeForge) ListTags(context.Context) ([]types.Tag, error) { return nil, nil }

func (f *fakeForge) ListWorkflowRuns(context.Context) ([]types.WorkflowRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listRunsCalls++
	return append([]types.WorkflowRun(nil), f.runs...), nil
}

func (f *fakeForge) calls() (list, detail, runs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listPRCalls, f.detailCalls, f.listRunsCalls
}

type fakeUpdater struct {
	mu          sync.Mutex
	check       update.CheckResult
	applyResult update.ApplyResult
	applyErr    error
	downloads   int
	applies     int
}

func (u *fakeUpdater) ShouldCheck(context.Context) bool       { return true }
func (u *fakeUpdater) Pending(context.Context) (string, bool) { return "", false }

func (u *fakeUpdater) Check(context.Context) (update.CheckResult, error) {
	return u.check, nil
}

func (u *fakeUpdater) Download(_ context.Context, _ string, version string, progress update.ProgressFunc) (string, error) {
	u.mu.Lock()
	u.downloads++
	u.mu.Unlock()
	progress(50, 100)
	progress(100, 100)
	return "/tmp/prdeck-" + version, nil
}

func (u *fakeUpdater) ApplyPending(context.Context) (update.ApplyResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.applies++
	return u.applyResult, u.applyErr
}
