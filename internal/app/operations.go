package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"prdeck/internal/config"
	"prdeck/internal/credentials"
	"prdeck/internal/git"
	"prdeck/internal/types"
	"prdeck/internal/update"
)

const (
	remoteTimeout   = 20 * time.Second
	localTimeout    = 30 * time.Second
	pushTimeout     = 2 * time.Minute
	generateTimeout = 90 * time.Second
	downloadTimeout = 15 * time.Minute
)

var (
	errNoForge = errors.New("no forge repository: run prdeck inside a clone with a GitHub origin")
	errNoGit   = errors.New("not inside a git repository")
)

func loadRepoInfoOp(forge ForgeAPI) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return repoInfoMsg{err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		var repo types.Repository
		var viewer string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			repo, err = forge.GetRepository(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			viewer, err = forge.CurrentUser(gctx)
			return err
		})
		err := g.Wait()
		return repoInfoMsg{repo: repo, viewer: viewer, err: err}
	}
}

func loadBranchOp(repo GitRepo) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return branchMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		branch, err := repo.CurrentBranch(ctx)
		return branchMsg{branch: branch, err: err}
	}
}

func loadAuthStatusOp(svc AuthService) Operation {
	return func(ctx context.Context) Outcome {
		if svc == nil {
			return authStatusMsg{err: errors.New("authentication is not configured")}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		status, err := svc.Status(ctx)
		return authStatusMsg{status: status, err: err}
	}
}

func logoutOp(svc AuthService) Operation {
	return func(ctx context.Context) Outcome {
		if svc == nil {
			return loggedOutMsg{err: errors.New("authentication is not configured")}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		return loggedOutMsg{err: svc.Logout(ctx)}
	}
}

func loadPullRequestsOp(forge ForgeAPI) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return prListMsg{err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		prs, err := forge.ListPullRequests(ctx, "open")
		return prListMsg{prs: prs, err: err}
	}
}

func loadPullRequestDetailOp(forge ForgeAPI, number uint64) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return prDetailMsg{number: number, err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		msg := prDetailMsg{number: number}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			pr, err := forge.GetPullRequest(gctx, number)
			msg.pr = pr
			return err
		})
		g.Go(func() error {
			comments, err := forge.ListComments(gctx, number)
			msg.comments = comments
			return err
		})
		g.Go(func() error {
			reactions, err := forge.ListReactions(gctx, number)
			msg.reactions = reactions
			return err
		})
		msg.err = g.Wait()
		return msg
	}
}

func addCommentOp(forge ForgeAPI, number uint64, body string) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return commentAddedMsg{number: number, err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		comment, err := forge.AddComment(ctx, number, body)
		return commentAddedMsg{number: number, comment: comment, err: err}
	}
}

func addReactionOp(forge ForgeAPI, number uint64, content string) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return reactionAddedMsg{number: number, err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		reaction, err := forge.AddReaction(ctx, number, content)
		return reactionAddedMsg{number: number, reaction: reaction, err: err}
	}
}

func removeReactionOp(forge ForgeAPI, number, reactionID uint64) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return reactionRemovedMsg{number: number, reactionID: reactionID, err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		err := forge.DeleteReaction(ctx, number, reactionID)
		return reactionRemovedMsg{number: number, reactionID: reactionID, err: err}
	}
}

func mergePullRequestOp(forge ForgeAPI, number uint64, method types.MergeMethod) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return prMergedMsg{number: number, err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		result, err := forge.MergePullRequest(ctx, number, method)
		if err == nil && !result.Merged {
			err = errors.New(firstNonEmpty(result.Message, "merge was not performed"))
		}
		return prMergedMsg{number: number, result: result, err: err}
	}
}

func createPullRequestOp(forge ForgeAPI, req types.NewPullRequest) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return prCreatedMsg{err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		pr, err := forge.CreatePullRequest(ctx, req)
		return prCreatedMsg{pr: pr, err: err}
	}
}

// loadBranchesOp merges local branches with the forge's branch list. A forge
// failure still yields the local branches.
func loadBranchesOp(repo GitRepo, forge ForgeAPI) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return branchesMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		local, err := repo.LocalBranches(ctx)
		if err != nil {
			return branchesMsg{err: err}
		}
		seen := map[string]struct{}{}
		var names []string
		for _, name := range local {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
		var remoteErr error
		if forge != nil {
			remote, err := forge.ListBranches(ctx)
			remoteErr = err
			for _, branch := range remote {
				if _, ok := seen[branch.Name]; !ok {
					seen[branch.Name] = struct{}{}
					names = append(names, branch.Name)
				}
			}
		}
		sort.Strings(names)
		return branchesMsg{branches: names, err: remoteErr}
	}
}

func generatePRContentOp(repo GitRepo, factory GeneratorFactory, model, base, head string) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return prContentMsg{err: errNoGit}
		}
		if factory == nil {
			return prContentMsg{err: errors.New("AI generation is not configured")}
		}
		ctx, cancel := context.WithTimeout(ctx, generateTimeout)
		defer cancel()
		diff, err := repo.BranchDiff(ctx, base, head)
		if err != nil {
			return prContentMsg{err: err}
		}
		gen, err := factory(ctx, model)
		if err != nil {
			return prContentMsg{err: err}
		}
		content, err := gen.PRContent(ctx, diff, head)
		return prContentMsg{content: content, err: err}
	}
}

func loadChangedFilesOp(repo GitRepo) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return changedFilesMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		files, err := repo.ChangedFiles(ctx)
		return changedFilesMsg{files: files, err: err}
	}
}

// toggleStageOp stages or unstages path and reports the refreshed status.
func toggleStageOp(repo GitRepo, file types.FileStatus) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return changedFilesMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		var err error
		if file.Staged() {
			err = repo.Unstage(ctx, file.Path)
		} else {
			err = repo.Stage(ctx, file.Path)
		}
		files, listErr := repo.ChangedFiles(ctx)
		return changedFilesMsg{files: files, err: errors.Join(err, listErr)}
	}
}

func stageAllOp(repo GitRepo) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return changedFilesMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		err := repo.StageAll(ctx)
		files, listErr := repo.ChangedFiles(ctx)
		return changedFilesMsg{files: files, err: errors.Join(err, listErr)}
	}
}

func generateCommitMessageOp(repo GitRepo, factory GeneratorFactory, model string) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return commitMessageMsg{err: errNoGit}
		}
		if factory == nil {
			return commitMessageMsg{err: errors.New("AI generation is not configured")}
		}
		ctx, cancel := context.WithTimeout(ctx, generateTimeout)
		defer cancel()
		diff, err := repo.StagedDiff(ctx)
		if err != nil {
			return commitMessageMsg{err: err}
		}
		if strings.TrimSpace(diff) == "" {
			return commitMessageMsg{err: errors.New("nothing staged; stage files before generating a message")}
		}
		gen, err := factory(ctx, model)
		if err != nil {
			return commitMessageMsg{err: err}
		}
		message, err := gen.CommitMessage(ctx, diff)
		return commitMessageMsg{message: message, err: err}
	}
}

func commitOp(repo GitRepo, message string) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return committedMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		hash, err := repo.Commit(ctx, message)
		return committedMsg{hash: hash, err: err}
	}
}

func pushOp(repo GitRepo) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return pushedMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, pushTimeout)
		defer cancel()
		return pushedMsg{err: repo.Push(ctx, false)}
	}
}

// loadTagsOp reads local and remote tags concurrently and merges them.
func loadTagsOp(repo GitRepo, forge ForgeAPI) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return tagsMsg{err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		var local, remote []types.Tag
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			local, err = repo.ListTags(gctx)
			return err
		})
		if forge != nil {
			g.Go(func() error {
				var err error
				remote, err = forge.ListTags(gctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return tagsMsg{err: err}
		}
		return tagsMsg{tags: git.MergeTags(local, remote)}
	}
}

func createTagOp(repo GitRepo, name, message string) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return tagChangedMsg{action: "create", name: name, err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		return tagChangedMsg{action: "create", name: name, err: repo.CreateTag(ctx, name, message)}
	}
}

// deleteTagOp removes the local tag and, when it was pushed, the remote one.
func deleteTagOp(repo GitRepo, tag types.Tag) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return tagChangedMsg{action: "delete", name: tag.Name, err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, pushTimeout)
		defer cancel()
		var errs []error
		if tag.Local {
			errs = append(errs, repo.DeleteTag(ctx, tag.Name))
		}
		if tag.Remote {
			errs = append(errs, repo.DeleteRemoteTag(ctx, tag.Name))
		}
		return tagChangedMsg{action: "delete", name: tag.Name, err: errors.Join(errs...)}
	}
}

func pushTagOp(repo GitRepo, name string) Operation {
	return func(ctx context.Context) Outcome {
		if repo == nil {
			return tagChangedMsg{action: "push", name: name, err: errNoGit}
		}
		ctx, cancel := context.WithTimeout(ctx, pushTimeout)
		defer cancel()
		if name == "" {
			return tagChangedMsg{action: "push", err: repo.PushTags(ctx)}
		}
		return tagChangedMsg{action: "push", name: name, err: repo.PushTag(ctx, name)}
	}
}

func loadWorkflowRunsOp(forge ForgeAPI, now func() time.Time) Operation {
	return func(ctx context.Context) Outcome {
		if forge == nil {
			return workflowRunsMsg{at: now(), err: errNoForge}
		}
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		runs, err := forge.ListWorkflowRuns(ctx)
		return workflowRunsMsg{runs: runs, at: now(), err: err}
	}
}

func saveAIModelOp(save func(config.CoreConfig) error, cfg config.CoreConfig, model string) Operation {
	return func(context.Context) Outcome {
		if save == nil {
			return aiModelSavedMsg{model: model}
		}
		cfg.AI.Model = model
		return aiModelSavedMsg{model: model, err: save(cfg)}
	}
}

func saveAPIKeyOp(secrets SecretWriter, key string) Operation {
	return func(ctx context.Context) Outcome {
		if secrets == nil {
			return apiKeySavedMsg{err: errors.New("credential store is not available")}
		}
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		return apiKeySavedMsg{err: secrets.Set(ctx, credentials.KeyGeminiAPIKey, strings.TrimSpace(key))}
	}
}

// checkUpdateOp honors the check throttle. A throttled check still reports
// an already staged update.
func checkUpdateOp(updater Updater) Operation {
	return func(ctx context.Context) Outcome {
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		if !updater.ShouldCheck(ctx) {
			pending, _ := updater.Pending(ctx)
			return updateCheckedMsg{skipped: true, pending: pending}
		}
		pending, _ := updater.Pending(ctx)
		result, err := updater.Check(ctx)
		return updateCheckedMsg{result: result, pending: pending, err: err}
	}
}

func downloadUpdateOp(updater Updater, bus *Bus, result update.CheckResult) Operation {
	return func(ctx context.Context) Outcome {
		ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
		defer cancel()
		_, err := updater.Download(ctx, result.Asset.DownloadURL, result.Version, func(done, total int64) {
			bus.TrySend(updateProgressMsg{done: done, total: total})
		})
		return updateDownloadedMsg{version: result.Version, err: err}
	}
}

func applyUpdateOp(updater Updater) Operation {
	return func(ctx context.Context) Outcome {
		ctx, cancel := context.WithTimeout(ctx, localTimeout)
		defer cancel()
		result, err := updater.ApplyPending(ctx)
		return updateAppliedMsg{result: result, err: err}
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
