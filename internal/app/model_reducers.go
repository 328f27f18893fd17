package app

import (
	"fmt"
	"strings"

	"prdeck/internal/auth"
	"prdeck/internal/client"
	"prdeck/internal/logging"
	"prdeck/internal/types"
	"prdeck/internal/update"
)

// applyOutcome folds one outcome into the model. Fetch bookkeeping is
// settled first so a discarded stale result can still be refetched.
func (m *Model) applyOutcome(o Outcome) {
	stale := false
	if s, ok := o.(scoped); ok && s.target() != m.screen {
		stale = true
	}
	m.settleFetch(o, stale)
	m.releaseBusy(o)
	if stale {
		m.logger.Debug("discarding stale outcome", logging.F("type", fmt.Sprintf("%T", o)), logging.F("screen", m.screen.Title()))
		return
	}

	switch msg := o.(type) {
	case taskFailedMsg:
		m.clearInflight(msg.op)
		m.showPopup("Task failed", errorText(msg.err), false)
	case repoInfoMsg:
		m.applyRepoInfo(msg)
	case branchMsg:
		if msg.err != nil {
			m.logger.Warn("current branch unavailable", logging.Err(msg.err))
			return
		}
		m.branch = msg.branch
	case authStatusMsg:
		if msg.err != nil {
			m.reportError("Credentials", msg.err)
			return
		}
		m.authStatus = msg.status
		m.authLoaded = true
		m.needsLogin = msg.status.Method == auth.MethodNone
	case repoChangedMsg:
		m.onRepoChanged()
	case copiedMsg:
		if msg.err != nil {
			m.setStatus(statusError, "copy failed: %v", msg.err)
			return
		}
		m.setStatus(statusInfo, "copied %s", msg.label)

	case prListMsg:
		m.prList.err = msg.err
		if msg.err != nil {
			m.reportLoadError("pull requests", msg.err)
			return
		}
		m.prList.items = msg.prs
		m.prList.cursor = clampCursor(m.prList.cursor, len(msg.prs))
	case prDetailMsg:
		m.applyDetail(msg)
	case commentAddedMsg:
		m.applyCommentAdded(msg)
	case reactionAddedMsg:
		m.applyReactionAdded(msg)
	case reactionRemovedMsg:
		m.applyReactionRemoved(msg)
	case prMergedMsg:
		m.applyMerged(msg)
	case prCreatedMsg:
		m.applyCreated(msg)
	case branchesMsg:
		if msg.err != nil {
			m.reportLoadError("branches", msg.err)
		}
		if len(msg.branches) > 0 {
			m.prCreate.branches = msg.branches
		}
	case prContentMsg:
		if msg.err != nil {
			m.reportError("Generate pull request", msg.err)
			return
		}
		m.prCreate.title.SetValue(msg.content.Title)
		m.prCreate.body.SetValue(msg.content.Body)
		m.setStatus(statusInfo, "generated title and description")

	case changedFilesMsg:
		m.commit.err = msg.err
		if msg.err != nil {
			m.reportLoadError("changed files", msg.err)
		}
		if msg.files != nil || msg.err == nil {
			m.commit.files = msg.files
			m.commit.cursor = clampCursor(m.commit.cursor, len(msg.files))
		}
	case commitMessageMsg:
		if msg.err != nil {
			m.reportError("Generate commit message", msg.err)
			return
		}
		m.commit.message.SetValue(msg.message)
		m.setStatus(statusInfo, "generated commit message")
	case committedMsg:
		m.applyCommitted(msg)
	case pushedMsg:
		m.commit.pushing = false
		if msg.err != nil {
			m.reportError("Push", msg.err)
			return
		}
		m.setStatus(statusInfo, "pushed %s", firstNonEmpty(m.branch, "branch"))

	case tagsMsg:
		m.tags.err = msg.err
		if msg.err != nil {
			m.reportLoadError("tags", msg.err)
			return
		}
		m.tags.items = msg.tags
		m.tags.cursor = clampCursor(m.tags.cursor, len(msg.tags))
	case tagChangedMsg:
		m.applyTagChanged(msg)
	case workflowRunsMsg:
		m.applyWorkflowRuns(msg)

	case aiModelSavedMsg:
		m.settings.savingModel = false
		if msg.err != nil {
			m.reportError("Save settings", msg.err)
			return
		}
		m.cfg.AI.Model = msg.model
		m.setStatus(statusInfo, "AI model set to %s", msg.model)
	case apiKeySavedMsg:
		if msg.err != nil {
			m.reportError("Save API key", msg.err)
			return
		}
		m.setStatus(statusInfo, "Gemini API key saved")
	case loggedOutMsg:
		if msg.err != nil {
			m.reportError("Logout", msg.err)
			return
		}
		m.authStatus = auth.Status{Method: auth.MethodNone}
		m.authLoaded = true
		m.needsLogin = true
		m.viewer = ""
		m.loaded = map[fetchKey]bool{}
		m.setStatus(statusInfo, "logged out")

	case updateCheckedMsg:
		m.applyUpdateChecked(msg)
	case updateProgressMsg:
		if m.update.downloading {
			m.update.done = msg.done
			m.update.total = msg.total
		}
	case updateDownloadedMsg:
		m.update.downloading = false
		if msg.err != nil {
			m.logger.Warn("update download failed", logging.Err(msg.err), logging.F("version", msg.version))
			m.setStatus(statusWarning, "update %s could not be staged", update.DisplayVersion(msg.version))
			return
		}
		m.update.ready = msg.version
		m.setStatus(statusInfo, "update %s ready; press U to install", update.DisplayVersion(msg.version))
	case updateAppliedMsg:
		m.applyUpdateApplied(msg)
	}
}

func (m *Model) settleFetch(o Outcome, stale bool) {
	var key fetchKey
	var err error
	switch msg := o.(type) {
	case prListMsg:
		key, err = fetchPullRequests, msg.err
	case prDetailMsg:
		key, err = detailFetchKey(msg.number), msg.err
	case branchesMsg:
		key, err = fetchBranches, msg.err
	case changedFilesMsg:
		key, err = fetchChangedFiles, msg.err
	case tagsMsg:
		key, err = fetchTags, msg.err
	case workflowRunsMsg:
		key, err = fetchWorkflowRuns, msg.err
		if !stale {
			m.runs.fetchedAt = msg.at
		}
	default:
		return
	}
	delete(m.inflight, key)
	if err == nil && !stale {
		m.loaded[key] = true
	}
}

// releaseBusy clears the in-progress flag an outcome settles. It runs for
// stale and crashed results too, or the action would stay locked.
func (m *Model) releaseBusy(o Outcome) {
	op := ""
	switch msg := o.(type) {
	case prContentMsg:
		op = "generate-pull-request"
	case commitMessageMsg:
		op = "generate-commit-message"
	case taskFailedMsg:
		op = msg.op
	default:
		return
	}
	switch op {
	case "generate-pull-request":
		m.prCreate.generating = false
	case "generate-commit-message":
		m.commit.generating = false
	case "create-pull-request":
		m.prCreate.submitting = false
	case "commit":
		m.commit.committing = false
	case "push":
		m.commit.pushing = false
	case "merge":
		m.prDetail.merging = false
	case "add-reaction", "remove-reaction":
		m.prDetail.reacting = false
	case "create-tag", "push-tag", "push-tags", "delete-tag":
		m.tags.busy = false
	case "save-ai-model":
		m.settings.savingModel = false
	case "update-check":
		m.update.checking = false
	case "update-download":
		m.update.downloading = false
	case "update-apply":
		m.update.applying = false
	}
}

func needsLogin(err error) bool {
	return auth.NeedsLogin(err) || client.IsUnauthorized(err)
}

// reportError shows a popup for a failed user action. Credential failures
// flag the session and point at the login command instead.
func (m *Model) reportError(title string, err error) {
	m.logger.Warn(strings.ToLower(title)+" failed", logging.Err(err))
	if needsLogin(err) {
		m.needsLogin = true
		m.showPopup("Authentication required", err.Error()+"\n\nRun `prdeck auth login` in another terminal, then press r to retry.", false)
		return
	}
	m.showPopup(title, err.Error(), false)
}

// reportLoadError keeps list failures inline; only credential problems
// interrupt with a popup.
func (m *Model) reportLoadError(what string, err error) {
	if needsLogin(err) {
		m.reportError("Load "+what, err)
		return
	}
	m.logger.Warn("load failed", logging.F("what", what), logging.Err(err))
	m.setStatus(statusError, "could not load %s: %v", what, err)
}

func (m *Model) applyRepoInfo(msg repoInfoMsg) {
	if msg.err != nil {
		if needsLogin(msg.err) {
			m.needsLogin = true
		}
		m.logger.Warn("repository info unavailable", logging.Err(msg.err))
		return
	}
	m.repo = msg.repo
	m.viewer = msg.viewer
	m.needsLogin = false
	if m.prCreate.base == "" {
		m.prCreate.base = msg.repo.DefaultBranch
	}
}

func (m *Model) onRepoChanged() {
	if m.services.Git != nil {
		m.dispatcher.DispatchBlocking("current-branch", loadBranchOp(m.services.Git))
	}
	m.invalidate(fetchTags)
	m.invalidate(fetchBranches)
	if m.screen.Kind == ScreenCommit {
		m.fetch(fetchChangedFiles, true, "changed-files", loadChangedFilesOp(m.services.Git), true)
		return
	}
	m.invalidate(fetchChangedFiles)
}

func (m *Model) applyDetail(msg prDetailMsg) {
	m.prDetail.err = msg.err
	if msg.err != nil {
		m.reportLoadError(fmt.Sprintf("pull request #%d", msg.number), msg.err)
		m.refreshDetailViewport()
		return
	}
	pr := msg.pr
	m.prDetail.number = msg.number
	m.prDetail.pr = &pr
	m.prDetail.comments = msg.comments
	m.prDetail.reactions = msg.reactions
	m.refreshDetailViewport()
}

func (m *Model) onDetail(number uint64) bool {
	return m.screen == PRDetailScreen(number) && m.prDetail.number == number
}

func (m *Model) applyCommentAdded(msg commentAddedMsg) {
	if msg.err != nil {
		m.reportError("Add comment", msg.err)
		return
	}
	m.setStatus(statusInfo, "comment added to #%d", msg.number)
	if !m.onDetail(msg.number) {
		return
	}
	m.prDetail.comments = append(m.prDetail.comments, msg.comment)
	if m.prDetail.pr != nil {
		m.prDetail.pr.Comments++
	}
	m.refreshDetailViewport()
	m.prDetail.viewport.GotoBottom()
}

func (m *Model) applyReactionAdded(msg reactionAddedMsg) {
	if m.prDetail.number == msg.number {
		m.prDetail.reacting = false
	}
	if msg.err != nil {
		m.reportError("Add reaction", msg.err)
		return
	}
	if !m.onDetail(msg.number) {
		return
	}
	for _, existing := range m.prDetail.reactions {
		if existing.ID == msg.reaction.ID {
			return
		}
	}
	m.prDetail.reactions = append(m.prDetail.reactions, msg.reaction)
	m.refreshDetailViewport()
}

func (m *Model) applyReactionRemoved(msg reactionRemovedMsg) {
	if m.prDetail.number == msg.number {
		m.prDetail.reacting = false
	}
	if msg.err != nil {
		m.reportError("Remove reaction", msg.err)
		return
	}
	if !m.onDetail(msg.number) {
		return
	}
	kept := m.prDetail.reactions[:0]
	for _, reaction := range m.prDetail.reactions {
		if reaction.ID != msg.reactionID {
			kept = append(kept, reaction)
		}
	}
	m.prDetail.reactions = kept
	m.refreshDetailViewport()
}

func (m *Model) applyMerged(msg prMergedMsg) {
	if m.prDetail.number == msg.number {
		m.prDetail.merging = false
	}
	if msg.err != nil {
		m.reportError(fmt.Sprintf("Merge #%d", msg.number), msg.err)
		return
	}
	m.invalidate(fetchPullRequests)
	m.setStatus(statusInfo, "merged #%d", msg.number)
	if m.onDetail(msg.number) && m.prDetail.pr != nil {
		m.prDetail.pr.State = types.PullRequestMerged
		m.refreshDetailViewport()
	}
}

func (m *Model) applyCreated(msg prCreatedMsg) {
	m.prCreate.submitting = false
	if msg.err != nil {
		m.reportError("Create pull request", msg.err)
		return
	}
	m.invalidate(fetchPullRequests)
	m.setStatus(statusInfo, "created #%d", msg.pr.Number)
	m.prCreate.title.Reset()
	m.prCreate.body.Reset()
	m.prCreate.draft = false
	if m.screen.Kind == ScreenPRCreate {
		m.navigate(PRDetailScreen(msg.pr.Number))
	}
}

func (m *Model) applyCommitted(msg committedMsg) {
	m.commit.committing = false
	if msg.err != nil {
		m.reportError("Commit", msg.err)
		return
	}
	m.commit.message.Reset()
	m.commit.editing = false
	m.commit.message.Blur()
	m.setStatus(statusInfo, "committed %s", shortHash(msg.hash))
	if m.screen.Kind == ScreenCommit {
		m.fetch(fetchChangedFiles, true, "changed-files", loadChangedFilesOp(m.services.Git), true)
		return
	}
	m.invalidate(fetchChangedFiles)
}

func (m *Model) applyTagChanged(msg tagChangedMsg) {
	m.tags.busy = false
	if msg.err != nil {
		m.reportError(fmt.Sprintf("Tag %s", msg.action), msg.err)
	} else {
		switch {
		case msg.action == "push" && msg.name == "":
			m.setStatus(statusInfo, "pushed all tags")
		default:
			m.setStatus(statusInfo, "tag %s: %s", msg.name, pastTense(msg.action))
		}
	}
	if m.screen.Kind == ScreenTags {
		m.fetch(fetchTags, true, "tags", loadTagsOp(m.services.Git, m.services.Forge), true)
		return
	}
	m.invalidate(fetchTags)
}

// applyWorkflowRuns keeps the selection on the same run across polls.
func (m *Model) applyWorkflowRuns(msg workflowRunsMsg) {
	m.runs.err = msg.err
	if msg.err != nil {
		m.reportLoadError("workflow runs", msg.err)
		return
	}
	m.runs.items = msg.runs
	m.runs.cursor = clampCursor(m.runs.cursor, len(msg.runs))
	if m.runs.selectedID != 0 {
		for i, run := range msg.runs {
			if run.ID == m.runs.selectedID {
				m.runs.cursor = i
				break
			}
		}
	}
	if len(msg.runs) > 0 {
		m.runs.selectedID = msg.runs[m.runs.cursor].ID
	}
}

func (m *Model) startUpdateCheck() {
	if m.services.Updater == nil || m.update.checking {
		return
	}
	m.update.checking = true
	m.dispatcher.Dispatch("update-check", checkUpdateOp(m.services.Updater))
}

func (m *Model) applyUpdateChecked(msg updateCheckedMsg) {
	m.update.checking = false
	if msg.pending != "" {
		m.update.ready = msg.pending
	}
	if msg.err != nil {
		m.logger.Warn("update check failed", logging.Err(msg.err))
		return
	}
	if msg.skipped || !msg.result.Available {
		return
	}
	result := msg.result
	m.update.available = result.Version
	m.update.candidate = &result
	if canonicalEqual(m.update.ready, result.Version) {
		return
	}
	if m.cfg.UpdateAutoDownload() {
		m.startUpdateDownload()
		return
	}
	m.setStatus(statusInfo, "update %s available; press U to download", update.DisplayVersion(result.Version))
}

func (m *Model) startUpdateDownload() {
	if m.services.Updater == nil || m.update.candidate == nil || m.update.downloading {
		return
	}
	m.update.downloading = true
	m.update.done, m.update.total = 0, 0
	m.dispatcher.Dispatch("update-download", downloadUpdateOp(m.services.Updater, m.bus, *m.update.candidate))
}

// installUpdate is bound to U: it applies a staged update, or downloads an
// available one when automatic downloads are off.
func (m *Model) installUpdate() {
	switch {
	case m.services.Updater == nil:
		m.setStatus(statusWarning, "updates are disabled")
	case m.update.applying:
		m.setStatus(statusWarning, "update install already running")
	case m.update.ready != "":
		m.update.applying = true
		m.dispatcher.DispatchBlocking("update-apply", applyUpdateOp(m.services.Updater))
	case m.update.downloading:
		m.setStatus(statusWarning, "update download in progress")
	case m.update.candidate != nil:
		m.startUpdateDownload()
	default:
		m.setStatus(statusInfo, "no update available")
	}
}

func (m *Model) applyUpdateApplied(msg updateAppliedMsg) {
	m.update.applying = false
	switch msg.result {
	case update.ApplyApplied:
		m.update.applied = m.update.ready
		m.update.ready = ""
		m.update.available = ""
		m.update.candidate = nil
		m.setStatus(statusInfo, "updated to %s; restart prdeck to use it", update.DisplayVersion(m.update.applied))
	case update.ApplyNothingPending:
		m.update.ready = ""
		m.setStatus(statusWarning, "no update is staged")
	case update.ApplyRolledBack:
		m.update.ready = ""
		m.setStatus(statusError, "update failed verification and was rolled back")
		m.logger.Warn("update rolled back", logging.Err(msg.err))
	default:
		if update.IsCritical(msg.err) {
			m.logger.Error("update rollback failed", logging.Err(msg.err))
			m.showPopup("Update failed", errorText(msg.err), true)
			return
		}
		if update.IsKind(msg.err, update.KindIntegrityMismatch) {
			m.update.ready = ""
		}
		m.setStatus(statusError, "update failed: %s", errorText(msg.err))
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func canonicalEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
}

func clampCursor(cursor, n int) int {
	if n <= 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		return n - 1
	}
	return cursor
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func pastTense(action string) string {
	switch action {
	case "create":
		return "created"
	case "delete":
		return "deleted"
	case "push":
		return "pushed"
	}
	return action
}
