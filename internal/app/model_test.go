package app

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"prdeck/internal/config"
	"prdeck/internal/types"
	"prdeck/internal/update"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, services Services) *Model {
	t.Helper()
	return NewModel(config.DefaultCoreConfig(), services, WithClock(func() time.Time { return testNow }))
}

// settle waits for dispatched operations and lets the scheduler drain them.
func settle(m *Model) {
	m.dispatcher.Wait()
	m.Update(busReadyMsg{})
}

func press(text string) tea.KeyPressMsg {
	r := []rune(text)
	return tea.KeyPressMsg{Code: r[0], Text: text}
}

func TestGoBackWithEmptyHistoryIsNoop(t *testing.T) {
	m := newTestModel(t, Services{})
	m.goBack()
	if m.screen != DashboardScreen() {
		t.Fatalf("expected dashboard, got %#v", m.screen)
	}
	m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.screen != DashboardScreen() {
		t.Fatalf("expected dashboard after esc, got %#v", m.screen)
	}
}

func TestNavigateAndGoBack(t *testing.T) {
	forge := &fakeForge{prs: []types.PullRequest{{Number: 7, Title: "Add widgets", State: types.PullRequestOpen}}}
	m := newTestModel(t, Services{Forge: forge})

	m.navigate(Screen{Kind: ScreenPRList})
	settle(m)
	m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.screen != PRDetailScreen(7) {
		t.Fatalf("expected detail for #7, got %#v", m.screen)
	}
	m.goBack()
	if m.screen.Kind != ScreenPRList {
		t.Fatalf("expected PR list, got %#v", m.screen)
	}
	m.goBack()
	if m.screen != DashboardScreen() {
		t.Fatalf("expected dashboard, got %#v", m.screen)
	}
	m.dispatcher.Wait()
}

func TestFetchIsIdempotentUntilForced(t *testing.T) {
	forge := &fakeForge{prs: []types.PullRequest{{Number: 1, Title: "one"}}}
	m := newTestModel(t, Services{Forge: forge})

	m.navigate(Screen{Kind: ScreenPRList})
	m.goBack()
	m.navigate(Screen{Kind: ScreenPRList})
	m.dispatcher.Wait()
	if list, _, _ := forge.calls(); list != 1 {
		t.Fatalf("expected in-flight fetch to be reused, got %d calls", list)
	}

	m.Update(busReadyMsg{})
	m.goBack()
	m.navigate(Screen{Kind: ScreenPRList})
	m.dispatcher.Wait()
	if list, _, _ := forge.calls(); list != 1 {
		t.Fatalf("expected loaded list to be reused, got %d calls", list)
	}

	m.Update(press("r"))
	m.dispatcher.Wait()
	if list, _, _ := forge.calls(); list != 2 {
		t.Fatalf("expected refresh to refetch, got %d calls", list)
	}
}

func TestDetailAlwaysRefetches(t *testing.T) {
	forge := &fakeForge{}
	m := newTestModel(t, Services{Forge: forge})

	m.navigate(PRDetailScreen(4))
	settle(m)
	m.goBack()
	m.navigate(PRDetailScreen(4))
	settle(m)
	if _, detail, _ := forge.calls(); detail != 2 {
		t.Fatalf("expected two detail fetches, got %d", detail)
	}
	if m.prDetail.pr == nil || m.prDetail.pr.Number != 4 {
		t.Fatalf("expected detail for #4, got %#v", m.prDetail.pr)
	}
}

func TestAllQueuedOutcomesAppliedOnceInOneUpdate(t *testing.T) {
	m := newTestModel(t, Services{})
	m.screen = PRDetailScreen(7)
	m.prDetail.number = 7
	m.prDetail.pr = &types.PullRequest{Number: 7, Title: "Add widgets", State: types.PullRequestOpen}

	for i := 0; i < 5; i++ {
		m.bus.Send(commentAddedMsg{number: 7, comment: types.Comment{ID: uint64(i + 1), Author: "bob", Body: "ok"}})
	}
	m.Update(busReadyMsg{})
	if got := len(m.prDetail.comments); got != 5 {
		t.Fatalf("expected 5 comments after one update, got %d", got)
	}
	if m.bus.Len() != 0 {
		t.Fatalf("expected bus to be drained, %d left", m.bus.Len())
	}
	m.Update(busReadyMsg{})
	if got := len(m.prDetail.comments); got != 5 {
		t.Fatalf("expected outcomes to apply once, got %d comments", got)
	}
	m.prDetail.viewport.GotoTop()
	if !strings.Contains(m.render(), "Comments (5)") {
		t.Fatalf("expected frame to reflect drained comments")
	}
}

func TestStaleScreenOutcomeDiscardedSharedApplied(t *testing.T) {
	forge := &fakeForge{prs: []types.PullRequest{{Number: 1, Title: "one"}}}
	m := newTestModel(t, Services{Forge: forge})

	m.navigate(Screen{Kind: ScreenPRList})
	m.goBack()
	m.dispatcher.Wait()
	m.bus.Send(branchMsg{branch: "feature/x"})
	m.Update(busReadyMsg{})

	if len(m.prList.items) != 0 {
		t.Fatalf("expected stale list to be discarded, got %d items", len(m.prList.items))
	}
	if m.branch != "feature/x" {
		t.Fatalf("expected shared branch to apply, got %q", m.branch)
	}
	if m.isInflight(fetchPullRequests) || m.loaded[fetchPullRequests] {
		t.Fatalf("expected discarded fetch to be neither in flight nor loaded")
	}

	m.navigate(Screen{Kind: ScreenPRList})
	settle(m)
	if list, _, _ := forge.calls(); list != 2 {
		t.Fatalf("expected discarded list to be refetched, got %d calls", list)
	}
	if len(m.prList.items) != 1 {
		t.Fatalf("expected list to load, got %d items", len(m.prList.items))
	}
}

func TestStaleDetailForOtherPullRequestDiscarded(t *testing.T) {
	m := newTestModel(t, Services{})
	m.screen = PRDetailScreen(7)
	m.prDetail.number = 7
	m.bus.Send(prDetailMsg{number: 8, pr: types.PullRequest{Number: 8, Title: "other"}})
	m.Update(busReadyMsg{})
	if m.prDetail.pr != nil {
		t.Fatalf("expected detail for #8 to be discarded")
	}
}

func TestThumbsUpTogglesViewerReaction(t *testing.T) {
	forge := &fakeForge{reactions: []types.Reaction{
		{ID: 11, Content: types.ReactionThumbsUp, User: "bob"},
		{ID: 12, Content: types.ReactionThumbsUp, User: "alice"},
	}}
	m := newTestModel(t, Services{Forge: forge})
	m.viewer = "alice"

	m.navigate(PRDetailScreen(3))
	settle(m)
	m.Update(press("+"))
	settle(m)
	if len(forge.deletedReaction) != 1 || forge.deletedReaction[0] != 12 {
		t.Fatalf("expected viewer reaction 12 removed, got %v", forge.deletedReaction)
	}
	if len(m.prDetail.reactions) != 1 {
		t.Fatalf("expected one reaction left, got %d", len(m.prDetail.reactions))
	}

	m.Update(press("+"))
	settle(m)
	if len(forge.addedReactions) != 1 || forge.addedReactions[0] != types.ReactionThumbsUp {
		t.Fatalf("expected +1 to be added, got %v", forge.addedReactions)
	}
	if len(m.prDetail.reactions) != 2 {
		t.Fatalf("expected two reactions, got %d", len(m.prDetail.reactions))
	}
}

func TestWorkflowRunsKeepSelectionByID(t *testing.T) {
	m := newTestModel(t, Services{})
	m.screen = Screen{Kind: ScreenWorkflowRuns}
	m.bus.Send(workflowRunsMsg{at: testNow, runs: []types.WorkflowRun{{ID: 1}, {ID: 2}, {ID: 3}}})
	m.Update(busReadyMsg{})
	m.Update(press("j"))
	if m.runs.selectedID != 2 {
		t.Fatalf("expected run 2 selected, got %d", m.runs.selectedID)
	}

	m.bus.Send(workflowRunsMsg{at: testNow.Add(time.Minute), runs: []types.WorkflowRun{{ID: 4}, {ID: 1}, {ID: 2}, {ID: 3}}})
	m.Update(busReadyMsg{})
	if m.runs.cursor != 2 || m.runs.selectedID != 2 {
		t.Fatalf("expected selection to follow run 2, cursor=%d id=%d", m.runs.cursor, m.runs.selectedID)
	}
}

func TestWorkflowRunsPollOnTick(t *testing.T) {
	forge := &fakeForge{runs: []types.WorkflowRun{{ID: 1, Name: "ci"}}}
	m := newTestModel(t, Services{Forge: forge})

	m.navigate(Screen{Kind: ScreenWorkflowRuns})
	settle(m)
	m.Update(tickMsg{at: testNow.Add(time.Second)})
	m.dispatcher.Wait()
	if _, _, runs := forge.calls(); runs != 1 {
		t.Fatalf("expected no poll before the interval, got %d calls", runs)
	}
	m.Update(tickMsg{at: testNow.Add(m.cfg.PollInterval())})
	m.dispatcher.Wait()
	if _, _, runs := forge.calls(); runs != 2 {
		t.Fatalf("expected poll after the interval, got %d calls", runs)
	}
}

func TestUpdateFlowAutoDownloadsThenRollbackFailureIsCritical(t *testing.T) {
	updater := &fakeUpdater{
		check: update.CheckResult{
			Available: true,
			Current:   "1.0.0",
			Version:   "v1.1.0",
			Asset:     types.ReleaseAsset{Name: "prdeck-linux-amd64", DownloadURL: "https://example.test/prdeck"},
		},
		applyResult: update.ApplyFailed,
		applyErr:    &update.Error{Kind: update.KindRollbackFailed, Message: "could not restore the previous binary; reinstall prdeck"},
	}
	m := newTestModel(t, Services{Updater: updater})

	m.Update(tickMsg{at: testNow})
	settle(m)
	if !m.update.downloading && m.update.ready == "" {
		t.Fatalf("expected available update to start downloading")
	}
	settle(m)
	if m.update.ready != "v1.1.0" {
		t.Fatalf("expected staged update, got %q", m.update.ready)
	}
	if !strings.Contains(m.render(), "update 1.1.0 ready") {
		t.Fatalf("expected ready badge in header")
	}
	if updater.downloads != 1 {
		t.Fatalf("expected one download, got %d", updater.downloads)
	}

	m.Update(press("U"))
	settle(m)
	if updater.applies != 1 {
		t.Fatalf("expected apply to run once, got %d", updater.applies)
	}
	if m.popup == nil || !m.popup.critical {
		t.Fatalf("expected critical popup, got %#v", m.popup)
	}
	if !strings.Contains(m.popup.message, "reinstall") {
		t.Fatalf("expected reinstall guidance, got %q", m.popup.message)
	}

	m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.popup != nil {
		t.Fatalf("expected popup dismissed")
	}
}

func TestUpdateAppliedClearsReadyBadge(t *testing.T) {
	m := newTestModel(t, Services{Updater: &fakeUpdater{applyResult: update.ApplyApplied}})
	m.update.ready = "v2.0.0"
	m.Update(press("U"))
	settle(m)
	if m.update.ready != "" || m.update.applied != "v2.0.0" {
		t.Fatalf("unexpected update state: %#v", m.update)
	}
	if !strings.Contains(m.render(), "restart") {
		t.Fatalf("expected restart hint")
	}
}

func TestDispatchCrashClearsInflightFetch(t *testing.T) {
	m := newTestModel(t, Services{})
	m.inflight[fetchTags] = "tags"
	m.bus.Send(taskFailedMsg{op: "tags", err: errNoGit})
	m.Update(busReadyMsg{})
	if m.isInflight(fetchTags) {
		t.Fatalf("expected crashed fetch to be released")
	}
	if m.popup == nil {
		t.Fatalf("expected failure popup")
	}
}

func TestStaleGenerateResultReleasesFlag(t *testing.T) {
	m := newTestModel(t, Services{})

	m.navigate(Screen{Kind: ScreenCommit})
	m.generateCommitMessage()
	m.goBack()
	settle(m)
	if m.commit.generating {
		t.Fatalf("expected stale commit message result to release the generate flag")
	}
	if m.popup != nil {
		t.Fatalf("stale result should not raise a popup, got %+v", m.popup)
	}

	m.navigate(Screen{Kind: ScreenPRCreate})
	m.prCreate.base, m.prCreate.head = "main", "feature"
	m.generatePullRequestContent()
	m.goBack()
	settle(m)
	if m.prCreate.generating {
		t.Fatalf("expected stale pull request content to release the generate flag")
	}

	m.navigate(Screen{Kind: ScreenCommit})
	m.generateCommitMessage()
	if !m.commit.generating {
		t.Fatalf("expected generation to start again after a stale result")
	}
	settle(m)
	if m.commit.generating {
		t.Fatalf("expected current result to release the generate flag")
	}
}

func TestCrashedActionReleasesBusyFlag(t *testing.T) {
	m := newTestModel(t, Services{})
	m.commit.pushing = true
	m.tags.busy = true
	m.bus.Send(taskFailedMsg{op: "push", err: errNoGit})
	m.bus.Send(taskFailedMsg{op: "delete-tag", err: errNoGit})
	m.Update(busReadyMsg{})
	if m.commit.pushing || m.tags.busy {
		t.Fatalf("expected crashed actions to release busy flags: pushing=%v tags=%v", m.commit.pushing, m.tags.busy)
	}
}

func TestCrashedDetailReleasesOnlyItsOwnFetch(t *testing.T) {
	m := newTestModel(t, Services{})
	m.inflight[detailFetchKey(3)] = detailTaskName(3)
	m.inflight[detailFetchKey(5)] = detailTaskName(5)
	m.bus.Send(taskFailedMsg{op: detailTaskName(3), err: errNoGit})
	m.Update(busReadyMsg{})
	if m.isInflight(detailFetchKey(3)) {
		t.Fatalf("expected crashed detail fetch for #3 to be released")
	}
	if !m.isInflight(detailFetchKey(5)) {
		t.Fatalf("detail fetch for #5 must stay in flight")
	}
}
