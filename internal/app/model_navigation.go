package app

import "fmt"

// navigate pushes the current screen and enters screen. Navigating to the
// active screen reloads it instead of stacking a duplicate entry.
func (m *Model) navigate(screen Screen) {
	if screen == m.screen {
		m.enterScreen(screen, true)
		return
	}
	m.history.Push(m.screen)
	m.leaveScreen()
	m.screen = screen
	m.enterScreen(screen, false)
}

// goBack returns to the previous screen. With no history it does nothing.
func (m *Model) goBack() {
	prev, ok := m.history.Pop()
	if !ok {
		return
	}
	m.leaveScreen()
	m.screen = prev
	m.enterScreen(prev, false)
}

// leaveScreen drops transient input modes so they do not resurface when the
// screen is visited again.
func (m *Model) leaveScreen() {
	switch m.screen.Kind {
	case ScreenPRDetail:
		m.prDetail.composing = false
		m.prDetail.confirmMerge = false
		m.prDetail.input.Blur()
	case ScreenPRCreate:
		m.prCreate.title.Blur()
		m.prCreate.body.Blur()
	case ScreenCommit:
		m.commit.editing = false
		m.commit.message.Blur()
	case ScreenTags:
		m.tags.creating = false
		m.tags.confirmDelete = false
		m.tags.name.Blur()
		m.tags.message.Blur()
	case ScreenSettings:
		m.settings.editingKey = false
		m.settings.confirmLogout = false
		m.settings.keyInput.Blur()
	}
}

func (m *Model) enterScreen(screen Screen, force bool) {
	switch screen.Kind {
	case ScreenPRList:
		m.fetch(fetchPullRequests, force, "pull-requests", loadPullRequestsOp(m.services.Forge), false)
	case ScreenPRDetail:
		if m.prDetail.number != screen.PRNumber {
			m.resetDetail(screen.PRNumber)
		}
		// Detail is always refetched; comments change too often to cache.
		m.fetch(detailFetchKey(screen.PRNumber), true, detailTaskName(screen.PRNumber), loadPullRequestDetailOp(m.services.Forge, screen.PRNumber), false)
	case ScreenPRCreate:
		if m.prCreate.head == "" {
			m.prCreate.head = m.branch
		}
		if m.prCreate.base == "" {
			m.prCreate.base = m.repo.DefaultBranch
		}
		m.fetch(fetchBranches, force, "branches", loadBranchesOp(m.services.Git, m.services.Forge), true)
	case ScreenCommit:
		m.fetch(fetchChangedFiles, force, "changed-files", loadChangedFilesOp(m.services.Git), true)
	case ScreenTags:
		m.fetch(fetchTags, force, "tags", loadTagsOp(m.services.Git, m.services.Forge), true)
	case ScreenWorkflowRuns:
		m.fetch(fetchWorkflowRuns, true, "workflow-runs", loadWorkflowRunsOp(m.services.Forge, m.now), false)
	case ScreenSettings, ScreenAuth:
		m.dispatcher.Dispatch("auth-status", loadAuthStatusOp(m.services.Auth))
	}
}

// fetch starts op unless the same load is already in flight, or already
// loaded and not forced. It reports whether op was dispatched.
func (m *Model) fetch(key fetchKey, force bool, name string, op Operation, blocking bool) bool {
	if m.isInflight(key) {
		return false
	}
	if m.loaded[key] && !force {
		return false
	}
	m.inflight[key] = name
	if blocking {
		m.dispatcher.DispatchBlocking(name, op)
	} else {
		m.dispatcher.Dispatch(name, op)
	}
	return true
}

func (m *Model) isInflight(key fetchKey) bool {
	_, ok := m.inflight[key]
	return ok
}

// clearInflight releases fetches started under name. A crashed operation
// reports only its name.
func (m *Model) clearInflight(name string) {
	for key, op := range m.inflight {
		if op == name {
			delete(m.inflight, key)
		}
	}
}

// detailTaskName is unique per PR so a crash releases only its own fetch.
func detailTaskName(number uint64) string {
	return fmt.Sprintf("pull-request-detail:%d", number)
}

func (m *Model) invalidate(key fetchKey) {
	delete(m.loaded, key)
}

func (m *Model) resetDetail(number uint64) {
	m.prDetail.number = number
	m.prDetail.pr = nil
	m.prDetail.comments = nil
	m.prDetail.reactions = nil
	m.prDetail.err = nil
	m.prDetail.reacting = false
	m.prDetail.merging = false
	m.prDetail.input.Reset()
	m.prDetail.viewport.SetContent("")
	m.prDetail.viewport.GotoTop()
}
