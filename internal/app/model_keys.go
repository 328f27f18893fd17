package app

import (
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"prdeck/internal/types"
)

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if m.popup != nil {
		switch msg.String() {
		case "esc", "enter", "q":
			m.popup = nil
		}
		return nil
	}
	if cmd, handled := m.handleInputKey(msg); handled {
		return cmd
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.goBack()
		return nil
	case key.Matches(msg, m.keys.Install):
		m.installUpdate()
		return nil
	}

	switch m.screen.Kind {
	case ScreenDashboard:
		m.handleDashboardKey(msg)
	case ScreenPRList:
		m.handlePRListKey(msg)
	case ScreenPRDetail:
		return m.handlePRDetailKey(msg)
	case ScreenPRCreate:
		return m.handlePRCreateKey(msg)
	case ScreenCommit:
		return m.handleCommitKey(msg)
	case ScreenTags:
		return m.handleTagsKey(msg)
	case ScreenWorkflowRuns:
		m.handleRunsKey(msg)
	case ScreenSettings:
		return m.handleSettingsKey(msg)
	case ScreenAuth:
		if key.Matches(msg, m.keys.Refresh) {
			m.enterScreen(m.screen, true)
		}
	}
	return nil
}

// handleInputKey routes keys to whichever text field or confirmation is
// active. It reports false when no input mode owns the key.
func (m *Model) handleInputKey(msg tea.KeyPressMsg) (tea.Cmd, bool) {
	switch m.screen.Kind {
	case ScreenPRDetail:
		if m.prDetail.confirmMerge {
			m.prDetail.confirmMerge = false
			switch msg.String() {
			case "m":
				m.mergePullRequest(types.MergeMethodMerge)
			case "s":
				m.mergePullRequest(types.MergeMethodSquash)
			case "r":
				m.mergePullRequest(types.MergeMethodRebase)
			}
			return nil, true
		}
		if m.prDetail.composing {
			return m.handleCommentInput(msg), true
		}
	case ScreenPRCreate:
		if m.prCreate.focus == fieldTitle || m.prCreate.focus == fieldBody {
			return m.handleCreateInput(msg), true
		}
	case ScreenCommit:
		if m.commit.editing {
			return m.handleCommitInput(msg), true
		}
	case ScreenTags:
		if m.tags.confirmDelete {
			m.tags.confirmDelete = false
			if msg.String() == "y" {
				m.deleteSelectedTag()
			}
			return nil, true
		}
		if m.tags.creating {
			return m.handleTagInput(msg), true
		}
	case ScreenSettings:
		if m.settings.confirmLogout {
			m.settings.confirmLogout = false
			if msg.String() == "y" {
				m.dispatcher.Dispatch("logout", logoutOp(m.services.Auth))
			}
			return nil, true
		}
		if m.settings.editingKey {
			return m.handleKeyInput(msg), true
		}
	}
	return nil, false
}

// updateFocusedInput forwards non-key messages such as cursor blinks.
func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.screen.Kind == ScreenPRDetail && m.prDetail.composing:
		m.prDetail.input, cmd = m.prDetail.input.Update(msg)
	case m.screen.Kind == ScreenPRCreate && m.prCreate.focus == fieldTitle:
		m.prCreate.title, cmd = m.prCreate.title.Update(msg)
	case m.screen.Kind == ScreenPRCreate && m.prCreate.focus == fieldBody:
		m.prCreate.body, cmd = m.prCreate.body.Update(msg)
	case m.screen.Kind == ScreenCommit && m.commit.editing:
		m.commit.message, cmd = m.commit.message.Update(msg)
	case m.screen.Kind == ScreenTags && m.tags.creating && m.tags.focusMessage:
		m.tags.message, cmd = m.tags.message.Update(msg)
	case m.screen.Kind == ScreenTags && m.tags.creating:
		m.tags.name, cmd = m.tags.name.Update(msg)
	case m.screen.Kind == ScreenSettings && m.settings.editingKey:
		m.settings.keyInput, cmd = m.settings.keyInput.Update(msg)
	}
	return cmd
}

func (m *Model) handleDashboardKey(msg tea.KeyPressMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.menuCursor = clampCursor(m.menuCursor-1, len(dashboardMenu))
	case key.Matches(msg, m.keys.Down):
		m.menuCursor = clampCursor(m.menuCursor+1, len(dashboardMenu))
	case key.Matches(msg, m.keys.Enter):
		m.navigate(dashboardMenu[m.menuCursor].screen)
	default:
		s := msg.String()
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			idx := int(s[0] - '1')
			if idx < len(dashboardMenu) {
				m.menuCursor = idx
				m.navigate(dashboardMenu[idx].screen)
			}
		}
	}
}

func (m *Model) handlePRListKey(msg tea.KeyPressMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.prList.cursor = clampCursor(m.prList.cursor-1, len(m.prList.items))
	case key.Matches(msg, m.keys.Down):
		m.prList.cursor = clampCursor(m.prList.cursor+1, len(m.prList.items))
	case key.Matches(msg, m.keys.Refresh):
		m.enterScreen(m.screen, true)
	case key.Matches(msg, m.keys.Enter):
		if pr, ok := m.selectedPullRequest(); ok {
			m.navigate(PRDetailScreen(pr.Number))
		}
	case key.Matches(msg, m.keys.Copy):
		if pr, ok := m.selectedPullRequest(); ok {
			m.copyToClipboard(pr.URL, "pull request URL")
		}
	}
}

func (m *Model) selectedPullRequest() (types.PullRequest, bool) {
	if len(m.prList.items) == 0 {
		return types.PullRequest{}, false
	}
	return m.prList.items[clampCursor(m.prList.cursor, len(m.prList.items))], true
}

func (m *Model) handlePRDetailKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Refresh):
		m.enterScreen(m.screen, true)
	case key.Matches(msg, m.keys.Copy):
		if m.prDetail.pr != nil {
			m.copyToClipboard(m.prDetail.pr.URL, "pull request URL")
		}
	case msg.String() == "c":
		if m.prDetail.pr == nil {
			return nil
		}
		m.prDetail.composing = true
		return m.prDetail.input.Focus()
	case msg.String() == "+":
		m.toggleThumbsUp()
	case msg.String() == "m":
		pr := m.prDetail.pr
		switch {
		case pr == nil:
		case pr.State != types.PullRequestOpen:
			m.setStatus(statusWarning, "#%d is %s", pr.Number, pr.State)
		case m.prDetail.merging:
			m.setStatus(statusWarning, "merge already running")
		default:
			m.prDetail.confirmMerge = true
		}
	default:
		var cmd tea.Cmd
		m.prDetail.viewport, cmd = m.prDetail.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleCommentInput(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.prDetail.composing = false
		m.prDetail.input.Blur()
		return nil
	case "enter":
		body := strings.TrimSpace(m.prDetail.input.Value())
		if body == "" {
			return nil
		}
		m.dispatcher.Dispatch("add-comment", addCommentOp(m.services.Forge, m.prDetail.number, body))
		m.prDetail.input.Reset()
		m.prDetail.input.Blur()
		m.prDetail.composing = false
		m.setStatus(statusInfo, "posting comment…")
		return nil
	}
	var cmd tea.Cmd
	m.prDetail.input, cmd = m.prDetail.input.Update(msg)
	return cmd
}

// toggleThumbsUp removes the viewer's +1 when present and adds one
// otherwise. Only one reaction request runs at a time.
func (m *Model) toggleThumbsUp() {
	d := &m.prDetail
	if d.pr == nil || d.reacting {
		return
	}
	if m.viewer == "" {
		m.setStatus(statusWarning, "account still loading; try again shortly")
		return
	}
	d.reacting = true
	for _, reaction := range d.reactions {
		if reaction.Content == types.ReactionThumbsUp && reaction.User == m.viewer {
			m.dispatcher.Dispatch("remove-reaction", removeReactionOp(m.services.Forge, d.number, reaction.ID))
			return
		}
	}
	m.dispatcher.Dispatch("add-reaction", addReactionOp(m.services.Forge, d.number, types.ReactionThumbsUp))
}

func (m *Model) mergePullRequest(method types.MergeMethod) {
	if m.prDetail.pr == nil || m.prDetail.merging {
		return
	}
	m.prDetail.merging = true
	m.setStatus(statusInfo, "merging #%d (%s)…", m.prDetail.number, method)
	m.dispatcher.Dispatch("merge", mergePullRequestOp(m.services.Forge, m.prDetail.number, method))
}

func (m *Model) setCreateFocus(field createField) tea.Cmd {
	m.prCreate.focus = field
	m.prCreate.title.Blur()
	m.prCreate.body.Blur()
	switch field {
	case fieldTitle:
		return m.prCreate.title.Focus()
	case fieldBody:
		return m.prCreate.body.Focus()
	}
	return nil
}

func (m *Model) moveCreateFocus(delta int) tea.Cmd {
	next := (int(m.prCreate.focus) + delta + int(createFieldCount)) % int(createFieldCount)
	return m.setCreateFocus(createField(next))
}

func (m *Model) handleCreateInput(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case msg.String() == "esc":
		return m.setCreateFocus(fieldBase)
	case key.Matches(msg, m.keys.Tab):
		return m.moveCreateFocus(1)
	case msg.String() == "shift+tab":
		return m.moveCreateFocus(-1)
	case key.Matches(msg, m.keys.Submit):
		m.submitPullRequest()
		return nil
	case key.Matches(msg, m.keys.Generate):
		m.generatePullRequestContent()
		return nil
	}
	var cmd tea.Cmd
	if m.prCreate.focus == fieldTitle {
		if msg.String() == "enter" {
			return m.moveCreateFocus(1)
		}
		m.prCreate.title, cmd = m.prCreate.title.Update(msg)
	} else {
		m.prCreate.body, cmd = m.prCreate.body.Update(msg)
	}
	return cmd
}

func (m *Model) handlePRCreateKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Tab), key.Matches(msg, m.keys.Down):
		return m.moveCreateFocus(1)
	case msg.String() == "shift+tab", key.Matches(msg, m.keys.Up):
		return m.moveCreateFocus(-1)
	case key.Matches(msg, m.keys.Left):
		m.cycleCreateBranch(-1)
	case key.Matches(msg, m.keys.Right):
		m.cycleCreateBranch(1)
	case key.Matches(msg, m.keys.Submit):
		m.submitPullRequest()
	case key.Matches(msg, m.keys.Generate):
		m.generatePullRequestContent()
	case key.Matches(msg, m.keys.Refresh):
		m.enterScreen(m.screen, true)
	case msg.String() == "space", msg.String() == " ", key.Matches(msg, m.keys.Enter):
		if m.prCreate.focus == fieldDraft {
			m.prCreate.draft = !m.prCreate.draft
			return nil
		}
		return m.moveCreateFocus(1)
	}
	return nil
}

func (m *Model) cycleCreateBranch(delta int) {
	branches := m.prCreate.branches
	if len(branches) == 0 {
		return
	}
	var target *string
	switch m.prCreate.focus {
	case fieldBase:
		target = &m.prCreate.base
	case fieldHead:
		target = &m.prCreate.head
	default:
		return
	}
	idx := -1
	for i, name := range branches {
		if name == *target {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(branches)) % len(branches)
	*target = branches[idx]
}

func (m *Model) createBranchesValid() bool {
	switch {
	case m.prCreate.base == "" || m.prCreate.head == "":
		m.setStatus(statusWarning, "choose base and head branches")
		return false
	case m.prCreate.base == m.prCreate.head:
		m.setStatus(statusWarning, "base and head must differ")
		return false
	}
	return true
}

func (m *Model) submitPullRequest() {
	if m.prCreate.submitting {
		return
	}
	title := strings.TrimSpace(m.prCreate.title.Value())
	if title == "" {
		m.setStatus(statusWarning, "a title is required")
		return
	}
	if !m.createBranchesValid() {
		return
	}
	m.prCreate.submitting = true
	m.setStatus(statusInfo, "creating pull request…")
	m.dispatcher.Dispatch("create-pull-request", createPullRequestOp(m.services.Forge, types.NewPullRequest{
		Title: title,
		Body:  m.prCreate.body.Value(),
		Head:  m.prCreate.head,
		Base:  m.prCreate.base,
		Draft: m.prCreate.draft,
	}))
}

func (m *Model) generatePullRequestContent() {
	if m.prCreate.generating || !m.createBranchesValid() {
		return
	}
	m.prCreate.generating = true
	m.setStatus(statusInfo, "generating with %s…", m.cfg.AIModel())
	m.dispatcher.Dispatch("generate-pull-request", generatePRContentOp(m.services.Git, m.services.Generator, m.cfg.AIModel(), m.prCreate.base, m.prCreate.head))
}

func (m *Model) handleCommitInput(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case msg.String() == "esc":
		m.commit.editing = false
		m.commit.message.Blur()
		return nil
	case key.Matches(msg, m.keys.Submit):
		m.commitStaged()
		return nil
	case key.Matches(msg, m.keys.Generate):
		m.generateCommitMessage()
		return nil
	}
	var cmd tea.Cmd
	m.commit.message, cmd = m.commit.message.Update(msg)
	return cmd
}

func (m *Model) handleCommitKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.commit.cursor = clampCursor(m.commit.cursor-1, len(m.commit.files))
	case key.Matches(msg, m.keys.Down):
		m.commit.cursor = clampCursor(m.commit.cursor+1, len(m.commit.files))
	case key.Matches(msg, m.keys.Refresh):
		m.enterScreen(m.screen, true)
	case key.Matches(msg, m.keys.Generate), msg.String() == "g":
		m.generateCommitMessage()
	case key.Matches(msg, m.keys.Submit), msg.String() == "c":
		m.commitStaged()
	case msg.String() == "space", msg.String() == " ":
		if len(m.commit.files) > 0 {
			file := m.commit.files[clampCursor(m.commit.cursor, len(m.commit.files))]
			m.dispatcher.DispatchBlocking("toggle-stage", toggleStageOp(m.services.Git, file))
		}
	case msg.String() == "a":
		m.dispatcher.DispatchBlocking("stage-all", stageAllOp(m.services.Git))
	case msg.String() == "e":
		m.commit.editing = true
		return m.commit.message.Focus()
	case msg.String() == "p":
		if m.commit.pushing {
			return nil
		}
		m.commit.pushing = true
		m.setStatus(statusInfo, "pushing %s…", firstNonEmpty(m.branch, "branch"))
		m.dispatcher.Dispatch("push", pushOp(m.services.Git))
	}
	return nil
}

func (m *Model) generateCommitMessage() {
	if m.commit.generating {
		return
	}
	m.commit.generating = true
	m.setStatus(statusInfo, "generating with %s…", m.cfg.AIModel())
	m.dispatcher.Dispatch("generate-commit-message", generateCommitMessageOp(m.services.Git, m.services.Generator, m.cfg.AIModel()))
}

func (m *Model) commitStaged() {
	if m.commit.committing {
		return
	}
	message := strings.TrimSpace(m.commit.message.Value())
	if message == "" {
		m.setStatus(statusWarning, "write or generate a commit message first")
		return
	}
	m.commit.committing = true
	m.dispatcher.DispatchBlocking("commit", commitOp(m.services.Git, message))
}

func (m *Model) handleTagInput(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.tags.creating = false
		m.tags.name.Blur()
		m.tags.message.Blur()
		return nil
	case "tab", "shift+tab":
		m.tags.focusMessage = !m.tags.focusMessage
		if m.tags.focusMessage {
			m.tags.name.Blur()
			return m.tags.message.Focus()
		}
		m.tags.message.Blur()
		return m.tags.name.Focus()
	case "enter":
		name := strings.TrimSpace(m.tags.name.Value())
		if name == "" || strings.ContainsAny(name, " \t") {
			m.setStatus(statusWarning, "tag names cannot be empty or contain spaces")
			return nil
		}
		m.tags.busy = true
		m.tags.creating = false
		m.tags.name.Blur()
		m.tags.message.Blur()
		m.dispatcher.DispatchBlocking("create-tag", createTagOp(m.services.Git, name, strings.TrimSpace(m.tags.message.Value())))
		return nil
	}
	var cmd tea.Cmd
	if m.tags.focusMessage {
		m.tags.message, cmd = m.tags.message.Update(msg)
	} else {
		m.tags.name, cmd = m.tags.name.Update(msg)
	}
	return cmd
}

func (m *Model) selectedTag() (types.Tag, bool) {
	if len(m.tags.items) == 0 {
		return types.Tag{}, false
	}
	return m.tags.items[clampCursor(m.tags.cursor, len(m.tags.items))], true
}

func (m *Model) handleTagsKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.tags.cursor = clampCursor(m.tags.cursor-1, len(m.tags.items))
	case key.Matches(msg, m.keys.Down):
		m.tags.cursor = clampCursor(m.tags.cursor+1, len(m.tags.items))
	case key.Matches(msg, m.keys.Refresh):
		m.enterScreen(m.screen, true)
	case msg.String() == "n":
		m.tags.creating = true
		m.tags.focusMessage = false
		m.tags.name.Reset()
		m.tags.message.Reset()
		return m.tags.name.Focus()
	case msg.String() == "d":
		if _, ok := m.selectedTag(); ok && !m.tags.busy {
			m.tags.confirmDelete = true
		}
	case msg.String() == "p":
		tag, ok := m.selectedTag()
		if !ok || m.tags.busy {
			return nil
		}
		if !tag.Local {
			m.setStatus(statusWarning, "%s exists only on the remote", tag.Name)
			return nil
		}
		m.tags.busy = true
		m.dispatcher.Dispatch("push-tag", pushTagOp(m.services.Git, tag.Name))
	case msg.String() == "P":
		if m.tags.busy {
			return nil
		}
		m.tags.busy = true
		m.dispatcher.Dispatch("push-tags", pushTagOp(m.services.Git, ""))
	}
	return nil
}

func (m *Model) deleteSelectedTag() {
	tag, ok := m.selectedTag()
	if !ok || m.tags.busy {
		return
	}
	m.tags.busy = true
	m.dispatcher.Dispatch("delete-tag", deleteTagOp(m.services.Git, tag))
}

func (m *Model) handleRunsKey(msg tea.KeyPressMsg) {
	moved := false
	switch {
	case key.Matches(msg, m.keys.Up):
		m.runs.cursor = clampCursor(m.runs.cursor-1, len(m.runs.items))
		moved = true
	case key.Matches(msg, m.keys.Down):
		m.runs.cursor = clampCursor(m.runs.cursor+1, len(m.runs.items))
		moved = true
	case key.Matches(msg, m.keys.Refresh):
		m.enterScreen(m.screen, true)
	case key.Matches(msg, m.keys.Copy), key.Matches(msg, m.keys.Enter):
		if len(m.runs.items) > 0 {
			m.copyToClipboard(m.runs.items[m.runs.cursor].URL, "workflow run URL")
		}
	}
	if moved && len(m.runs.items) > 0 {
		m.runs.selectedID = m.runs.items[m.runs.cursor].ID
	}
}

func (m *Model) handleKeyInput(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.settings.editingKey = false
		m.settings.keyInput.Reset()
		m.settings.keyInput.Blur()
		return nil
	case "enter":
		value := strings.TrimSpace(m.settings.keyInput.Value())
		if value == "" {
			return nil
		}
		m.settings.editingKey = false
		m.settings.keyInput.Reset()
		m.settings.keyInput.Blur()
		m.dispatcher.DispatchBlocking("save-api-key", saveAPIKeyOp(m.services.Secrets, value))
		return nil
	}
	var cmd tea.Cmd
	m.settings.keyInput, cmd = m.settings.keyInput.Update(msg)
	return cmd
}

func (m *Model) handleSettingsKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.settings.cursor = settingsItem(clampCursor(int(m.settings.cursor)-1, int(settingsItemCount)))
	case key.Matches(msg, m.keys.Down):
		m.settings.cursor = settingsItem(clampCursor(int(m.settings.cursor)+1, int(settingsItemCount)))
	case key.Matches(msg, m.keys.Enter):
		switch m.settings.cursor {
		case settingsAIModel:
			if m.settings.savingModel {
				return nil
			}
			m.settings.savingModel = true
			m.dispatcher.DispatchBlocking("save-ai-model", saveAIModelOp(m.services.SaveConfig, m.cfg, m.cfg.NextAIModel()))
		case settingsAPIKey:
			m.settings.editingKey = true
			m.settings.keyInput.Reset()
			return m.settings.keyInput.Focus()
		case settingsLogout:
			m.settings.confirmLogout = true
		}
	}
	return nil
}
