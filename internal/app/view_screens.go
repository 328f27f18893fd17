package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"prdeck/internal/app/sanitizer"
	"prdeck/internal/types"
)

func column(text string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(sanitizer.Line(text), width, "…"), width)
}

func cursorRow(selected bool, line string) string {
	if selected {
		return selectedStyle.Render("› " + line)
	}
	return "  " + line
}

func (m *Model) renderDashboard() string {
	var b strings.Builder
	b.WriteString("\n")
	for i, item := range dashboardMenu {
		b.WriteString(cursorRow(i == m.menuCursor, fmt.Sprintf("%d  %s", i+1, item.label)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.repo.Owner == "" && m.services.Forge == nil {
		b.WriteString(mutedStyle.Render("Not inside a GitHub clone; repository screens are unavailable."))
		b.WriteString("\n")
	}
	if m.viewer != "" {
		b.WriteString(mutedStyle.Render("Signed in as " + sanitizer.Line(m.viewer)))
	}
	return b.String()
}

func prStateLabel(pr types.PullRequest) string {
	switch {
	case pr.State == types.PullRequestMerged:
		return mergedStateStyle.Render("merged")
	case pr.State == types.PullRequestClosed:
		return closedStateStyle.Render("closed")
	case pr.Draft:
		return draftStateStyle.Render("draft ")
	}
	return openStateStyle.Render("open  ")
}

func (m *Model) renderPRList() string {
	items := m.prList.items
	if len(items) == 0 {
		switch {
		case m.isInflight(fetchPullRequests):
			return mutedStyle.Render("Loading pull requests…")
		case m.prList.err != nil:
			return failureStyle.Render("Could not load pull requests: " + sanitizer.Line(m.prList.err.Error()))
		}
		return mutedStyle.Render("No open pull requests.")
	}
	titleWidth := max(10, m.width-40)
	start, end := visibleWindow(m.prList.cursor, len(items), m.bodyHeight())
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		pr := items[i]
		line := fmt.Sprintf("#%-5d %s %s %s", pr.Number, prStateLabel(pr), column(pr.Title, titleWidth), mutedStyle.Render(column(pr.Author, 16)))
		lines = append(lines, cursorRow(i == m.prList.cursor, line))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPRDetail() string {
	d := m.prDetail
	if d.pr == nil {
		switch {
		case d.err != nil:
			return failureStyle.Render("Could not load pull request: " + sanitizer.Line(d.err.Error()))
		default:
			return mutedStyle.Render(fmt.Sprintf("Loading #%d…", m.screen.PRNumber))
		}
	}
	var b strings.Builder
	b.WriteString(d.viewport.View())
	b.WriteString("\n")
	switch {
	case d.composing:
		b.WriteString(d.input.View())
	case d.confirmMerge:
		b.WriteString(popupTitleStyle.Render(fmt.Sprintf("Merge #%d? m merge • s squash • r rebase", d.number)))
	case d.merging:
		b.WriteString(runningStyle.Render("merging…"))
	}
	return b.String()
}

// refreshDetailViewport rebuilds the rendered detail document. Rendering
// markdown is too slow to repeat on every frame.
func (m *Model) refreshDetailViewport() {
	d := &m.prDetail
	if d.pr == nil {
		d.viewport.SetContent("")
		return
	}
	width := max(20, m.width-2)
	pr := d.pr
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("#%d %s", pr.Number, sanitizer.Line(pr.Title))))
	b.WriteString("\n")
	b.WriteString(prStateLabel(*pr))
	b.WriteString(mutedStyle.Render(fmt.Sprintf(" %s wants to merge %s into %s", sanitizer.Line(pr.Author), sanitizer.Line(pr.HeadRef), sanitizer.Line(pr.BaseRef))))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s • opened %s • %s", reactionSummary(d.reactions, m.viewer), humanTime(pr.CreatedAt, m.now()), mergeableText(pr.Mergeable))))
	b.WriteString("\n\n")
	body := strings.TrimSpace(sanitizer.Text(pr.Body))
	if body == "" {
		b.WriteString(mutedStyle.Render("No description provided."))
	} else {
		b.WriteString(renderMarkdown(body, width))
	}
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("Comments (%d)", len(d.comments))))
	b.WriteString("\n")
	for _, comment := range d.comments {
		b.WriteString("\n")
		b.WriteString(commentAuthorStyle.Render(sanitizer.Line(comment.Author)))
		b.WriteString(mutedStyle.Render(" " + humanTime(comment.CreatedAt, m.now())))
		b.WriteString("\n")
		b.WriteString(renderMarkdown(sanitizer.Text(comment.Body), width))
		b.WriteString("\n")
	}
	d.viewport.SetContent(b.String())
}

func reactionSummary(reactions []types.Reaction, viewer string) string {
	count := 0
	mine := false
	for _, reaction := range reactions {
		if reaction.Content != types.ReactionThumbsUp {
			continue
		}
		count++
		if viewer != "" && reaction.User == viewer {
			mine = true
		}
	}
	if mine {
		return fmt.Sprintf("👍 %d (you)", count)
	}
	return fmt.Sprintf("👍 %d", count)
}

func mergeableText(mergeable *bool) string {
	switch {
	case mergeable == nil:
		return "mergeability unknown"
	case *mergeable:
		return "mergeable"
	}
	return "has conflicts"
}

func humanTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}

func (m *Model) createLabel(field createField, label string) string {
	if m.prCreate.focus == field {
		return focusedLabelStyle.Render("› " + label)
	}
	return labelStyle.Render("  " + label)
}

func (m *Model) renderPRCreate() string {
	c := m.prCreate
	var b strings.Builder
	branchValue := func(name string) string {
		if name == "" {
			return mutedStyle.Render("(choose with ←/→)")
		}
		return branchStyle.Render("‹ " + sanitizer.Line(name) + " ›")
	}
	fmt.Fprintf(&b, "%s %s\n", m.createLabel(fieldBase, "Base "), branchValue(c.base))
	fmt.Fprintf(&b, "%s %s\n", m.createLabel(fieldHead, "Head "), branchValue(c.head))
	if len(c.branches) == 0 && m.isInflight(fetchBranches) {
		b.WriteString(mutedStyle.Render("  loading branches…"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.createLabel(fieldTitle, "Title"))
	b.WriteString("\n  ")
	b.WriteString(c.title.View())
	b.WriteString("\n\n")
	b.WriteString(m.createLabel(fieldBody, "Description"))
	b.WriteString("\n")
	b.WriteString(c.body.View())
	b.WriteString("\n\n")
	draft := "[ ]"
	if c.draft {
		draft = "[x]"
	}
	b.WriteString(m.createLabel(fieldDraft, draft+" Draft"))
	b.WriteString("\n")
	switch {
	case c.submitting:
		b.WriteString(runningStyle.Render("creating pull request…"))
	case c.generating:
		b.WriteString(runningStyle.Render("generating title and description…"))
	}
	return b.String()
}

func fileStatusLabel(file types.FileStatus) string {
	switch {
	case file.Untracked():
		return untrackedStyle.Render("??")
	case file.Staged():
		return stagedStyle.Render(string([]byte{file.Index, file.Worktree}))
	}
	return unstagedStyle.Render(string([]byte{file.Index, file.Worktree}))
}

func (m *Model) renderCommit() string {
	c := m.commit
	var b strings.Builder
	listHeight := max(3, m.bodyHeight()-10)
	switch {
	case len(c.files) == 0 && m.isInflight(fetchChangedFiles):
		b.WriteString(mutedStyle.Render("Reading working tree…"))
		b.WriteString("\n")
	case len(c.files) == 0:
		b.WriteString(mutedStyle.Render("Working tree clean."))
		b.WriteString("\n")
	default:
		staged := 0
		for _, file := range c.files {
			if file.Staged() {
				staged++
			}
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("Changes (%d staged of %d)", staged, len(c.files))))
		b.WriteString("\n")
		start, end := visibleWindow(c.cursor, len(c.files), listHeight)
		for i := start; i < end; i++ {
			file := c.files[i]
			b.WriteString(cursorRow(i == c.cursor, fileStatusLabel(file)+" "+column(file.Path, max(10, m.width-8))))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	label := labelStyle.Render("Message")
	if c.editing {
		label = focusedLabelStyle.Render("Message (editing)")
	}
	b.WriteString(label)
	b.WriteString("\n")
	b.WriteString(c.message.View())
	b.WriteString("\n")
	switch {
	case c.committing:
		b.WriteString(runningStyle.Render("committing…"))
	case c.pushing:
		b.WriteString(runningStyle.Render("pushing…"))
	case c.generating:
		b.WriteString(runningStyle.Render("generating commit message…"))
	}
	return b.String()
}

func tagLocationText(tag types.Tag) string {
	switch {
	case tag.Local && tag.Remote:
		return "local+remote"
	case tag.Local:
		return "local only"
	}
	return "remote only"
}

func tagLocation(tag types.Tag) string {
	text := column(tagLocationText(tag), 12)
	switch {
	case tag.Local && tag.Remote:
		return successStyle.Render(text)
	case tag.Local:
		return unstagedStyle.Render(text)
	}
	return mutedStyle.Render(text)
}

func (m *Model) renderTags() string {
	t := m.tags
	var b strings.Builder
	if t.creating {
		b.WriteString(labelStyle.Render("New tag"))
		b.WriteString("\n")
		b.WriteString(t.name.View())
		b.WriteString("\n")
		b.WriteString(t.message.View())
		b.WriteString("\n\n")
	}
	if t.confirmDelete {
		if tag, ok := m.selectedTag(); ok {
			b.WriteString(popupTitleStyle.Render(fmt.Sprintf("Delete tag %s (%s)? y to confirm", sanitizer.Line(tag.Name), tagLocationText(tag))))
			b.WriteString("\n\n")
		}
	}
	if len(t.items) == 0 {
		if m.isInflight(fetchTags) {
			b.WriteString(mutedStyle.Render("Loading tags…"))
		} else {
			b.WriteString(mutedStyle.Render("No tags."))
		}
		return b.String()
	}
	start, end := visibleWindow(t.cursor, len(t.items), max(3, m.bodyHeight()-6))
	for i := start; i < end; i++ {
		tag := t.items[i]
		line := column(tag.Name, 28) + " " + tagLocation(tag) + " " + mutedStyle.Render(shortHash(tag.Commit)) + " " + column(tag.Message, max(10, m.width-60))
		b.WriteString(cursorRow(i == t.cursor, line))
		b.WriteString("\n")
	}
	if t.busy {
		b.WriteString(runningStyle.Render("working…"))
	}
	return b.String()
}

func runStatusLabel(run types.WorkflowRun) string {
	switch {
	case run.Status != "completed":
		return runningStyle.Render(column(run.Status, 11))
	case run.Conclusion == "success":
		return successStyle.Render(column(run.Conclusion, 11))
	case run.Conclusion == "skipped" || run.Conclusion == "cancelled" || run.Conclusion == "neutral":
		return mutedStyle.Render(column(run.Conclusion, 11))
	}
	return failureStyle.Render(column(run.Conclusion, 11))
}

func (m *Model) renderRuns() string {
	r := m.runs
	if len(r.items) == 0 {
		switch {
		case m.isInflight(fetchWorkflowRuns):
			return mutedStyle.Render("Loading workflow runs…")
		case r.err != nil:
			return failureStyle.Render("Could not load workflow runs: " + sanitizer.Line(r.err.Error()))
		}
		return mutedStyle.Render("No workflow runs.")
	}
	var b strings.Builder
	if !r.fetchedAt.IsZero() {
		b.WriteString(mutedStyle.Render("updated " + humanTime(r.fetchedAt, m.now())))
		b.WriteString("\n")
	}
	nameWidth := max(10, m.width-60)
	start, end := visibleWindow(r.cursor, len(r.items), m.bodyHeight()-1)
	for i := start; i < end; i++ {
		run := r.items[i]
		line := runStatusLabel(run) + " " + column(run.Name, nameWidth) + " " + branchStyle.Render(column(run.Branch, 20)) + " " + mutedStyle.Render(column(run.Event, 12)) + " " + mutedStyle.Render(humanTime(run.CreatedAt, m.now()))
		b.WriteString(cursorRow(i == r.cursor, line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderSettings() string {
	s := m.settings
	var b strings.Builder
	model := m.cfg.AIModel()
	if s.savingModel {
		model += " (saving…)"
	}
	rows := []string{
		"AI model         " + model,
		"Gemini API key   " + "enter to replace",
		"Log out          " + string(m.authStatus.Method),
	}
	for i, row := range rows {
		b.WriteString(cursorRow(settingsItem(i) == s.cursor, row))
		b.WriteString("\n")
	}
	if s.editingKey {
		b.WriteString("\n")
		b.WriteString(s.keyInput.View())
		b.WriteString("\n")
	}
	if s.confirmLogout {
		b.WriteString("\n")
		b.WriteString(popupTitleStyle.Render("Remove stored GitHub credentials? y to confirm"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderAuth() string {
	var b strings.Builder
	if !m.authLoaded {
		return mutedStyle.Render("Checking credentials…")
	}
	st := m.authStatus
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Method:"), st.Method)
	if st.MaskedToken != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Token: "), st.MaskedToken)
	}
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Expires:"), st.ExpiresAt.Local().Format(time.RFC1123))
		fmt.Fprintf(&b, "%s %t\n", labelStyle.Render("Refreshable:"), st.CanRefresh)
	}
	if m.viewer != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Account:"), sanitizer.Line(m.viewer))
	}
	b.WriteString("\n")
	if st.Method == "" || m.needsLogin {
		b.WriteString(mutedStyle.Render("Run `prdeck auth login` in another terminal to sign in, then press r."))
	} else {
		b.WriteString(mutedStyle.Render("Use Settings to log out, or `prdeck auth status` for details."))
	}
	return b.String()
}
