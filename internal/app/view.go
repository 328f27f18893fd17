package app

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	xansi "github.com/charmbracelet/x/ansi"

	"prdeck/internal/app/sanitizer"
	"prdeck/internal/update"
)

func (m *Model) View() tea.View {
	var v tea.View
	v.AltScreen = true
	v.SetContent(m.render())
	return v
}

// render is pure: it reads model state and never mutates it.
func (m *Model) render() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.bodyHeight()
	var body string
	if m.popup != nil {
		body = m.renderPopup(bodyHeight)
	} else {
		body = padLines(strings.Split(m.renderBody(), "\n"), m.width, bodyHeight)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	left := headerStyle.Render("prdeck") + " " + breadcrumbStyle.Render(m.screen.Title())
	var right []string
	if m.repo.Owner != "" {
		right = append(right, repoStyle.Render(m.repo.FullName()))
	}
	if m.branch != "" {
		right = append(right, branchStyle.Render(" "+m.branch))
	}
	if m.needsLogin {
		right = append(right, authBadgeStyle.Render("login required"))
	}
	if badge := m.updateBadge(); badge != "" {
		right = append(right, updateBadgeStyle.Render(badge))
	}
	line := joinEdges(left, strings.Join(right, " "), m.width)
	divider := dividerStyle.Render(strings.Repeat("─", max(0, m.width)))
	return line + "\n" + divider
}

func (m *Model) updateBadge() string {
	u := m.update
	switch {
	case u.applying:
		return "installing update…"
	case u.ready != "":
		return fmt.Sprintf("update %s ready (U)", update.DisplayVersion(u.ready))
	case u.downloading && u.total > 0:
		return fmt.Sprintf("downloading %s %d%%", update.DisplayVersion(u.available), u.done*100/u.total)
	case u.downloading:
		return fmt.Sprintf("downloading %s", update.DisplayVersion(u.available))
	case u.applied != "":
		return fmt.Sprintf("updated to %s; restart", update.DisplayVersion(u.applied))
	case u.available != "":
		return fmt.Sprintf("update %s available", update.DisplayVersion(u.available))
	}
	return ""
}

func (m *Model) renderFooter() string {
	divider := dividerStyle.Render(strings.Repeat("─", max(0, m.width)))
	var line string
	if m.status.text != "" {
		style := toastInfoStyle
		switch m.status.level {
		case statusWarning:
			style = toastWarningStyle
		case statusError:
			style = toastErrorStyle
		}
		line = style.Render(" " + sanitizer.Line(m.status.text) + " ")
	} else {
		line = helpStyle.Render(m.helpText())
	}
	return divider + "\n" + xansi.Truncate(line, m.width, "…")
}

func (m *Model) helpText() string {
	switch m.screen.Kind {
	case ScreenDashboard:
		return "↑/↓ select • enter open • 1-7 jump • U update • q quit"
	case ScreenPRList:
		return "↑/↓ select • enter open • y copy url • r refresh • esc back"
	case ScreenPRDetail:
		if m.prDetail.composing {
			return "enter post • esc cancel"
		}
		if m.prDetail.confirmMerge {
			return "merge with: m merge • s squash • r rebase • any other key cancels"
		}
		return "c comment • + 👍 • m merge • y copy url • r refresh • esc back"
	case ScreenPRCreate:
		return "tab next field • ←/→ branch • ctrl+g generate • ctrl+s create • esc back"
	case ScreenCommit:
		if m.commit.editing {
			return "esc done • ctrl+s commit • ctrl+g generate"
		}
		return "space stage/unstage • a stage all • e edit • g generate • c commit • p push"
	case ScreenTags:
		if m.tags.confirmDelete {
			return "y delete • any other key cancels"
		}
		if m.tags.creating {
			return "tab switch field • enter create • esc cancel"
		}
		return "n new • d delete • p push • P push all • r refresh • esc back"
	case ScreenWorkflowRuns:
		return fmt.Sprintf("↑/↓ select • y copy url • r refresh • polling every %s", m.cfg.PollInterval())
	case ScreenSettings:
		if m.settings.confirmLogout {
			return "y log out • any other key cancels"
		}
		return "↑/↓ select • enter change • esc back"
	case ScreenAuth:
		return "r refresh • esc back"
	}
	return ""
}

func (m *Model) renderBody() string {
	switch m.screen.Kind {
	case ScreenDashboard:
		return m.renderDashboard()
	case ScreenPRList:
		return m.renderPRList()
	case ScreenPRDetail:
		return m.renderPRDetail()
	case ScreenPRCreate:
		return m.renderPRCreate()
	case ScreenCommit:
		return m.renderCommit()
	case ScreenTags:
		return m.renderTags()
	case ScreenWorkflowRuns:
		return m.renderRuns()
	case ScreenSettings:
		return m.renderSettings()
	case ScreenAuth:
		return m.renderAuth()
	}
	return ""
}

func (m *Model) renderPopup(height int) string {
	p := m.popup
	style := popupStyle
	if p.critical {
		style = criticalPopupStyle
	}
	width := min(max(30, m.width-10), 90)
	message := sanitizer.Text(p.message)
	content := popupTitleStyle.Render(sanitizer.Line(p.title)) + "\n\n" +
		lipgloss.NewStyle().Width(width-6).Render(message) + "\n\n" +
		helpStyle.Render("esc/enter dismiss")
	box := style.Width(width).Render(content)
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, box)
}

// joinEdges places left and right on one line of width, truncating right
// first when both do not fit.
func joinEdges(left, right string, width int) string {
	lw := xansi.StringWidth(left)
	rw := xansi.StringWidth(right)
	if right == "" || lw+rw+1 > width {
		return xansi.Truncate(left, width, "…")
	}
	return left + strings.Repeat(" ", width-lw-rw) + right
}

// visibleWindow returns the [start,end) range of a list of n rows that
// keeps cursor on screen within height rows.
func visibleWindow(cursor, n, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height/2
	start = max(0, min(start, n-height))
	return start, start + height
}
