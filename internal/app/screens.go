package app

import "fmt"

type ScreenKind int

const (
	ScreenDashboard ScreenKind = iota
	ScreenPRList
	ScreenPRDetail
	ScreenPRCreate
	ScreenCommit
	ScreenTags
	ScreenWorkflowRuns
	ScreenSettings
	ScreenAuth
)

// Screen is a UI location. PRNumber is set only for ScreenPRDetail, which
// keeps Screen comparable so stale results can be matched against it.
type Screen struct {
	Kind     ScreenKind
	PRNumber uint64
}

func DashboardScreen() Screen { return Screen{Kind: ScreenDashboard} }

func PRDetailScreen(number uint64) Screen {
	return Screen{Kind: ScreenPRDetail, PRNumber: number}
}

func (s Screen) Title() string {
	switch s.Kind {
	case ScreenDashboard:
		return "Dashboard"
	case ScreenPRList:
		return "Pull requests"
	case ScreenPRDetail:
		return fmt.Sprintf("Pull request #%d", s.PRNumber)
	case ScreenPRCreate:
		return "Create pull request"
	case ScreenCommit:
		return "Commit"
	case ScreenTags:
		return "Tags"
	case ScreenWorkflowRuns:
		return "Workflow runs"
	case ScreenSettings:
		return "Settings"
	case ScreenAuth:
		return "Authentication"
	default:
		return "prdeck"
	}
}

type menuItem struct {
	label  string
	screen Screen
}

var dashboardMenu = []menuItem{
	{label: "Pull requests", screen: Screen{Kind: ScreenPRList}},
	{label: "Create pull request", screen: Screen{Kind: ScreenPRCreate}},
	{label: "Commit", screen: Screen{Kind: ScreenCommit}},
	{label: "Tags", screen: Screen{Kind: ScreenTags}},
	{label: "Workflow runs", screen: Screen{Kind: ScreenWorkflowRuns}},
	{label: "Settings", screen: Screen{Kind: ScreenSettings}},
	{label: "Authentication", screen: Screen{Kind: ScreenAuth}},
}
