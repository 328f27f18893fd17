package app

import "charm.land/lipgloss/v2"

var (
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	breadcrumbStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	repoStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true)
	branchStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	helpStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	selectedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("236"))
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	labelStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	focusedLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true)
	openStateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("70")).Bold(true)
	closedStateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	mergedStateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true)
	draftStateStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	stagedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	unstagedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("179"))
	untrackedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	failureStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	runningStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("179"))
	commentAuthorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true)
	updateBadgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true).Padding(0, 1)
	authBadgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true).Padding(0, 1)
	popupStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("208")).Padding(1, 2)
	criticalPopupStyle = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("160")).Padding(1, 2)
	popupTitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	toastInfoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true)
	toastWarningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true)
	toastErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Bold(true)
)
