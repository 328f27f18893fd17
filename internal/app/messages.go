package app

import (
	"time"

	"prdeck/internal/ai"
	"prdeck/internal/auth"
	"prdeck/internal/client"
	"prdeck/internal/types"
	"prdeck/internal/update"
)

// Outcome is the terminal result of one background operation. Each is
// applied exactly once by the scheduler.
type Outcome interface {
	outcome()
}

// scoped outcomes belong to one screen and are dropped when that screen is
// no longer active.
type scoped interface {
	Outcome
	target() Screen
}

type taskFailedMsg struct {
	op  string
	err error
}

type repoInfoMsg struct {
	repo   types.Repository
	viewer string
	err    error
}

type branchMsg struct {
	branch string
	err    error
}

type authStatusMsg struct {
	status auth.Status
	err    error
}

type repoChangedMsg struct{}

type prListMsg struct {
	prs []types.PullRequest
	err error
}

type prDetailMsg struct {
	number    uint64
	pr        types.PullRequest
	comments  []types.Comment
	reactions []types.Reaction
	err       error
}

type commentAddedMsg struct {
	number  uint64
	comment types.Comment
	err     error
}

type reactionAddedMsg struct {
	number   uint64
	reaction types.Reaction
	err      error
}

type reactionRemovedMsg struct {
	number     uint64
	reactionID uint64
	err        error
}

type prMergedMsg struct {
	number uint64
	result client.MergeResult
	err    error
}

type prCreatedMsg struct {
	pr  types.PullRequest
	err error
}

type branchesMsg struct {
	branches []string
	err      error
}

type prContentMsg struct {
	content ai.PRContent
	err     error
}

type changedFilesMsg struct {
	files []types.FileStatus
	err   error
}

type commitMessageMsg struct {
	message string
	err     error
}

type committedMsg struct {
	hash string
	err  error
}

type pushedMsg struct {
	err error
}

type tagsMsg struct {
	tags []types.Tag
	err  error
}

type tagChangedMsg struct {
	action string
	name   string
	err    error
}

type workflowRunsMsg struct {
	runs []types.WorkflowRun
	at   time.Time
	err  error
}

type aiModelSavedMsg struct {
	model string
	err   error
}

type apiKeySavedMsg struct {
	err error
}

type loggedOutMsg struct {
	err error
}

type copiedMsg struct {
	label  string
	method clipboardMethod
	err    error
}

type updateCheckedMsg struct {
	result  update.CheckResult
	skipped bool
	pending string
	err     error
}

type updateProgressMsg struct {
	done  int64
	total int64
}

type updateDownloadedMsg struct {
	version string
	err     error
}

type updateAppliedMsg struct {
	result update.ApplyResult
	err    error
}

func (taskFailedMsg) outcome()       {}
func (repoInfoMsg) outcome()         {}
func (branchMsg) outcome()           {}
func (authStatusMsg) outcome()       {}
func (repoChangedMsg) outcome()      {}
func (prListMsg) outcome()           {}
func (prDetailMsg) outcome()         {}
func (commentAddedMsg) outcome()     {}
func (reactionAddedMsg) outcome()    {}
func (reactionRemovedMsg) outcome()  {}
func (prMergedMsg) outcome()         {}
func (prCreatedMsg) outcome()        {}
func (branchesMsg) outcome()         {}
func (prContentMsg) outcome()        {}
func (changedFilesMsg) outcome()     {}
func (commitMessageMsg) outcome()    {}
func (committedMsg) outcome()        {}
func (pushedMsg) outcome()           {}
func (tagsMsg) outcome()             {}
func (tagChangedMsg) outcome()       {}
func (workflowRunsMsg) outcome()     {}
func (aiModelSavedMsg) outcome()     {}
func (apiKeySavedMsg) outcome()      {}
func (loggedOutMsg) outcome()        {}
func (copiedMsg) outcome()           {}
func (updateCheckedMsg) outcome()    {}
func (updateProgressMsg) outcome()   {}
func (updateDownloadedMsg) outcome() {}
func (updateAppliedMsg) outcome()    {}

func (prListMsg) target() Screen        { return Screen{Kind: ScreenPRList} }
func (m prDetailMsg) target() Screen    { return PRDetailScreen(m.number) }
func (branchesMsg) target() Screen      { return Screen{Kind: ScreenPRCreate} }
func (prContentMsg) target() Screen     { return Screen{Kind: ScreenPRCreate} }
func (changedFilesMsg) target() Screen  { return Screen{Kind: ScreenCommit} }
func (commitMessageMsg) target() Screen { return Screen{Kind: ScreenCommit} }
func (tagsMsg) target() Screen          { return Screen{Kind: ScreenTags} }
func (workflowRunsMsg) target() Screen  { return Screen{Kind: ScreenWorkflowRuns} }
