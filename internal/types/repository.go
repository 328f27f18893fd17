package types

import (
	"fmt"
	"time"
)

// Repository identifies the forge repository the working tree points at.
type Repository struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
}

func (r Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

type Tag struct {
	Name    string `json:"name"`
	Commit  string `json:"commit,omitempty"`
	Message string `json:"message,omitempty"`
	Local   bool   `json:"local"`
	Remote  bool   `json:"remote"`
}

type WorkflowRun struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Branch     string    `json:"head_branch"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	URL        string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileStatus is one entry of the working tree status. Index and Worktree
// hold the porcelain status letters.
type FileStatus struct {
	Path     string `json:"path"`
	Index    byte   `json:"index"`
	Worktree byte   `json:"worktree"`
}

func (f FileStatus) Staged() bool {
	return f.Index != ' ' && f.Index != '?' && f.Index != 0
}

func (f FileStatus) Untracked() bool {
	return f.Index == '?' && f.Worktree == '?'
}
