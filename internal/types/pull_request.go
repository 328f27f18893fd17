package types

import "time"

type PullRequestState string

const (
	PullRequestOpen   PullRequestState = "open"
	PullRequestClosed PullRequestState = "closed"
	PullRequestMerged PullRequestState = "merged"
)

type PullRequest struct {
	Number    uint64           `json:"number"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	State     PullRequestState `json:"state"`
	Draft     bool             `json:"draft"`
	Author    string           `json:"author"`
	HeadRef   string           `json:"head_ref"`
	BaseRef   string           `json:"base_ref"`
	URL       string           `json:"html_url"`
	Mergeable *bool            `json:"mergeable,omitempty"`
	Comments  int              `json:"comments"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type NewPullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Draft bool   `json:"draft"`
}

type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

type Comment struct {
	ID        uint64    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Reaction content values match the forge's reaction names ("+1", "heart", ...).
type Reaction struct {
	ID      uint64 `json:"id"`
	Content string `json:"content"`
	User    string `json:"user"`
}

const ReactionThumbsUp = "+1"
