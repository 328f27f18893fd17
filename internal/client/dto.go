package client

import (
	"time"

	"prdeck/internal/types"
)

type userDTO struct {
	Login string `json:"login"`
}

type refDTO struct {
	Ref string `json:"ref"`
}

type repositoryDTO struct {
	DefaultBranch string `json:"default_branch"`
}

type pullRequestDTO struct {
	Number    uint64     `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	Draft     bool       `json:"draft"`
	User      userDTO    `json:"user"`
	Head      refDTO     `json:"head"`
	Base      refDTO     `json:"base"`
	HTMLURL   string     `json:"html_url"`
	Mergeable *bool      `json:"mergeable"`
	Comments  int        `json:"comments"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

func (p pullRequestDTO) toType() types.PullRequest {
	state := types.PullRequestState(p.State)
	if p.MergedAt != nil {
		state = types.PullRequestMerged
	}
	return types.PullRequest{
		Number:    p.Number,
		Title:     p.Title,
		Body:      p.Body,
		State:     state,
		Draft:     p.Draft,
		Author:    p.User.Login,
		HeadRef:   p.Head.Ref,
		BaseRef:   p.Base.Ref,
		URL:       p.HTMLURL,
		Mergeable: p.Mergeable,
		Comments:  p.Comments,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type commentDTO struct {
	ID        uint64    `json:"id"`
	User      userDTO   `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (c commentDTO) toType() types.Comment {
	return types.Comment{ID: c.ID, Author: c.User.Login, Body: c.Body, CreatedAt: c.CreatedAt}
}

type reactionDTO struct {
	ID      uint64  `json:"id"`
	Content string  `json:"content"`
	User    userDTO `json:"user"`
}

func (r reactionDTO) toType() types.Reaction {
	return types.Reaction{ID: r.ID, Content: r.Content, User: r.User.Login}
}

type tagDTO struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type workflowRunsResponse struct {
	TotalCount   int                 `json:"total_count"`
	WorkflowRuns []types.WorkflowRun `json:"workflow_runs"`
}

type mergeRequest struct {
	MergeMethod string `json:"merge_method"`
}

type MergeResult struct {
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
	SHA     string `json:"sha"`
}

type commentRequest struct {
	Body string `json:"body"`
}

type reactionRequest struct {
	Content string `json:"content"`
}
