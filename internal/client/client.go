package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"prdeck/internal/logging"
	"prdeck/internal/types"
)

const (
	apiVersion = "2022-11-28"
	userAgent  = "prdeck"
)

// TokenSource supplies bearer tokens. ForceRefresh is called at most once
// per request after the remote rejects a token.
type TokenSource interface {
	ValidToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context, rejected string) (string, error)
}

// Client is a forge REST client scoped to one repository.
type Client struct {
	baseURL string
	repo    types.Repository
	tokens  TokenSource
	http    *http.Client
	logger  logging.Logger
	detail  singleflight.Group
}

func New(baseURL string, repo types.Repository, tokens TokenSource, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		repo:    repo,
		tokens:  tokens,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) Repository() types.Repository {
	return c.repo
}

func (c *Client) repoPath(format string, args ...any) string {
	prefix := fmt.Sprintf("/repos/%s/%s", url.PathEscape(c.repo.Owner), url.PathEscape(c.repo.Name))
	return prefix + fmt.Sprintf(format, args...)
}

func (c *Client) GetRepository(ctx context.Context) (types.Repository, error) {
	var resp repositoryDTO
	if err := c.doJSON(ctx, http.MethodGet, c.repoPath(""), nil, true, &resp); err != nil {
		return types.Repository{}, err
	}
	repo := c.repo
	repo.DefaultBranch = resp.DefaultBranch
	return repo, nil
}

// CurrentUser returns the login the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var resp userDTO
	if err := c.doJSON(ctx, http.MethodGet, "/user", nil, true, &resp); err != nil {
		return "", err
	}
	return resp.Login, nil
}

func (c *Client) ListPullRequests(ctx context.Context, state string) ([]types.PullRequest, error) {
	if state == "" {
		state = "open"
	}
	var resp []pullRequestDTO
	path := c.repoPath("/pulls?state=%s&per_page=50", url.QueryEscape(state))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	out := make([]types.PullRequest, 0, len(resp))
	for _, pr := range resp {
		out = append(out, pr.toType())
	}
	return out, nil
}

// GetPullRequest coalesces concurrent fetches of the same number.
func (c *Client) GetPullRequest(ctx context.Context, number uint64) (types.PullRequest, error) {
	key := fmt.Sprintf("pr-%d", number)
	v, err, _ := c.detail.Do(key, func() (any, error) {
		var resp pullRequestDTO
		if err := c.doJSON(ctx, http.MethodGet, c.repoPath("/pulls/%d", number), nil, true, &resp); err != nil {
			return nil, err
		}
		return resp.toType(), nil
	})
	if err != nil {
		return types.PullRequest{}, err
	}
	return v.(types.PullRequest), nil
}

func (c *Client) CreatePullRequest(ctx context.Context, req types.NewPullRequest) (types.PullRequest, error) {
	if strings.TrimSpace(req.Title) == "" {
		return types.PullRequest{}, errors.New("title is required")
	}
	var resp pullRequestDTO
	if err := c.doJSON(ctx, http.MethodPost, c.repoPath("/pulls"), req, true, &resp); err != nil {
		return types.PullRequest{}, err
	}
	return resp.toType(), nil
}

func (c *Client) MergePullRequest(ctx context.Context, number uint64, method types.MergeMethod) (MergeResult, error) {
	if method == "" {
		method = types.MergeMethodMerge
	}
	var resp MergeResult
	body := mergeRequest{MergeMethod: string(method)}
	if err := c.doJSON(ctx, http.MethodPut, c.repoPath("/pulls/%d/merge", number), body, true, &resp); err != nil {
		return MergeResult{}, err
	}
	return resp, nil
}

func (c *Client) ListComments(ctx context.Context, number uint64) ([]types.Comment, error) {
	var resp []commentDTO
	if err := c.doJSON(ctx, http.MethodGet, c.repoPath("/issues/%d/comments?per_page=100", number), nil, true, &resp); err != nil {
		return nil, err
	}
	out := make([]types.Comment, 0, len(resp))
	for _, comment := range resp {
		out = append(out, comment.toType())
	}
	return out, nil
}

func (c *Client) AddComment(ctx context.Context, number uint64, body string) (types.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return types.Comment{}, errors.New("comment body is required")
	}
	var resp commentDTO
	if err := c.doJSON(ctx, http.MethodPost, c.repoPath("/issues/%d/comments", number), commentRequest{Body: body}, true, &resp); err != nil {
		return types.Comment{}, err
	}
	return resp.toType(), nil
}

func (c *Client) ListReactions(ctx context.Context, number uint64) ([]types.Reaction, error) {
	var resp []reactionDTO
	if err := c.doJSON(ctx, http.MethodGet, c.repoPath("/issues/%d/reactions?per_page=100", number), nil, true, &resp); err != nil {
		return nil, err
	}
	out := make([]types.Reaction, 0, len(resp))
	for _, reaction := range resp {
		out = append(out, reaction.toType())
	}
	return out, nil
}

func (c *Client) AddReaction(ctx context.Context, number uint64, content string) (types.Reaction, error) {
	var resp reactionDTO
	if err := c.doJSON(ctx, http.MethodPost, c.repoPath("/issues/%d/reactions", number), reactionRequest{Content: content}, true, &resp); err != nil {
		return types.Reaction{}, err
	}
	return resp.toType(), nil
}

func (c *Client) DeleteReaction(ctx context.Context, number, reactionID uint64) error {
	return c.doJSON(ctx, http.MethodDelete, c.repoPath("/issues/%d/reactions/%d", number, reactionID), nil, true, nil)
}

func (c *Client) ListBranches(ctx context.Context) ([]types.Branch, error) {
	var resp []types.Branch
	if err := c.doJSON(ctx, http.MethodGet, c.repoPath("/branches?per_page=100"), nil, true, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ListTags(ctx context.Context) ([]types.Tag, error) {
	var resp []tagDTO
	if err := c.doJSON(ctx, http.MethodGet, c.repoPath("/tags?per_page=100"), nil, true, &resp); err != nil {
		return nil, err
	}
	out := make([]types.Tag, 0, len(resp))
	for _, tag := range resp {
		out = append(out, types.Tag{Name: tag.Name, Commit: tag.Commit.SHA, Remote: true})
	}
	return out, nil
}

func (c *Client) ListWorkflowRuns(ctx context.Context) ([]types.WorkflowRun, error) {
	var resp workflowRunsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.repoPath("/actions/runs?per_page=30"), nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.WorkflowRuns, nil
}

// doJSON sends one request. With requireAuth, a 401 triggers a single forced
// refresh and retry.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, requireAuth bool, out any) error {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = buf
	}
	token := ""
	if requireAuth {
		var err error
		token, err = c.tokens.ValidToken(ctx)
		if err != nil {
			return err
		}
	}
	err := c.send(ctx, method, path, payload, token, out)
	if !requireAuth || !IsUnauthorized(err) {
		return err
	}
	c.logger.Info("token rejected; forcing refresh", logging.F("path", path))
	refreshed, refreshErr := c.tokens.ForceRefresh(ctx, token)
	if refreshErr != nil {
		return refreshErr
	}
	return c.send(ctx, method, path, payload, refreshed, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	c.logger.Debug("forge request",
		logging.F("method", method),
		logging.F("path", path),
		logging.F("status", resp.StatusCode),
		logging.F("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var orgRestrictionPattern = regexp.MustCompile("the `([^`]+)` organization has enabled OAuth App access restrictions")

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload)
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: payload.Message}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	if match := orgRestrictionPattern.FindStringSubmatch(payload.Message); match != nil {
		apiErr.RestrictedOrg = match[1]
	}
	return apiErr
}

type APIError struct {
	StatusCode    int
	Message       string
	RestrictedOrg string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.RestrictedOrg != "":
		return fmt.Sprintf("organization %q restricts OAuth app access; authenticate with a personal access token (`prdeck auth login --pat`)", e.RestrictedOrg)
	case e.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(e.Message), "rate limit"):
		return "API rate limit exceeded; wait a few minutes and try again"
	case e.StatusCode == http.StatusNotFound:
		return "not found; the repository may be private or you may not have access"
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func IsUnauthorized(err error) bool {
	apiErr := asAPIError(err)
	return apiErr != nil && apiErr.StatusCode == http.StatusUnauthorized
}

func IsNotFound(err error) bool {
	apiErr := asAPIError(err)
	return apiErr != nil && apiErr.StatusCode == http.StatusNotFound
}

func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
