package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"prdeck/internal/logging"
	"prdeck/internal/types"
)

// NewReleaseFeed returns an unauthenticated client for the releases of
// repository ("owner/name").
func NewReleaseFeed(baseURL, repository string, logger logging.Logger) (*Client, error) {
	owner, name, ok := strings.Cut(strings.Trim(repository, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid release repository %q", repository)
	}
	return New(baseURL, types.Repository{Owner: owner, Name: name}, nil, logger), nil
}

func (c *Client) ListReleases(ctx context.Context) ([]types.Release, error) {
	var resp []types.Release
	if err := c.doJSON(ctx, http.MethodGet, c.repoPath("/releases?per_page=20"), nil, false, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
