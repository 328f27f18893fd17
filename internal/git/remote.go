package git

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRemote extracts owner and repository name from an https, scp-style
// or ssh:// remote URL.
func ParseRemote(remote string) (owner, name string, err error) {
	remote = strings.TrimSpace(remote)
	var path string
	switch {
	case strings.Contains(remote, "://"):
		parsed, parseErr := url.Parse(remote)
		if parseErr != nil || parsed.Host == "" {
			return "", "", fmt.Errorf("invalid remote url %q", remote)
		}
		path = parsed.Path
	case strings.Contains(remote, "@") && strings.Contains(remote, ":"):
		_, after, _ := strings.Cut(remote, ":")
		path = after
	default:
		return "", "", fmt.Errorf("invalid remote url %q", remote)
	}
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid remote url %q", remote)
	}
	return parts[0], parts[1], nil
}
