package git

import (
	"context"
	"errors"
	"strings"

	"prdeck/internal/types"
)

// ListTags returns local tags, newest first.
func (r *Repo) ListTags(ctx context.Context) ([]types.Tag, error) {
	out, err := r.git(ctx, "for-each-ref", "--sort=-creatordate",
		"--format=%(refname:short)%09%(objectname:short)%09%(contents:subject)", "refs/tags")
	if err != nil {
		return nil, err
	}
	var tags []types.Tag
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		tag := types.Tag{Name: parts[0], Local: true}
		if len(parts) > 1 {
			tag.Commit = parts[1]
		}
		if len(parts) > 2 {
			tag.Message = parts[2]
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// CreateTag creates a lightweight tag, or an annotated one when message is
// set.
func (r *Repo) CreateTag(ctx context.Context, name, message string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("tag name is required")
	}
	if strings.TrimSpace(message) == "" {
		_, err := r.git(ctx, "tag", name)
		return err
	}
	_, err := r.git(ctx, "tag", "-a", name, "-m", message)
	return err
}

func (r *Repo) DeleteTag(ctx context.Context, name string) error {
	_, err := r.git(ctx, "tag", "-d", name)
	return err
}

func (r *Repo) PushTag(ctx context.Context, name string) error {
	_, err := r.git(ctx, "push", "origin", "refs/tags/"+name)
	return err
}

func (r *Repo) PushTags(ctx context.Context) error {
	_, err := r.git(ctx, "push", "origin", "--tags")
	return err
}

func (r *Repo) DeleteRemoteTag(ctx context.Context, name string) error {
	_, err := r.git(ctx, "push", "origin", "--delete", "refs/tags/"+name)
	return err
}

// MergeTags folds remote tags into the local list by name.
func MergeTags(local, remote []types.Tag) []types.Tag {
	out := make([]types.Tag, 0, len(local)+len(remote))
	index := map[string]int{}
	for _, tag := range local {
		index[tag.Name] = len(out)
		out = append(out, tag)
	}
	for _, tag := range remote {
		if i, ok := index[tag.Name]; ok {
			out[i].Remote = true
			continue
		}
		index[tag.Name] = len(out)
		out = append(out, tag)
	}
	return out
}
