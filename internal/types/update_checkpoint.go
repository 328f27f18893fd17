package types

import (
	"strings"
	"time"
)

// UpdateCheckpoint is the durable self-update progress record.
type UpdateCheckpoint struct {
	LastCheck       *time.Time `json:"last_check,omitempty"`
	PendingPath     string     `json:"pending_update_path,omitempty"`
	PendingVersion  string     `json:"pending_version,omitempty"`
	PendingSHA256   string     `json:"pending_sha256,omitempty"`
	PartialDownload bool       `json:"partial_download"`
}

func (c *UpdateCheckpoint) HasPending() bool {
	return c != nil && !c.PartialDownload && strings.TrimSpace(c.PendingPath) != "" && strings.TrimSpace(c.PendingSHA256) != ""
}
