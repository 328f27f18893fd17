package ai

import (
	"context"
	"strings"

	"prdeck/internal/credentials"
)

// ResolveAPIKey prefers GEMINI_API_KEY over the stored key.
func ResolveAPIKey(ctx context.Context, secrets *credentials.Cache, getenv func(string) string) (string, error) {
	if getenv != nil {
		if key := strings.TrimSpace(getenv(EnvAPIKeyVar)); key != "" {
			return key, nil
		}
	}
	if secrets == nil {
		return "", ErrNoAPIKey
	}
	entry, err := secrets.Get(ctx, credentials.KeyGeminiAPIKey)
	if err != nil {
		return "", err
	}
	if entry.State != credentials.Present || strings.TrimSpace(entry.Value) == "" {
		return "", ErrNoAPIKey
	}
	return entry.Value, nil
}
