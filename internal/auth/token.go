package auth

import (
	"encoding/json"
	"time"
)

// ExpiryBuffer is how far ahead of expiry an access token is considered
// stale.
const ExpiryBuffer = 5 * time.Minute

const tokenDataVersion = 1

// TokenData is persisted as a single JSON secret.
type TokenData struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	TokenType             string    `json:"token_type"`
	Scope                 string    `json:"scope"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	Version               int       `json:"version"`
}

func (t TokenData) AccessValid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(ExpiryBuffer).Before(t.ExpiresAt)
}

func (t TokenData) CanRefresh(now time.Time) bool {
	return t.RefreshToken != "" && now.Before(t.RefreshTokenExpiresAt)
}

func encodeTokenData(t TokenData) (string, error) {
	if t.Version == 0 {
		t.Version = tokenDataVersion
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeTokenData(raw string) (TokenData, error) {
	var t TokenData
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return TokenData{}, err
	}
	return t, nil
}
