package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"prdeck/internal/credentials"
	"prdeck/internal/logging"
)

// EnvTokenVar overrides every stored credential when set.
const EnvTokenVar = "GITHUB_TOKEN"

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenData, error)
}

type Method string

const (
	MethodNone  Method = "none"
	MethodEnv   Method = "environment"
	MethodOAuth Method = "oauth"
	MethodToken Method = "token"
)

type Status struct {
	Method      Method
	MaskedToken string
	ExpiresAt   time.Time
	CanRefresh  bool
}

// Manager resolves bearer tokens and owns the refresh critical section.
// One Manager should exist per process.
type Manager struct {
	cache     *credentials.Cache
	refresher Refresher
	getenv    func(string) string
	now       func() time.Time
	logger    logging.Logger

	refreshMu sync.Mutex
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithEnv(getenv func(string) string) ManagerOption {
	return func(m *Manager) {
		if getenv != nil {
			m.getenv = getenv
		}
	}
}

func WithLogger(logger logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(cache *credentials.Cache, refresher Refresher, opts ...ManagerOption) *Manager {
	m := &Manager{
		cache:     cache,
		refresher: refresher,
		getenv:    os.Getenv,
		now:       time.Now,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// ValidToken returns a bearer token, refreshing stored OAuth data when it is
// within ExpiryBuffer of expiring.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	if override := m.envToken(); override != "" {
		return override, nil
	}
	data, ok, err := m.loadTokenData(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		if data.AccessValid(m.now()) {
			return data.AccessToken, nil
		}
		refreshed, err := m.refresh(ctx, "")
		if err != nil {
			return "", err
		}
		return refreshed.AccessToken, nil
	}
	legacy, err := m.cache.Get(ctx, credentials.KeyGitHubToken)
	if err != nil {
		return "", storeUnavailable(err)
	}
	if legacy.State == credentials.Present && strings.TrimSpace(legacy.Value) != "" {
		return legacy.Value, nil
	}
	return "", newError(KindNotAuthenticated, "not authenticated; run `prdeck auth login`", nil)
}

// ForceRefresh refreshes after the remote rejected token. When another caller
// already replaced that token, the replacement is returned instead.
func (m *Manager) ForceRefresh(ctx context.Context, rejected string) (string, error) {
	if m.envToken() != "" {
		return "", newError(KindTokenRefreshFailed, "GITHUB_TOKEN was rejected; it cannot be refreshed", nil)
	}
	refreshed, err := m.refresh(ctx, rejected)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// refresh runs the refresh protocol under refreshMu. An empty rejected token
// means the caller only saw an expiring token.
func (m *Manager) refresh(ctx context.Context, rejected string) (TokenData, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	now := m.now()
	data, ok, err := m.loadTokenData(ctx)
	if err != nil {
		return TokenData{}, err
	}
	if !ok {
		return TokenData{}, newError(KindNotAuthenticated, "no refreshable credentials stored; run `prdeck auth login`", nil)
	}
	if data.AccessValid(now) && (rejected == "" || data.AccessToken != rejected) {
		return data, nil
	}
	if !data.CanRefresh(now) {
		m.clearTokens(ctx)
		return TokenData{}, newError(KindTokenRefreshExpired, "session expired; run `prdeck auth login`", nil)
	}

	m.logger.Info("refreshing access token", logging.F("expires_at", data.ExpiresAt))
	refreshed, err := m.refresher.Refresh(ctx, data.RefreshToken)
	if err != nil {
		m.clearTokens(ctx)
		m.logger.Warn("token refresh failed", logging.Err(err))
		return TokenData{}, newError(KindTokenRefreshFailed, "token refresh failed: "+err.Error(), err)
	}
	if err := m.StoreTokenData(ctx, refreshed); err != nil {
		return TokenData{}, err
	}
	return refreshed, nil
}

// StoreTokenData persists OAuth token data along with the plain token used
// by older readers.
func (m *Manager) StoreTokenData(ctx context.Context, data TokenData) error {
	raw, err := encodeTokenData(data)
	if err != nil {
		return err
	}
	if err := m.cache.Set(ctx, credentials.KeyGitHubTokenData, raw); err != nil {
		return storeUnavailable(err)
	}
	if err := m.cache.Set(ctx, credentials.KeyGitHubToken, data.AccessToken); err != nil {
		return storeUnavailable(err)
	}
	return nil
}

// LoginWithToken stores a personal access token, replacing any OAuth data.
func (m *Manager) LoginWithToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	if err := m.cache.Delete(ctx, credentials.KeyGitHubTokenData); err != nil {
		return storeUnavailable(err)
	}
	if err := m.cache.Set(ctx, credentials.KeyGitHubToken, token); err != nil {
		return storeUnavailable(err)
	}
	return nil
}

// Logout deletes every stored credential, the AI key included.
func (m *Manager) Logout(ctx context.Context) error {
	for _, key := range []string{credentials.KeyGitHubTokenData, credentials.KeyGitHubToken, credentials.KeyGeminiAPIKey} {
		if err := m.cache.Delete(ctx, key); err != nil {
			return storeUnavailable(err)
		}
	}
	return nil
}

// IsAuthenticated reports whether any credential source is configured. It
// does not validate the credential remotely.
func (m *Manager) IsAuthenticated(ctx context.Context) (bool, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Method != MethodNone, nil
}

func (m *Manager) Status(ctx context.Context) (Status, error) {
	if override := m.envToken(); override != "" {
		return Status{Method: MethodEnv, MaskedToken: logging.Mask(override)}, nil
	}
	data, ok, err := m.loadTokenData(ctx)
	if err != nil {
		return Status{}, err
	}
	if ok {
		return Status{
			Method:      MethodOAuth,
			MaskedToken: logging.Mask(data.AccessToken),
			ExpiresAt:   data.ExpiresAt,
			CanRefresh:  data.CanRefresh(m.now()),
		}, nil
	}
	legacy, err := m.cache.Get(ctx, credentials.KeyGitHubToken)
	if err != nil {
		return Status{}, storeUnavailable(err)
	}
	if legacy.State == credentials.Present && legacy.Value != "" {
		return Status{Method: MethodToken, MaskedToken: logging.Mask(legacy.Value)}, nil
	}
	return Status{Method: MethodNone}, nil
}

func (m *Manager) envToken() string {
	return strings.TrimSpace(m.getenv(EnvTokenVar))
}

func (m *Manager) loadTokenData(ctx context.Context) (TokenData, bool, error) {
	entry, err := m.cache.Get(ctx, credentials.KeyGitHubTokenData)
	if err != nil {
		return TokenData{}, false, storeUnavailable(err)
	}
	if entry.State != credentials.Present {
		return TokenData{}, false, nil
	}
	data, err := decodeTokenData(entry.Value)
	if err != nil {
		m.logger.Warn("ignoring unreadable token data", logging.Err(err))
		return TokenData{}, false, nil
	}
	return data, true, nil
}

func (m *Manager) clearTokens(ctx context.Context) {
	if err := m.cache.Delete(ctx, credentials.KeyGitHubTokenData); err != nil {
		m.logger.Warn("delete token data failed", logging.Err(err))
	}
	if err := m.cache.Delete(ctx, credentials.KeyGitHubToken); err != nil {
		m.logger.Warn("delete token failed", logging.Err(err))
	}
}

func storeUnavailable(err error) error {
	return newError(KindCredentialStoreUnavailable, "credential store unavailable: "+err.Error(), err)
}
