package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"prdeck/internal/credentials"
	"prdeck/internal/store"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type memorySecretStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySecretStore() *memorySecretStore {
	return &memorySecretStore{values: map[string]string{}}
}

func (s *memorySecretStore) Get(_ context.Context, service, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[service+"/"+key]
	if !ok {
		return "", store.ErrSecretNotFound
	}
	return v, nil
}

func (s *memorySecretStore) Set(_ context.Context, service, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[service+"/"+key] = value
	return nil
}

func (s *memorySecretStore) Delete(_ context.Context, service, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, service+"/"+key)
	return nil
}

func (s *memorySecretStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[credentials.ServiceName+"/"+key]
	return ok
}

type fakeRefresher struct {
	calls atomic.Int32
	delay time.Duration
	data  TokenData
	err   error
}

func (r *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (TokenData, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return TokenData{}, r.err
	}
	return r.data, nil
}

type managerFixture struct {
	secrets   *memorySecretStore
	refresher *fakeRefresher
	manager   *Manager
	env       map[string]string
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		secrets: newMemorySecretStore(),
		refresher: &fakeRefresher{data: TokenData{
			AccessToken:           "fresh-access-token",
			RefreshToken:          "fresh-refresh-token",
			ExpiresAt:             testNow.Add(8 * time.Hour),
			RefreshTokenExpiresAt: testNow.Add(180 * 24 * time.Hour),
		}},
		env: map[string]string{},
	}
	cache := credentials.NewCache(f.secrets, credentials.ServiceName)
	f.manager = NewManager(cache, f.refresher,
		WithClock(func() time.Time { return testNow }),
		WithEnv(func(key string) string { return f.env[key] }),
	)
	return f
}

func (f *managerFixture) storeTokenData(t *testing.T, data TokenData) {
	t.Helper()
	raw, err := encodeTokenData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = f.secrets.Set(context.Background(), credentials.ServiceName, credentials.KeyGitHubTokenData, raw)
	_ = f.secrets.Set(context.Background(), credentials.ServiceName, credentials.KeyGitHubToken, data.AccessToken)
}

func expiredData() TokenData {
	return TokenData{
		AccessToken:           "old-access-token",
		RefreshToken:          "old-refresh-token",
		ExpiresAt:             testNow.Add(time.Minute),
		RefreshTokenExpiresAt: testNow.Add(24 * time.Hour),
	}
}

func TestValidTokenEnvOverrideWins(t *testing.T) {
	f := newManagerFixture(t)
	f.env[EnvTokenVar] = "env-token"
	f.storeTokenData(t, expiredData())
	f.refresher.err = errors.New("should not be called")

	token, err := f.manager.ValidToken(context.Background())
	if err != nil {
		t.Fatalf("ValidToken: %v", err)
	}
	if token != "env-token" {
		t.Fatalf("expected env token, got %q", token)
	}
	if f.refresher.calls.Load() != 0 {
		t.Fatalf("env override must never refresh")
	}
	if !f.secrets.has(credentials.KeyGitHubTokenData) {
		t.Fatalf("env override must not touch stored data")
	}
}

func TestValidTokenExpiryBuffer(t *testing.T) {
	f := newManagerFixture(t)
	data := expiredData()
	data.ExpiresAt = testNow.Add(5*time.Minute + time.Second)
	f.storeTokenData(t, data)

	token, err := f.manager.ValidToken(context.Background())
	if err != nil {
		t.Fatalf("ValidToken: %v", err)
	}
	if token != "old-access-token" || f.refresher.calls.Load() != 0 {
		t.Fatalf("token 5m1s from expiry should be used as-is, got %q calls=%d", token, f.refresher.calls.Load())
	}

	f = newManagerFixture(t)
	data.ExpiresAt = testNow.Add(4*time.Minute + 59*time.Second)
	f.storeTokenData(t, data)
	token, err = f.manager.ValidToken(context.Background())
	if err != nil {
		t.Fatalf("ValidToken: %v", err)
	}
	if token != "fresh-access-token" || f.refresher.calls.Load() != 1 {
		t.Fatalf("token 4m59s from expiry should refresh, got %q calls=%d", token, f.refresher.calls.Load())
	}
}

func TestValidTokenConcurrentRefreshRunsOnce(t *testing.T) {
	f := newManagerFixture(t)
	f.refresher.delay = 20 * time.Millisecond
	f.storeTokenData(t, expiredData())

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = f.manager.ValidToken(context.Background())
		}(i)
	}
	wg.Wait()

	if got := f.refresher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != "fresh-access-token" {
			t.Fatalf("caller %d got %q", i, tokens[i])
		}
	}
}

func TestRefreshTerminalFailuresEvictTokenData(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TokenData)
		kind   ErrorKind
		err    error
	}{
		{name: "empty refresh token", mutate: func(d *TokenData) { d.RefreshToken = "" }, kind: KindTokenRefreshExpired},
		{name: "refresh token expired", mutate: func(d *TokenData) { d.RefreshTokenExpiresAt = testNow.Add(-time.Second) }, kind: KindTokenRefreshExpired},
		{name: "refresh call fails", mutate: func(*TokenData) {}, kind: KindTokenRefreshFailed, err: errors.New("bad_refresh_token")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newManagerFixture(t)
			f.refresher.err = tc.err
			data := expiredData()
			tc.mutate(&data)
			f.storeTokenData(t, data)

			_, err := f.manager.ValidToken(context.Background())
			if !IsKind(err, tc.kind) {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			if !NeedsLogin(err) {
				t.Fatalf("expected NeedsLogin for %v", err)
			}
			if f.secrets.has(credentials.KeyGitHubTokenData) || f.secrets.has(credentials.KeyGitHubToken) {
				t.Fatalf("expected stored token data to be deleted")
			}
			if _, err := f.manager.ValidToken(context.Background()); !IsKind(err, KindNotAuthenticated) {
				t.Fatalf("expected NotAuthenticated afterwards, got %v", err)
			}
		})
	}
}

func TestValidTokenLegacyAndMissing(t *testing.T) {
	f := newManagerFixture(t)
	if _, err := f.manager.ValidToken(context.Background()); !IsKind(err, KindNotAuthenticated) {
		t.Fatalf("expected NotAuthenticated, got %v", err)
	}

	f = newManagerFixture(t)
	_ = f.secrets.Set(context.Background(), credentials.ServiceName, credentials.KeyGitHubToken, "ghp_legacy_token_value")
	token, err := f.manager.ValidToken(context.Background())
	if err != nil || token != "ghp_legacy_token_value" {
		t.Fatalf("expected legacy token, got %q, %v", token, err)
	}
	if _, err := f.manager.ForceRefresh(context.Background(), token); !IsKind(err, KindNotAuthenticated) {
		t.Fatalf("legacy token cannot refresh, got %v", err)
	}
}

func TestForceRefreshSkipsWhenTokenAlreadyReplaced(t *testing.T) {
	f := newManagerFixture(t)
	current := f.refresher.data
	f.storeTokenData(t, current)

	token, err := f.manager.ForceRefresh(context.Background(), "some-older-token")
	if err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if token != current.AccessToken || f.refresher.calls.Load() != 0 {
		t.Fatalf("expected replacement token without refresh, got %q calls=%d", token, f.refresher.calls.Load())
	}

	f.refresher.data.AccessToken = "second-access-token"
	token, err = f.manager.ForceRefresh(context.Background(), current.AccessToken)
	if err != nil {
		t.Fatalf("ForceRefresh rejected: %v", err)
	}
	if token != "second-access-token" || f.refresher.calls.Load() != 1 {
		t.Fatalf("rejected token must refresh, got %q calls=%d", token, f.refresher.calls.Load())
	}
}

func TestStatusAndLogout(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	if ok, err := f.manager.IsAuthenticated(ctx); err != nil || ok {
		t.Fatalf("expected unauthenticated, got %v %v", ok, err)
	}
	if err := f.manager.LoginWithToken(ctx, "  ghp_personal_access_token  "); err != nil {
		t.Fatalf("LoginWithToken: %v", err)
	}
	status, err := f.manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Method != MethodToken || status.MaskedToken != "ghp_...oken" {
		t.Fatalf("unexpected status %#v", status)
	}
	if err := f.manager.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if ok, _ := f.manager.IsAuthenticated(ctx); ok {
		t.Fatalf("expected logout to clear credentials")
	}
}

type failingSecretStore struct{ memorySecretStore }

func (*failingSecretStore) Get(context.Context, string, string) (string, error) {
	return "", errors.New("keychain locked")
}

func TestStoreFailureIsClassified(t *testing.T) {
	cache := credentials.NewCache(&failingSecretStore{}, credentials.ServiceName)
	m := NewManager(cache, &fakeRefresher{}, WithEnv(func(string) string { return "" }))
	if _, err := m.ValidToken(context.Background()); !IsKind(err, KindCredentialStoreUnavailable) {
		t.Fatalf("expected CredentialStoreUnavailable, got %v", err)
	}
}
