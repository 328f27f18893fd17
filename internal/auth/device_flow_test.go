package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestOAuthClient(baseURL string) (*OAuthClient, *[]time.Duration) {
	c := NewOAuthClient(baseURL, "client-123", []string{"repo", "read:org"}, nil)
	c.now = func() time.Time { return testNow }
	var mu sync.Mutex
	slept := []time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestRequestCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != deviceCodePath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("client_id") != "client-123" || r.PostForm.Get("scope") != "repo read:org" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected json accept header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-1",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://github.com/login/device",
			"expires_in":       900,
			"interval":         5,
		})
	}))
	defer server.Close()

	c, _ := newTestOAuthClient(server.URL)
	code, err := c.RequestCode(context.Background())
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if code.UserCode != "ABCD-1234" || code.Interval != 5 {
		t.Fatalf("unexpected code %#v", code)
	}
}

func TestPollHandlesPendingAndSlowDown(t *testing.T) {
	responses := []map[string]any{
		{"error": "authorization_pending"},
		{"error": "slow_down"},
		{"error": "slow_down"},
		{
			"access_token":             "gho_access",
			"token_type":               "bearer",
			"scope":                    "repo,read:org",
			"expires_in":               28800,
			"refresh_token":            "ghr_refresh",
			"refresh_token_expires_in": 15897600,
		},
	}
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != deviceGrantType {
			t.Errorf("unexpected grant type %q", r.PostForm.Get("grant_type"))
		}
		mu.Lock()
		next := responses[0]
		responses = responses[1:]
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(next)
	}))
	defer server.Close()

	c, slept := newTestOAuthClient(server.URL)
	data, err := c.Poll(context.Background(), DeviceCode{DeviceCode: "dev-1", ExpiresIn: 900, Interval: 50})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if data.AccessToken != "gho_access" || data.RefreshToken != "ghr_refresh" {
		t.Fatalf("unexpected token data %#v", data)
	}
	if !data.ExpiresAt.Equal(testNow.Add(8 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", data.ExpiresAt)
	}
	want := []time.Duration{50 * time.Second, 50 * time.Second, 55 * time.Second, 60 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("unexpected sleeps %v", *slept)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("sleep %d = %s, want %s", i, (*slept)[i], want[i])
		}
	}
}

func TestPollTerminalErrors(t *testing.T) {
	cases := map[string]ErrorKind{
		"access_denied": KindAuthorizationDenied,
		"expired_token": KindAuthorizationExpired,
	}
	for code, kind := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
		}))
		c, _ := newTestOAuthClient(server.URL)
		_, err := c.Poll(context.Background(), DeviceCode{DeviceCode: "dev", ExpiresIn: 900, Interval: 1})
		server.Close()
		if !IsKind(err, kind) {
			t.Fatalf("%s: expected %s, got %v", code, kind, err)
		}
	}
}

func TestNextPollIntervalIsCapped(t *testing.T) {
	if got := nextPollInterval(5 * time.Second); got != 10*time.Second {
		t.Fatalf("unexpected step %s", got)
	}
	if got := nextPollInterval(58 * time.Second); got != maxPollInterval {
		t.Fatalf("expected cap, got %s", got)
	}
	if got := nextPollInterval(maxPollInterval); got != maxPollInterval {
		t.Fatalf("expected cap to hold, got %s", got)
	}
}

func TestRefreshWithoutRefreshTokenIsNotRefreshable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "ghr_old" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_new", "token_type": "bearer"})
	}))
	defer server.Close()

	c, _ := newTestOAuthClient(server.URL)
	data, err := c.Refresh(context.Background(), "ghr_old")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if data.AccessToken != "gho_new" || data.CanRefresh(testNow) {
		t.Fatalf("expected non-refreshable token, got %#v", data)
	}
	if !data.AccessValid(testNow) {
		t.Fatalf("expected long-lived access token")
	}
}

func TestRefreshReportsOAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad_refresh_token", "error_description": "The refresh token is invalid"})
	}))
	defer server.Close()
	c, _ := newTestOAuthClient(server.URL)
	if _, err := c.Refresh(context.Background(), "x"); err == nil {
		t.Fatalf("expected error")
	}
}
