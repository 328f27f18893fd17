package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prdeck/internal/credentials"
	"prdeck/internal/store"
)

func geminiServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gemini-2.5-flash:generateContent" || r.URL.Query().Get("key") != "test-key" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || !strings.Contains(req.Contents[0].Parts[0].Text, "git diff") {
			t.Errorf("unexpected prompt %#v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": reply}}}}},
		})
	}))
}

func TestCommitMessageStripsFences(t *testing.T) {
	server := geminiServer(t, "```\nfeat(ui): add tags screen\n```")
	defer server.Close()

	c, err := NewClient(server.URL, "gemini-2.5-flash", "test-key", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	msg, err := c.CommitMessage(context.Background(), "diff --git a/x b/x\n+line\n")
	if err != nil {
		t.Fatalf("CommitMessage: %v", err)
	}
	if msg != "feat(ui): add tags screen" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPRContentParsesFencedJSON(t *testing.T) {
	server := geminiServer(t, "Here you go:\n```json\n{\"title\": \"Add tags screen\", \"body\": \"- lists tags\"}\n```")
	defer server.Close()

	c, _ := NewClient(server.URL, "gemini-2.5-flash", "test-key", nil)
	content, err := c.PRContent(context.Background(), "diff --git a/x b/x\n+line\n", "feature/tags")
	if err != nil {
		t.Fatalf("PRContent: %v", err)
	}
	if content.Title != "Add tags screen" || content.Body != "- lists tags" {
		t.Fatalf("unexpected content %#v", content)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("http://x", "m", " ", nil); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"title":"a"}`:                       `{"title":"a"}`,
		"```json\n{\"title\":\"a\"}\n```":     `{"title":"a"}`,
		"```\n{\"title\":\"a\"}\n```":         `{"title":"a"}`,
		"Sure! {\"title\":\"a\"} hope it helps": `{"title":"a"}`,
	}
	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Fatalf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateDiffKeepsWholeFiles(t *testing.T) {
	small := "diff --git a/small.go b/small.go\n+ok\n"
	big := "diff --git a/big.go b/big.go\n" + strings.Repeat("+aaaaaaaaaa\n", 50) + strings.Repeat("-bbbbbbbbbb\n", 10)
	bin := "diff --git a/logo.png b/logo.png\nBinary files a/logo.png and b/logo.png differ\n"
	diff := small + big + bin

	out := TruncateDiff(diff, 300)
	if !strings.Contains(out, "+ok") {
		t.Fatalf("expected small file kept:\n%s", out)
	}
	if strings.Contains(out, "+aaaaaaaaaa") {
		t.Fatalf("expected big file summarized:\n%s", out)
	}
	if !strings.Contains(out, "big.go (+50/-10 lines)") {
		t.Fatalf("expected big file summary:\n%s", out)
	}
	if TruncateDiff(diff, len(diff)) != diff {
		t.Fatalf("diff within limit must be unchanged")
	}
}

func TestTruncateDiffWithoutSections(t *testing.T) {
	out := TruncateDiff(strings.Repeat("line\n", 100), 50)
	if len(out) > 50+len("\n... (diff truncated)") || !strings.HasSuffix(out, "... (diff truncated)") {
		t.Fatalf("unexpected fallback truncation %q", out)
	}
}

type mapStore map[string]string

func (m mapStore) Get(_ context.Context, service, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", store.ErrSecretNotFound
	}
	return v, nil
}
func (m mapStore) Set(_ context.Context, service, key, value string) error { m[key] = value; return nil }
func (m mapStore) Delete(_ context.Context, service, key string) error     { delete(m, key); return nil }

func TestResolveAPIKey(t *testing.T) {
	cache := credentials.NewCache(mapStore{credentials.KeyGeminiAPIKey: "stored"}, credentials.ServiceName)
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	key, err := ResolveAPIKey(context.Background(), cache, getenv)
	if err != nil || key != "stored" {
		t.Fatalf("expected stored key, got %q %v", key, err)
	}
	env[EnvAPIKeyVar] = "from-env"
	if key, _ := ResolveAPIKey(context.Background(), cache, getenv); key != "from-env" {
		t.Fatalf("expected env key, got %q", key)
	}
	empty := credentials.NewCache(mapStore{}, credentials.ServiceName)
	if _, err := ResolveAPIKey(context.Background(), empty, func(string) string { return "" }); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}
