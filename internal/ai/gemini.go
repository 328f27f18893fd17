package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prdeck/internal/logging"
)

// EnvAPIKeyVar overrides the stored Gemini key.
const EnvAPIKeyVar = "GEMINI_API_KEY"

const maxDiffBytes = 8000

var ErrNoAPIKey = errors.New("no Gemini API key configured; set GEMINI_API_KEY or store one from the settings screen")

type PRContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
	logger  logging.Logger
}

func NewClient(baseURL, model, apiKey string, logger logging.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) CommitMessage(ctx context.Context, diff string) (string, error) {
	if strings.TrimSpace(diff) == "" {
		return "", errors.New("nothing staged to describe")
	}
	text, err := c.generate(ctx, commitMessagePrompt(TruncateDiff(diff, maxDiffBytes)), 1024)
	if err != nil {
		return "", err
	}
	return stripFences(text), nil
}

func (c *Client) PRContent(ctx context.Context, diff, branch string) (PRContent, error) {
	if strings.TrimSpace(diff) == "" {
		return PRContent{}, errors.New("branch has no changes to describe")
	}
	text, err := c.generate(ctx, prContentPrompt(TruncateDiff(diff, maxDiffBytes), branch), 4096)
	if err != nil {
		return PRContent{}, err
	}
	return parsePRContent(text)
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: 0.7, MaxOutputTokens: maxTokens},
	})
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()
	c.logger.Debug("gemini request", logging.F("model", c.model), logging.F("status", resp.StatusCode), logging.F("elapsed", time.Since(started)))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var decoded generateResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	for _, candidate := range decoded.Candidates {
		for _, p := range candidate.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text, nil
			}
		}
	}
	return "", errors.New("gemini returned an empty response")
}

// redactKey keeps the API key out of url.Error messages.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), url.QueryEscape(key), logging.Mask(key)))
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func parsePRContent(text string) (PRContent, error) {
	raw := extractJSON(text)
	var out PRContent
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return PRContent{}, fmt.Errorf("could not parse generated PR content: %w", err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Body = strings.TrimSpace(out.Body)
	if out.Title == "" {
		return PRContent{}, errors.New("generated PR content had no title")
	}
	return out, nil
}

// extractJSON pulls the first JSON object out of a reply that may wrap it
// in a fenced code block or surrounding prose.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		if candidate := strings.TrimSpace(rest); strings.HasPrefix(candidate, "{") {
			return candidate
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
