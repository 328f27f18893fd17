package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prdeck/internal/logging"
)

const (
	deviceCodePath  = "/login/device/code"
	accessTokenPath = "/login/oauth/access_token"
	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	slowDownStep       = 5 * time.Second
	maxPollInterval    = 60 * time.Second
	noExpiryTokenLife  = 365 * 24 * time.Hour
	defaultPollSeconds = 5
)

type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	Scope                 string `json:"scope"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	Error                 string `json:"error"`
	ErrorDescription      string `json:"error_description"`
}

// OAuthClient talks to the forge's OAuth endpoints. It runs the device
// authorization flow and refreshes tokens for Manager.
type OAuthClient struct {
	baseURL  string
	clientID string
	scopes   []string
	http     *http.Client
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	logger   logging.Logger
}

func NewOAuthClient(baseURL, clientID string, scopes []string, logger logging.Logger) *OAuthClient {
	if logger == nil {
		logger = logging.Nop()
	}
	return &OAuthClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		scopes:   scopes,
		http:     &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logger,
	}
}

func (c *OAuthClient) RequestCode(ctx context.Context) (DeviceCode, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("scope", strings.Join(c.scopes, " "))
	var code DeviceCode
	if err := c.postForm(ctx, deviceCodePath, form, &code); err != nil {
		return DeviceCode{}, err
	}
	if code.DeviceCode == "" || code.UserCode == "" {
		return DeviceCode{}, newError(KindNetworkFailure, "device code response was incomplete", nil)
	}
	return code, nil
}

// Poll waits for the user to authorize code. Each slow_down response grows
// the interval by five seconds, up to one minute.
func (c *OAuthClient) Poll(ctx context.Context, code DeviceCode) (TokenData, error) {
	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollSeconds * time.Second
	}
	deadline := c.now().Add(time.Duration(code.ExpiresIn) * time.Second)

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("device_code", code.DeviceCode)
	form.Set("grant_type", deviceGrantType)

	for {
		if code.ExpiresIn > 0 && !c.now().Before(deadline) {
			return TokenData{}, newError(KindAuthorizationExpired, "device code expired; start the login again", nil)
		}
		if err := c.sleep(ctx, interval); err != nil {
			return TokenData{}, err
		}
		var resp tokenResponse
		if err := c.postForm(ctx, accessTokenPath, form, &resp); err != nil {
			return TokenData{}, err
		}
		switch resp.Error {
		case "":
			if resp.AccessToken == "" {
				return TokenData{}, newError(KindNetworkFailure, "token response had no access token", nil)
			}
			return tokenDataFromResponse(resp, c.now()), nil
		case "authorization_pending":
			continue
		case "slow_down":
			interval = nextPollInterval(interval)
			c.logger.Debug("device flow slow_down", logging.F("interval", interval))
		case "expired_token":
			return TokenData{}, newError(KindAuthorizationExpired, "device code expired; start the login again", nil)
		case "access_denied":
			return TokenData{}, newError(KindAuthorizationDenied, "authorization was denied", nil)
		default:
			return TokenData{}, newError(KindNetworkFailure, oauthErrorMessage(resp), nil)
		}
	}
}

func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (TokenData, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	var resp tokenResponse
	if err := c.postForm(ctx, accessTokenPath, form, &resp); err != nil {
		return TokenData{}, err
	}
	if resp.Error != "" {
		return TokenData{}, fmt.Errorf("%s", oauthErrorMessage(resp))
	}
	if resp.AccessToken == "" {
		return TokenData{}, fmt.Errorf("refresh response had no access token")
	}
	return tokenDataFromResponse(resp, c.now()), nil
}

func (c *OAuthClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return newError(KindNetworkFailure, "oauth request failed: "+err.Error(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return newError(KindNetworkFailure, "read oauth response: "+err.Error(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(KindNetworkFailure, fmt.Sprintf("oauth request failed: %s", strings.TrimSpace(string(body))), nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return newError(KindNetworkFailure, "decode oauth response: "+err.Error(), err)
	}
	return nil
}

// tokenDataFromResponse marks tokens without refresh metadata as
// non-refreshable by setting the refresh expiry to now.
func tokenDataFromResponse(resp tokenResponse, now time.Time) TokenData {
	data := TokenData{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Scope:       resp.Scope,
		Version:     tokenDataVersion,
	}
	if resp.RefreshToken != "" && resp.ExpiresIn > 0 && resp.RefreshTokenExpiresIn > 0 {
		data.RefreshToken = resp.RefreshToken
		data.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
		data.RefreshTokenExpiresAt = now.Add(time.Duration(resp.RefreshTokenExpiresIn) * time.Second)
		return data
	}
	life := noExpiryTokenLife
	if resp.ExpiresIn > 0 {
		life = time.Duration(resp.ExpiresIn) * time.Second
	}
	data.ExpiresAt = now.Add(life)
	data.RefreshTokenExpiresAt = now
	return data
}

func nextPollInterval(current time.Duration) time.Duration {
	next := current + slowDownStep
	if next > maxPollInterval {
		return maxPollInterval
	}
	return next
}

func oauthErrorMessage(resp tokenResponse) string {
	if resp.ErrorDescription != "" {
		return resp.Error + ": " + resp.ErrorDescription
	}
	return resp.Error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
