package geodb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
)

const (
	tokenRefreshSkew = 30 * time.Second
	defaultTokenTTL  = 5 * time.Minute
)

// tokenSource performs the OAuth2 client-credentials exchange and caches the
// bearer token until shortly before it expires.
type tokenSource struct {
	hc           *http.Client
	endpoint     string
	clientID     string
	clientSecret string
	audience     string
	now          func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Add(tokenRefreshSkew).Before(t.expiry) {
		return t.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", t.clientID)
	form.Set("client_secret", t.clientSecret)
	form.Set("audience", t.audience)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.hc.Do(req)
	observability.ObserveUpstreamLatency("auth", "token", err, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("geodb token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return "", &RemoteError{Op: "token", Status: resp.StatusCode, Body: string(b)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", &RemoteError{Op: "token", Status: resp.StatusCode, Body: "empty access_token"}
	}

	t.token = tr.AccessToken
	t.expiry = t.tokenExpiry(tr)
	return t.token, nil
}

// tokenExpiry prefers the exp claim of a JWT access token. The signature is
// not checked here; the geoDB API does that.
func (t *tokenSource) tokenExpiry(tr tokenResponse) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if tr.ExpiresIn > 0 {
		return t.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return t.now().Add(defaultTokenTTL)
}
