package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// expiryMargin is how long before the lender-reported expiry we stop trusting
// a cached token and fetch a fresh one.
const expiryMargin = 5 * time.Minute

const defaultTokenTTL = 3600 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenManager obtains and caches a bearer token from the lender's auth
// endpoint. It is owned by a client instance, never a package singleton, so
// tests construct isolated instances with independent cache state.
type tokenManager struct {
	authURL    string
	username   string
	password   string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	// now is swappable in tests.
	now func() time.Time
}

func newTokenManager(authURL, username, password string, httpClient *http.Client) *tokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &tokenManager{
		authURL:    authURL,
		username:   username,
		password:   password,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// getToken returns a cached token while it is more than expiryMargin from
// expiry, otherwise exchanges credentials synchronously. Two concurrent
// callers serialize on the cache; worst case one redundant auth call after a
// racing refresh, which is idempotent.
func (t *tokenManager) getToken(ctx context.Context) (string, error) {
	if t.username == "" || t.password == "" {
		return "", NewConfigError("lender credentials not configured")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accessToken != "" && t.now().Before(t.tokenExpiry.Add(-expiryMargin)) {
		return t.accessToken, nil
	}

	body, _ := json.Marshal(map[string]string{
		"username": t.username,
		"password": t.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.authURL, bytes.NewReader(body))
	if err != nil {
		return "", NewNetworkError(t.authURL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", NewNetworkError(t.authURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", NewAPIError(resp.StatusCode, "lender authentication failed", map[string]any{
			"body": string(raw),
		})
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", NewAPIError(500, fmt.Sprintf("invalid token response: %v", err), nil)
	}
	if tr.AccessToken == "" {
		return "", NewAPIError(500, "token response missing access_token", nil)
	}

	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}
	t.accessToken = tr.AccessToken
	t.tokenExpiry = t.now().Add(ttl)

	return t.accessToken, nil
}

// expireNow drops the cached token. Test hook.
func (t *tokenManager) expireNow() {
	t.mu.Lock()
	t.tokenExpiry = time.Time{}
	t.accessToken = ""
	t.mu.Unlock()
}
