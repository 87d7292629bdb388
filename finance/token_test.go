package finance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T, calls *int32, token string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "svc-user", creds["username"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"expires_in":   3600,
		})
	}))
}

func TestTokenReusedWithinExpiryWindow(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "tok-1")
	defer srv.Close()

	tm := newTokenManager(srv.URL, "svc-user", "secret", srv.Client())

	first, err := tm.getToken(context.Background())
	require.NoError(t, err)
	second, err := tm.getToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", first)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "second call must hit the cache")
}

func TestTokenRefreshedInsideExpiryMargin(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "tok-1")
	defer srv.Close()

	tm := newTokenManager(srv.URL, "svc-user", "secret", srv.Client())

	_, err := tm.getToken(context.Background())
	require.NoError(t, err)

	// Jump the clock to 2 minutes before expiry, inside the 5 minute margin.
	tm.now = func() time.Time { return time.Now().Add(3600*time.Second - 2*time.Minute) }

	_, err = tm.getToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTokenRefreshedAfterForcedExpiry(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "tok-1")
	defer srv.Close()

	tm := newTokenManager(srv.URL, "svc-user", "secret", srv.Client())

	_, err := tm.getToken(context.Background())
	require.NoError(t, err)
	tm.expireNow()
	_, err = tm.getToken(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTokenMissingCredentialsNeverCallsNetwork(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "tok-1")
	defer srv.Close()

	tm := newTokenManager(srv.URL, "", "", srv.Client())

	_, err := tm.getToken(context.Background())
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeCredentials, fe.Code)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestTokenAuthFailureSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	tm := newTokenManager(srv.URL, "svc-user", "wrong", srv.Client())

	_, err := tm.getToken(context.Background())
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeAPIError, fe.Code)
	assert.Equal(t, http.StatusUnauthorized, fe.StatusCode)
}

func TestTokenResponseMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"expires_in": 3600})
	}))
	defer srv.Close()

	tm := newTokenManager(srv.URL, "svc-user", "secret", srv.Client())

	_, err := tm.getToken(context.Background())
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeAPIError, fe.Code)
}
