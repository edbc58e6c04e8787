package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/vicodes/process-flow-canvas-dream/internal/config"
	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/internal/services"
)

const (
	testIssuer   = "https://login.test-issuer.com/tenant"
	testClientID = "test-client"
)

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

func fakeToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := map[string]interface{}{
		"iss":                testIssuer,
		"aud":                testClientID,
		"sub":                "user-sub",
		"exp":                exp.Unix(),
		"iat":                time.Now().Add(-1 * time.Minute).Unix(),
		"name":               "Ada Lovelace",
		"preferred_username": "ada@acme.com",
		"tid":                "tenant-123",
		"oid":                "object-456",
	}
	headerData := map[string]interface{}{
		"alg": "RS256",
		"typ": "JWT",
		"kid": "test-key",
	}
	headerBytes, err := json.Marshal(headerData)
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(headerBytes) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
}

func testVerifier(skipClientID bool) *oidc.IDTokenVerifier {
	return oidc.NewVerifier(testIssuer, &MockKeySet{}, &oidc.Config{
		ClientID:          testClientID,
		SkipClientIDCheck: skipClientID,
	})
}

func newProviderAuth() *Auth {
	return &Auth{
		verifier:    testVerifier(false),
		apiVerifier: testVerifier(true),
		logger:      logging.Nop(),
	}
}

func newDevAuth(t *testing.T) *Auth {
	t.Helper()
	cfg := &config.Config{Environment: config.EnvDevelopment, DevModeBypass: true}
	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	return a
}

func cookie(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: base64.RawURLEncoding.EncodeToString([]byte(value))}
}

func okHandler(t *testing.T, check func(r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_BearerToken_SetsAccount(t *testing.T) {
	a := newProviderAuth()
	token := fakeToken(t, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	var called bool
	a.RequireAuth(okHandler(t, func(r *http.Request) {
		called = true
		acct, ok := AccountFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "ada@acme.com", acct.Username)
		assert.Equal(t, "tenant-123", acct.TenantID)
		assert.Equal(t, "object-456", acct.LocalAccountID)
		assert.Equal(t, "user-sub.tenant-123", acct.HomeAccountID)
		assert.Equal(t, "login.test-issuer.com", acct.Environment)
		assert.Equal(t, token, services.TokenFromContext(r.Context()))
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireAuth_InvalidBearer(t *testing.T) {
	a := newProviderAuth()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, time.Now().Add(-time.Hour)))
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler(t, nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRequireAuth_IDTokenCookie(t *testing.T) {
	a := newProviderAuth()
	req := httptest.NewRequest(http.MethodGet, "/processes", nil)
	req.AddCookie(cookie(keyIDToken, fakeToken(t, time.Now().Add(time.Hour))))
	req.AddCookie(cookie(keyAccessToken, "access-abc"))
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler(t, func(r *http.Request) {
		assert.Equal(t, "access-abc", services.TokenFromContext(r.Context()))
	})).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_RedirectPreservesPath(t *testing.T) {
	a := newDevAuth(t)

	req := httptest.NewRequest(http.MethodGet, "/processes/inst-001?tab=variables", nil)
	rec := httptest.NewRecorder()
	a.RequireAuth(okHandler(t, nil)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?from=%2Fprocesses%2Finst-001%3Ftab%3Dvariables", rec.Header().Get("Location"))

	apiReq := httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil)
	apiRec := httptest.NewRecorder()
	a.RequireAuth(okHandler(t, nil)).ServeHTTP(apiRec, apiReq)
	assert.Equal(t, http.StatusUnauthorized, apiRec.Code)
}

func TestDevLogin_RoundTrip(t *testing.T) {
	a := newDevAuth(t)
	store := NewMemoryStore()

	assert.False(t, a.IsLoggedIn(store))
	assert.Nil(t, a.CurrentUser(store))

	acct, err := a.DevLogin(store)
	require.NoError(t, err)
	assert.Equal(t, DevAccount(), *acct)

	assert.True(t, a.IsLoggedIn(store))
	require.NotNil(t, a.CurrentUser(store))
	assert.Equal(t, "Developer User", a.CurrentUser(store).Name)

	a.Logout(store)
	assert.False(t, a.IsLoggedIn(store))
}

func TestDevLogin_RefusedOutsideDev(t *testing.T) {
	a := newProviderAuth()
	_, err := a.DevLogin(NewMemoryStore())
	assert.ErrorIs(t, err, ErrDevLoginDisabled)

	_, err = New(context.Background(), &config.Config{Environment: config.EnvProduction}, nil)
	assert.Error(t, err)
}

func TestDevLoginHandler_ReturnsToOriginalPage(t *testing.T) {
	a := newDevAuth(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/dev-login?from=%2Fprocesses%2Finst-001", nil)
	rec := httptest.NewRecorder()
	a.DevLoginHandler(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/processes/inst-001", rec.Header().Get("Location"))

	next := httptest.NewRequest(http.MethodGet, "/processes/inst-001", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	assert.Equal(t, StateAuthenticated, a.State(next))

	nextRec := httptest.NewRecorder()
	a.RequireAuth(okHandler(t, func(r *http.Request) {
		assert.Equal(t, DevAccessToken, services.TokenFromContext(r.Context()))
	})).ServeHTTP(nextRec, next)
	assert.Equal(t, http.StatusOK, nextRec.Code)
}

func TestState(t *testing.T) {
	a := newProviderAuth()
	a.ready = make(chan struct{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, StateLoading, a.State(req))

	rec := httptest.NewRecorder()
	a.RequireAuth(okHandler(t, nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(a.ready)
	assert.Equal(t, StateAnonymous, a.State(req))
	assert.Equal(t, "anonymous", StateAnonymous.String())
	assert.Equal(t, "unknown", StateUnknown.String())
}

func tokenEndpoint(t *testing.T, idToken string, fail bool) (*httptest.Server, *int) {
	calls := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "renewed-access",
			"token_type":    "Bearer",
			"refresh_token": "renewed-refresh",
			"expires_in":    3600,
			"id_token":      idToken,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestRequireAuth_SilentRefresh(t *testing.T) {
	srv, calls := tokenEndpoint(t, fakeToken(t, time.Now().Add(time.Hour)), false)
	a := newProviderAuth()
	a.oauth2Config = &oauth2.Config{ClientID: testClientID, Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}

	req := httptest.NewRequest(http.MethodGet, "/processes", nil)
	req.AddCookie(cookie(keyIDToken, fakeToken(t, time.Now().Add(-time.Hour))))
	req.AddCookie(cookie(keyRefreshToken, "old-refresh"))
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler(t, func(r *http.Request) {
		assert.Equal(t, "renewed-access", services.TokenFromContext(r.Context()))
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *calls)
	set := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		raw, _ := base64.RawURLEncoding.DecodeString(c.Value)
		set[c.Name] = string(raw)
	}
	assert.Equal(t, "renewed-refresh", set[keyRefreshToken])
	assert.Equal(t, "renewed-access", set[keyAccessToken])
}

func TestRequireAuth_FailedRefreshPromptsLogin(t *testing.T) {
	srv, calls := tokenEndpoint(t, "", true)
	a := newProviderAuth()
	a.oauth2Config = &oauth2.Config{ClientID: testClientID, Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}

	req := httptest.NewRequest(http.MethodGet, "/dmns", nil)
	req.AddCookie(cookie(keyRefreshToken, "old-refresh"))
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler(t, nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?from=%2Fdmns", rec.Header().Get("Location"))
	assert.Equal(t, 1, *calls)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == keyRefreshToken && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestLogoutHandler(t *testing.T) {
	a := newDevAuth(t)
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	rec := httptest.NewRecorder()
	a.LogoutHandler(rec, req)

	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                  "/",
		"/processes/inst-1": "/processes/inst-1",
		"/dmns?status=all":  "/dmns?status=all",
		"https://evil.com":  "/",
		"//evil.com":        "/",
		"/\\evil.com":       "/",
		"/login?from=/":     "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeRedirect(in), in)
	}
}

func TestLoginScopes(t *testing.T) {
	assert.Equal(t, []string{"openid", "profile", "email", "offline_access"}, loginScopes(nil))
	assert.Equal(t, []string{"openid", "api://orchestt/read", "offline_access"}, loginScopes([]string{"api://orchestt/read", "openid"}))
}
