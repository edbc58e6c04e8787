package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"github.com/vicodes/process-flow-canvas-dream/internal/services"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

var errAnonymous = errors.New("not signed in")

type tokenClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	TenantID          string `json:"tid"`
	ObjectID          string `json:"oid"`
}

func accountFromToken(token *oidc.IDToken) (*models.Account, error) {
	var c tokenClaims
	if err := token.Claims(&c); err != nil {
		return nil, err
	}
	acct := &models.Account{
		HomeAccountID:  c.Subject,
		LocalAccountID: c.ObjectID,
		TenantID:       c.TenantID,
		Username:       c.PreferredUsername,
		Name:           c.Name,
	}
	if acct.LocalAccountID == "" {
		acct.LocalAccountID = c.Subject
	}
	if acct.TenantID != "" {
		acct.HomeAccountID = c.Subject + "." + c.TenantID
	}
	if acct.Username == "" {
		acct.Username = c.Email
	}
	if u, err := url.Parse(token.Issuer); err == nil {
		acct.Environment = u.Host
	}
	return acct, nil
}

// State reports the session state of r without refreshing tokens.
func (a *Auth) State(r *http.Request) State {
	if a.loading() {
		return StateLoading
	}
	if _, _, err := a.authenticate(r, NewCookieStore(nil, r, a.secure), false); err != nil {
		return StateAnonymous
	}
	return StateAuthenticated
}

// authenticate resolves the caller from a Bearer header, the development
// session or the ID token cookie. With allowRefresh it makes one silent
// renewal attempt when the ID token is missing or no longer valid.
func (a *Auth) authenticate(r *http.Request, store LocalStore, allowRefresh bool) (*models.Account, string, error) {
	ctx := r.Context()
	verifier, apiVerifier, _ := a.verifiers()

	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		rawToken := strings.TrimPrefix(authHeader, "Bearer ")
		if a.devMode && rawToken == DevAccessToken {
			acct := DevAccount()
			return &acct, rawToken, nil
		}
		if apiVerifier == nil {
			return nil, "", errAnonymous
		}
		token, err := apiVerifier.Verify(ctx, rawToken)
		if err != nil {
			return nil, "", err
		}
		acct, err := accountFromToken(token)
		if err != nil {
			return nil, "", err
		}
		return acct, rawToken, nil
	}

	if a.devMode {
		if sess, ok := loadDevSession(store); ok {
			return &sess.Account, sess.AccessToken, nil
		}
	}
	if verifier == nil {
		return nil, "", errAnonymous
	}

	if raw, ok := store.Get(keyIDToken); ok {
		if token, err := verifier.Verify(ctx, raw); err == nil {
			acct, err := accountFromToken(token)
			if err != nil {
				return nil, "", err
			}
			access, _ := store.Get(keyAccessToken)
			if access == "" {
				access = raw
			}
			return acct, access, nil
		}
	}

	if allowRefresh {
		if _, ok := store.Get(keyRefreshToken); ok {
			return a.refresh(ctx, store)
		}
	}
	return nil, "", errAnonymous
}

// refresh exchanges the stored refresh token once. The refresh token is
// dropped on failure so the next request goes to interactive login.
func (a *Auth) refresh(ctx context.Context, store LocalStore) (*models.Account, string, error) {
	verifier, _, oauth2Config := a.verifiers()
	rt, _ := store.Get(keyRefreshToken)
	store.Delete(keyRefreshToken)
	if oauth2Config == nil {
		return nil, "", errAnonymous
	}

	tok, err := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: rt}).Token()
	if err != nil {
		a.logger.Warn("silent token renewal failed", "error", err)
		return nil, "", errAnonymous
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return nil, "", errAnonymous
	}
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		a.logger.Warn("renewed id token rejected", "error", err)
		return nil, "", errAnonymous
	}
	acct, err := a.storeTokens(store, tok, rawIDToken, idToken)
	if err != nil {
		return nil, "", err
	}
	a.logger.Debug("session renewed", "username", acct.Username)
	return acct, tok.AccessToken, nil
}

func (a *Auth) storeTokens(store LocalStore, tok *oauth2.Token, rawIDToken string, idToken *oidc.IDToken) (*models.Account, error) {
	acct, err := accountFromToken(idToken)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(acct)
	if err != nil {
		return nil, err
	}
	store.Set(keyIDToken, rawIDToken)
	store.Set(keyAccount, string(raw))
	if tok.AccessToken != "" {
		store.Set(keyAccessToken, tok.AccessToken)
	}
	if tok.RefreshToken != "" {
		store.Set(keyRefreshToken, tok.RefreshToken)
	}
	return acct, nil
}

// isAPIRequest reports whether r expects JSON rather than a page.
func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/mcp")
}

// LoginURL returns the login page URL that returns to the original request.
func LoginURL(r *http.Request) string {
	return "/login?from=" + url.QueryEscape(r.URL.RequestURI())
}

// RequireAuth is middleware that lets authenticated requests through with the
// account and bearer token in their context. Anonymous page requests are
// redirected to the login page; API requests get 401.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.loading() {
			w.Header().Set("Retry-After", "2")
			if isAPIRequest(r) {
				writeProblem(w, http.StatusServiceUnavailable, "Authentication is initialising")
				return
			}
			http.Error(w, "Loading...", http.StatusServiceUnavailable)
			return
		}

		store := NewCookieStore(w, r, a.secure)
		acct, token, err := a.authenticate(r, store, true)
		if err != nil {
			if isAPIRequest(r) || r.Header.Get("Authorization") != "" {
				writeProblem(w, http.StatusUnauthorized, "invalid or missing credentials")
				return
			}
			http.Redirect(w, r, LoginURL(r), http.StatusSeeOther)
			return
		}

		ctx := WithAccount(r.Context(), acct)
		ctx = services.WithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
