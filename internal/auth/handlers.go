package auth

import (
	"net/http"
	"strings"
)

// SafeRedirect returns from when it is a local path, otherwise "/".
func SafeRedirect(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") ||
		strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") ||
		strings.HasPrefix(from, "/login") {
		return "/"
	}
	return from
}

// LoginHandler initiates the OAuth2 authorization code flow by redirecting the
// user to the provider's authorization endpoint. A random state value is
// stored in a cookie to mitigate CSRF attacks; the from parameter is kept so
// the callback can return to the original page.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	from := SafeRedirect(r.URL.Query().Get("from"))
	store := NewCookieStore(w, r, a.secure)

	if a.authBypass {
		if _, err := a.DevLogin(store); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Redirect(w, r, from, http.StatusSeeOther)
		return
	}
	if a.loading() {
		w.Header().Set("Retry-After", "2")
		http.Error(w, "identity provider is not available yet", http.StatusServiceUnavailable)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	store.Set(keyOAuthState, state)
	store.Set(keyLoginFrom, from)

	_, _, oauth2Config := a.verifiers()
	http.Redirect(w, r, oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// DevLoginHandler signs in with the synthetic development account.
func (a *Auth) DevLoginHandler(w http.ResponseWriter, r *http.Request) {
	from := SafeRedirect(r.FormValue("from"))
	if _, err := a.DevLogin(NewCookieStore(w, r, a.secure)); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	http.Redirect(w, r, from, http.StatusSeeOther)
}

// CallbackHandler handles the redirect back from the provider. It verifies the
// state parameter, exchanges the code for tokens, validates the ID token and
// stores the session before returning to the page that required login.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	store := NewCookieStore(w, r, a.secure)
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	verifier, _, oauth2Config := a.verifiers()
	if oauth2Config == nil {
		http.Error(w, "identity provider is not available yet", http.StatusServiceUnavailable)
		return
	}

	state, ok := store.Get(keyOAuthState)
	if !ok || r.URL.Query().Get("state") != state {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	store.Delete(keyOAuthState)

	if errCode := r.URL.Query().Get("error"); errCode != "" {
		a.logger.Warn("login rejected by provider", "error", errCode, "description", r.URL.Query().Get("error_description"))
		http.Redirect(w, r, "/login?error="+errCode, http.StatusSeeOther)
		return
	}

	token, err := oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	idToken, err := verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	acct, err := a.storeTokens(store, token, rawIDToken, idToken)
	if err != nil {
		http.Error(w, "failed to parse token claims", http.StatusUnauthorized)
		return
	}
	a.logger.Info("user signed in", "username", acct.Username)

	from, _ := store.Get(keyLoginFrom)
	store.Delete(keyLoginFrom)
	http.Redirect(w, r, SafeRedirect(from), http.StatusSeeOther)
}

// LogoutHandler clears the session and returns to the login page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	a.Logout(NewCookieStore(w, r, a.secure))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
