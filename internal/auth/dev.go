package auth

import (
	"encoding/json"
	"errors"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// Tokens of the synthetic development session. They are never sent to an
// identity provider.
const (
	DevIDToken     = "mock-id-token"
	DevAccessToken = "mock-access-token"
)

// ErrDevLoginDisabled is returned by DevLogin outside the development environment.
var ErrDevLoginDisabled = errors.New("development login is only available in the DEV environment")

// DevAccount is the synthetic account used by the development login.
func DevAccount() models.Account {
	return models.Account{
		HomeAccountID:  "dev-account-id",
		LocalAccountID: "dev-local-id",
		Environment:    "development",
		TenantID:       "dev-tenant",
		Username:       "dev@example.com",
		Name:           "Developer User",
	}
}

type devSession struct {
	Account     models.Account `json:"account"`
	IDToken     string         `json:"idToken"`
	AccessToken string         `json:"accessToken"`
}

// DevLogin stores the synthetic development session. It does not expire.
func (a *Auth) DevLogin(store LocalStore) (*models.Account, error) {
	if !a.devMode {
		return nil, ErrDevLoginDisabled
	}
	sess := devSession{Account: DevAccount(), IDToken: DevIDToken, AccessToken: DevAccessToken}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	store.Set(keyDevUser, string(raw))
	a.logger.Info("development login", "username", sess.Account.Username)
	return &sess.Account, nil
}

// CurrentUser returns the account stored by DevLogin or by the login callback.
func (a *Auth) CurrentUser(store LocalStore) *models.Account {
	if a.devMode {
		if sess, ok := loadDevSession(store); ok {
			return &sess.Account
		}
	}
	raw, ok := store.Get(keyAccount)
	if !ok {
		return nil
	}
	var acct models.Account
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return nil
	}
	return &acct
}

// IsLoggedIn reports whether the store holds a session.
func (a *Auth) IsLoggedIn(store LocalStore) bool {
	return a.CurrentUser(store) != nil
}

// Logout removes every stored session value.
func (a *Auth) Logout(store LocalStore) {
	for _, key := range []string{keyDevUser, keyAccount, keyIDToken, keyAccessToken, keyRefreshToken} {
		store.Delete(key)
	}
}

func loadDevSession(store LocalStore) (*devSession, bool) {
	raw, ok := store.Get(keyDevUser)
	if !ok {
		return nil, false
	}
	var sess devSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.Account.Username == "" {
		return nil, false
	}
	return &sess, true
}
