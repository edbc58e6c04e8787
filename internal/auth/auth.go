// Package auth signs users in with OpenID Connect and guards the dashboard routes.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"github.com/vicodes/process-flow-canvas-dream/internal/config"
	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// Keys of the values kept in the LocalStore.
const (
	keyIDToken      = "id_token"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyAccount      = "orchestt_account"
	keyDevUser      = "orchestt_dev_user"
	keyOAuthState   = "oauthstate"
	keyLoginFrom    = "login_from"
)

// discoveryRetry is the wait between failed provider discovery attempts.
var discoveryRetry = 5 * time.Second

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// State is the session state of a request.
type State int

const (
	StateUnknown State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Auth contains configuration and helpers for performing OpenID Connect
// authentication.
type Auth struct {
	mu           sync.RWMutex
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	ready        chan struct{}

	logger     Logger
	devMode    bool
	authBypass bool
	secure     bool
}

// New creates a new Auth object using values from the application
// configuration. Provider discovery runs in the background; until it
// completes every session is in StateLoading.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	isDev := cfg.IsDevelopment()
	shouldBypass := isDev && cfg.DevModeBypass

	a := &Auth{
		ready:      make(chan struct{}),
		logger:     logger,
		devMode:    isDev,
		authBypass: shouldBypass,
		secure:     cfg.Server.SecureCookies,
	}
	if shouldBypass {
		close(a.ready)
		return a, nil
	}

	if cfg.Auth.Issuer == "" || cfg.Auth.ClientID == "" ||
		cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
		return nil, errors.New("auth configuration is incomplete")
	}
	if _, err := url.ParseRequestURI(cfg.Auth.Issuer); err != nil {
		return nil, errors.New("auth issuer must be an absolute URL")
	}

	go a.discover(ctx, cfg)
	return a, nil
}

func (a *Auth) discover(ctx context.Context, cfg *config.Config) {
	for {
		provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
		if err == nil {
			a.mu.Lock()
			a.oauth2Config = &oauth2.Config{
				ClientID:     cfg.Auth.ClientID,
				ClientSecret: cfg.Auth.ClientSecret,
				Endpoint:     provider.Endpoint(),
				RedirectURL:  cfg.Auth.RedirectURL,
				Scopes:       loginScopes(cfg.Auth.Scopes),
			}
			a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})
			// Access tokens usually carry the API as audience, not the client id.
			a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
			a.mu.Unlock()
			close(a.ready)
			a.logger.Info("identity provider discovered", "issuer", cfg.Auth.Issuer)
			return
		}

		a.logger.Error("identity provider discovery failed", "issuer", cfg.Auth.Issuer, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(discoveryRetry):
		}
	}
}

// loading reports whether provider discovery is still pending.
func (a *Auth) loading() bool {
	if a.ready == nil {
		return false
	}
	select {
	case <-a.ready:
		return false
	default:
		return true
	}
}

// DevMode reports whether the development login is available.
func (a *Auth) DevMode() bool { return a.devMode }

// Bypass reports whether the identity provider is skipped entirely.
func (a *Auth) Bypass() bool { return a.authBypass }

// SecureCookies reports whether cookies are marked Secure.
func (a *Auth) SecureCookies() bool { return a.secure }

func (a *Auth) verifiers() (*oidc.IDTokenVerifier, *oidc.IDTokenVerifier, *oauth2.Config) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.verifier, a.apiVerifier, a.oauth2Config
}

type accountKey struct{}

// WithAccount attaches the signed-in account to ctx.
func WithAccount(ctx context.Context, acct *models.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acct)
}

// AccountFromContext returns the account attached by RequireAuth.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	acct, ok := ctx.Value(accountKey{}).(*models.Account)
	return acct, ok && acct != nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
