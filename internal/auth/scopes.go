package auth

const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	// ScopeOfflineAccess asks the provider for a refresh token.
	ScopeOfflineAccess = "offline_access"
)

// DefaultScopes is requested at login and used by the Swagger UI.
var DefaultScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
}

// loginScopes returns configured, or DefaultScopes, with openid and
// offline_access always present and no duplicates.
func loginScopes(configured []string) []string {
	if len(configured) == 0 {
		configured = DefaultScopes
	}
	seen := map[string]bool{}
	scopes := []string{ScopeOpenID}
	seen[ScopeOpenID] = true
	for _, s := range append(append([]string(nil), configured...), ScopeOfflineAccess) {
		if s != "" && !seen[s] {
			seen[s] = true
			scopes = append(scopes, s)
		}
	}
	return scopes
}
