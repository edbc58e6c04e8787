package state

import (
	"net/http"
	"time"
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ThemeCookie holds the theme preference.
const ThemeCookie = "orchestt_theme"

// Theme returns the preference stored in the request, defaulting to light.
func Theme(r *http.Request) string {
	c, err := r.Cookie(ThemeCookie)
	if err != nil || c.Value != ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// SetTheme persists theme for a year. Unknown values store light.
func SetTheme(w http.ResponseWriter, theme string, secure bool) string {
	if theme != ThemeDark {
		theme = ThemeLight
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ThemeCookie,
		Value:    theme,
		Path:     "/",
		Expires:  time.Now().AddDate(1, 0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return theme
}

// ToggleTheme flips the stored preference and returns the new theme.
func ToggleTheme(w http.ResponseWriter, r *http.Request, secure bool) string {
	if Theme(r) == ThemeDark {
		return SetTheme(w, ThemeLight, secure)
	}
	return SetTheme(w, ThemeDark, secure)
}
