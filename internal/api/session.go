package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vicodes/process-flow-canvas-dream/internal/auth"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// SessionCookie identifies the browser session that owns filters, the modeler
// and the generator conversation.
const SessionCookie = "orchestt_session"

const sessionKey = "session"

// withSession assigns every request a session id scoped to the signed-in
// account. Browsers keep their part of it in a cookie; bearer clients without
// the cookie share one session per account. A cookie value copied from
// another user therefore never reaches that user's state.
func (s *Server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, _ := auth.AccountFromContext(c.Request().Context())
		var id string
		if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
			id = sessionFor(acct, ck.Value)
		} else if acct != nil && c.Request().Header.Get(echo.HeaderAuthorization) != "" {
			id = sessionFor(acct, "")
		} else {
			browser := uuid.NewString()
			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    browser,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.Auth.SecureCookies(),
				SameSite: http.SameSiteLaxMode,
			})
			id = sessionFor(acct, browser)
		}
		c.Set(sessionKey, id)
		return next(c)
	}
}

// sessionFor returns the key of the browser session of acct. An empty browser
// id names the shared session of the account's bearer clients.
func sessionFor(acct *models.Account, browser string) string {
	owner := "anonymous"
	if acct != nil {
		owner = "account:" + acct.HomeAccountID
	}
	if browser == "" {
		return owner
	}
	return owner + "/" + browser
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

// Logout signs out and drops the session's filter, modeler and conversation.
func (s *Server) Logout(c echo.Context) error {
	store := auth.NewCookieStore(nil, c.Request(), s.Auth.SecureCookies())
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		if s.Auth.IsLoggedIn(store) {
			id := sessionFor(s.Auth.CurrentUser(store), ck.Value)
			s.Sessions.Forget(id)
			s.closeModeler(id)
			s.Chats.Reset(id)
		}
		c.SetCookie(&http.Cookie{Name: SessionCookie, Path: "/", MaxAge: -1, HttpOnly: true})
	}
	s.Auth.LogoutHandler(c.Response(), c.Request())
	return nil
}
