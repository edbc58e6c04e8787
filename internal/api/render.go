package api

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vicodes/process-flow-canvas-dream/internal/auth"
	"github.com/vicodes/process-flow-canvas-dream/internal/state"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

//go:embed templates
var templateFS embed.FS

var pageNames = []string{
	"login",
	"processes",
	"process",
	"dmns",
	"dmn",
	"modeler",
	"generator",
	"error",
}

// pageRenderer is an echo.Renderer with one template set per page, each a
// clone of the shared layout so their "content" blocks do not collide.
type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	funcs := template.FuncMap{
		"datetime":    formatTime,
		"svg":         func(s string) template.HTML { return template.HTML(s) },
		"statusClass": statusClass,
		"add":         func(a, b int) int { return a + b },
		"lower":       strings.ToLower,
	}
	base, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if pages[name], err = clone.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
	}
	return &pageRenderer{pages: pages}, nil
}

func (p *pageRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	tmpl, ok := p.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

const (
	noticeError   = "error"
	noticeSuccess = "success"
	noticeInfo    = "info"
)

// notice is the transient notification banner shown on top of a page.
type notice struct {
	Kind    string
	Message string
}

// pageData is passed to every page template.
type pageData struct {
	Title          string
	Nav            string
	Theme          string
	User           *models.Account
	DevMode        bool
	Environment    string
	ActiveInstance string
	Path           string
	Notice         *notice
	Status         int
	Page           any
}

func (s *Server) render(c echo.Context, status int, page string, data pageData) error {
	r := c.Request()
	data.Theme = state.Theme(r)
	data.DevMode = s.Auth.DevMode()
	data.Environment = s.Config.Environment
	data.Path = r.URL.RequestURI()
	if acct, ok := auth.AccountFromContext(r.Context()); ok {
		data.User = acct
	}
	if id := sessionID(c); id != "" {
		data.ActiveInstance = s.Sessions.ActiveInstance(id)
	}
	if data.Notice == nil {
		data.Notice = takeFlash(c)
	}
	if data.Status == 0 {
		data.Status = status
	}
	return c.Render(status, page, data)
}

const flashCookie = "orchestt_flash"

// redirectWithNotice stores a banner for the next page and redirects there.
func redirectWithNotice(c echo.Context, to, kind, message string) error {
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(kind + "|" + message)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusSeeOther, to)
}

func takeFlash(c echo.Context) *notice {
	ck, err := c.Cookie(flashCookie)
	if err != nil || ck.Value == "" {
		return nil
	}
	c.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1, HttpOnly: true})
	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil
	}
	return &notice{Kind: kind, Message: message}
}

func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006 15:04")
	case *time.Time:
		if t == nil {
			return ""
		}
		return formatTime(*t)
	default:
		return fmt.Sprint(v)
	}
}

func statusClass(status any) string {
	switch strings.ToLower(fmt.Sprint(status)) {
	case "active":
		return "badge badge-active"
	case "completed":
		return "badge badge-completed"
	case "failed":
		return "badge badge-failed"
	case "pending", "suspended":
		return "badge badge-pending"
	default:
		return "badge"
	}
}
