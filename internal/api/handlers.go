// Package api contains the HTTP handlers of the OrchesT dashboard: the HTML
// pages, the JSON API under /api/v1 and the API documentation.
package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vicodes/process-flow-canvas-dream/internal/auth"
	"github.com/vicodes/process-flow-canvas-dream/internal/config"
	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/internal/dmn"
	"github.com/vicodes/process-flow-canvas-dream/internal/generator"
	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/internal/repository"
	"github.com/vicodes/process-flow-canvas-dream/internal/services"
	"github.com/vicodes/process-flow-canvas-dream/internal/state"
)

// Deps holds the collaborators of the HTTP layer.
type Deps struct {
	Config    *config.Config
	Backend   services.Backend
	Diagrams  repository.DiagramStore
	Modelers  *diagram.ModelerRegistry
	Decisions *dmn.Catalog
	Chats     *generator.Store
	Sessions  *state.Sessions
	Auth      *auth.Auth
	Logger    *logging.Logger
	Version   string
}

// Server serves the dashboard.
type Server struct {
	Deps
	pages *pageRenderer
	now   func() time.Time

	mu sync.Mutex
	// diagram id being edited by each session's modeler
	editing map[string]string
}

// NewServer creates a Server with its page templates parsed.
func NewServer(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Sessions == nil {
		d.Sessions = state.NewSessions()
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	pages, err := newPageRenderer()
	if err != nil {
		return nil, err
	}
	return &Server{
		Deps:    d,
		pages:   pages,
		now:     time.Now,
		editing: map[string]string{},
	}, nil
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	Auth        string    `json:"auth"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:      "ok",
		Timestamp:   s.now(),
		Service:     "orchestt",
		Version:     s.Version,
		Environment: s.Config.Environment,
		Auth:        "oidc",
	}
	if s.Auth.Bypass() {
		status.Auth = "dev-bypass"
	}
	return c.JSON(http.StatusOK, status)
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(c echo.Context, status int, detail string) error {
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, problem)
}

// statusFor maps the domain sentinel errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, msg
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, dmn.ErrNotFound),
		errors.Is(err, diagram.ErrNoDiagram):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, diagram.ErrViewOnly),
		errors.Is(err, ErrNoModeler),
		errors.Is(err, diagram.ErrDuplicateElement),
		errors.Is(err, diagram.ErrClosed),
		errors.Is(err, diagram.ErrNotImported),
		errors.Is(err, diagram.ErrDestroyed):
		return http.StatusConflict, err.Error()
	case errors.Is(err, diagram.ErrUnsupportedFormat),
		errors.Is(err, diagram.ErrUnknownElement),
		errors.Is(err, diagram.ErrInvalidProperty):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, diagram.ErrImport),
		errors.Is(err, generator.ErrNoSteps),
		errors.Is(err, dmn.ErrInvalid):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, auth.ErrDevLoginDisabled):
		return http.StatusForbidden, err.Error()
	default:
		return http.StatusInternalServerError, "operation failed"
	}
}

// HTTPErrorHandler renders failures as problem details for API clients and as
// a notification banner for pages. Nothing is retried.
func (s *Server) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
	} else {
		s.Logger.Debug("request rejected", "path", c.Request().URL.Path, "status", status, "error", err)
	}

	if wantsJSON(c.Request()) {
		if rerr := writeError(c, status, detail); rerr != nil {
			s.Logger.Error("failed to write problem details", "error", rerr)
		}
		return
	}
	if rerr := s.render(c, status, "error", pageData{
		Title:  http.StatusText(status),
		Notice: &notice{Kind: noticeError, Message: detail},
		Status: status,
	}); rerr != nil {
		s.Logger.Error("failed to render error page", "error", rerr)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// GetHealth serves HandleHealth under /api/v1
// (GET /api/v1/health)
func (s *Server) GetHealth(c echo.Context) error {
	return s.HandleHealth(c)
}
