package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vicodes/process-flow-canvas-dream/internal/auth"
	"github.com/vicodes/process-flow-canvas-dream/internal/dmn"
	"github.com/vicodes/process-flow-canvas-dream/internal/state"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// SessionInfo describes the caller's session.
type SessionInfo struct {
	Account        *models.Account `json:"account"`
	State          string          `json:"state"`
	Environment    string          `json:"environment"`
	DevMode        bool            `json:"devMode"`
	Theme          string          `json:"theme"`
	ActiveInstance string          `json:"activeInstance,omitempty"`
	Filter         models.Filter   `json:"filter"`
}

// GetSession returns the signed-in account and the session's view state
// (GET /api/v1/session)
func (s *Server) GetSession(c echo.Context) error {
	r := c.Request()
	acct, _ := auth.AccountFromContext(r.Context())
	id := sessionID(c)
	return c.JSON(http.StatusOK, SessionInfo{
		Account:        acct,
		State:          s.Auth.State(r).String(),
		Environment:    s.Config.Environment,
		DevMode:        s.Auth.DevMode(),
		Theme:          state.Theme(r),
		ActiveInstance: s.Sessions.ActiveInstance(id),
		Filter:         s.Sessions.Filter(id),
	})
}

// GetFilter returns the session's process filter
// (GET /api/v1/filters)
func (s *Server) GetFilter(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Sessions.Filter(sessionID(c)))
}

// PutFilter merges a partial filter into the session's filter
// (PUT /api/v1/filters)
func (s *Server) PutFilter(c echo.Context) error {
	var u models.FilterUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return c.JSON(http.StatusOK, s.Sessions.SetFilter(sessionID(c), u))
}

// DeleteFilter resets the session's filter
// (DELETE /api/v1/filters)
func (s *Server) DeleteFilter(c echo.Context) error {
	s.Sessions.ClearFilter(sessionID(c))
	return c.NoContent(http.StatusNoContent)
}

// ListDecisions searches the DMN catalog
// (GET /api/v1/dmns)
func (s *Server) ListDecisions(c echo.Context) error {
	params, err := bindSearchParams(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Decisions.Search(deref(params.Q), deref(params.Status)))
}

// DecisionDetail is one catalog entry with its parsed decision model.
type DecisionDetail struct {
	models.DmnDecision
	Definitions *dmn.Definitions `json:"definitions,omitempty"`
}

// GetDecision returns a DMN entry with its XML and parsed definitions
// (GET /api/v1/dmns/:id)
func (s *Server) GetDecision(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	d, err := s.Decisions.Get(id)
	if err != nil {
		return err
	}
	out := DecisionDetail{DmnDecision: *d}
	if d.XML != "" {
		if out.Definitions, err = s.Decisions.Definitions(id); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, out)
}

// GeneratorMessage is the body of SendGeneratorMessage.
type GeneratorMessage struct {
	Message string `json:"message"`
}

// SendGeneratorMessage sends one message to the session's BPMN generator
// (POST /api/v1/generator/messages)
func (s *Server) SendGeneratorMessage(c echo.Context) error {
	var body GeneratorMessage
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	reply, err := s.Chats.Get(sessionID(c)).Send(body.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reply)
}

// GetGeneratorHistory returns the conversation so far
// (GET /api/v1/generator/messages)
func (s *Server) GetGeneratorHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Chats.Get(sessionID(c)).History())
}

// ResetGenerator starts a new conversation
// (DELETE /api/v1/generator)
func (s *Server) ResetGenerator(c echo.Context) error {
	s.Chats.Reset(sessionID(c))
	return c.NoContent(http.StatusNoContent)
}

// OpenGeneratedDiagram opens the last generated diagram in the session's modeler
// (POST /api/v1/generator/modeler)
func (s *Server) OpenGeneratedDiagram(c echo.Context) error {
	session := sessionID(c)
	if err := s.openGenerated(c.Request().Context(), session); err != nil {
		return err
	}
	m, id, err := s.modeler(session)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, modelerState(id, m, nil))
}
