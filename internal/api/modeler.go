package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/internal/repository"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// persistTimeout bounds one diagram store write.
const persistTimeout = 10 * time.Second

// ErrNoModeler is returned by modeler calls before the session opened one.
var ErrNoModeler = errors.New("no modeler is open for this session")

// ElementView is the JSON view of a diagram element.
type ElementView struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Name      string  `json:"name,omitempty"`
	SourceRef string  `json:"sourceRef,omitempty"`
	TargetRef string  `json:"targetRef,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	Decision  string  `json:"decisionId,omitempty"`
}

func elementViews(elements []*diagram.Element) []ElementView {
	out := make([]ElementView, 0, len(elements))
	for _, el := range elements {
		v := ElementView{ID: el.ID, Type: el.Type, Name: el.Name, SourceRef: el.SourceRef, TargetRef: el.TargetRef}
		if el.Bounds != nil {
			v.X, v.Y, v.Width, v.Height = el.Bounds.X, el.Bounds.Y, el.Bounds.Width, el.Bounds.Height
		}
		if diagram.IsDecisionTask(el) {
			v.Decision = diagram.ResolveDecisionID(el)
		}
		out = append(out, v)
	}
	return out
}

// ModelerState is the JSON view of a session's modeler.
type ModelerState struct {
	DiagramID      string        `json:"diagramId"`
	ViewOnly       bool          `json:"viewOnly"`
	PaletteVisible bool          `json:"paletteVisible"`
	CanUndo        bool          `json:"canUndo"`
	CanRedo        bool          `json:"canRedo"`
	Elements       []ElementView `json:"elements"`
	Warnings       []string      `json:"warnings,omitempty"`
}

func modelerState(id string, m *diagram.Modeler, warnings []string) ModelerState {
	return ModelerState{
		DiagramID:      id,
		ViewOnly:       m.ViewOnly(),
		PaletteVisible: m.PaletteVisible(),
		CanUndo:        m.CanUndo(),
		CanRedo:        m.CanRedo(),
		Elements:       elementViews(m.Elements()),
		Warnings:       warnings,
	}
}

// paletteTypes are the element types the modeler palette can create.
var paletteTypes = []struct {
	Type  string
	Label string
}{
	{diagram.TypeStartEvent, "Start event"},
	{diagram.TypeEndEvent, "End event"},
	{diagram.TypeTask, "Task"},
	{diagram.TypeUserTask, "User task"},
	{diagram.TypeServiceTask, "Service task"},
	{diagram.TypeBusinessRuleTask, "Business rule task"},
	{diagram.TypeExclusiveGateway, "Exclusive gateway"},
	{diagram.TypeParallelGateway, "Parallel gateway"},
}

func paletteType(t string) (string, bool) {
	if t == "" {
		return diagram.TypeTask, true
	}
	if !strings.HasPrefix(t, "bpmn:") {
		t = "bpmn:" + t
	}
	for _, p := range paletteTypes {
		if strings.EqualFold(p.Type, t) {
			return p.Type, true
		}
	}
	return "", false
}

// ModelerCommand is one edit sent to the modeler. Type is add, remove, rename,
// move, connect or properties; the other fields apply to the matching command.
// Forms set one property through Property and Value.
type ModelerCommand struct {
	Type        string            `json:"type" form:"type"`
	ID          string            `json:"id,omitempty" form:"id"`
	ElementType string            `json:"elementType,omitempty" form:"elementType"`
	Name        string            `json:"name,omitempty" form:"name"`
	DecisionRef string            `json:"decisionRef,omitempty" form:"decisionRef"`
	X           float64           `json:"x,omitempty" form:"x"`
	Y           float64           `json:"y,omitempty" form:"y"`
	DX          float64           `json:"dx,omitempty" form:"dx"`
	DY          float64           `json:"dy,omitempty" form:"dy"`
	Source      string            `json:"source,omitempty" form:"source"`
	Target      string            `json:"target,omitempty" form:"target"`
	Label       string            `json:"label,omitempty" form:"label"`
	Properties  map[string]string `json:"properties,omitempty" form:"-"`
	Property    string            `json:"property,omitempty" form:"property"`
	Value       string            `json:"value,omitempty" form:"value"`
}

func (mc ModelerCommand) command() (diagram.Command, error) {
	switch mc.Type {
	case "add":
		typ, ok := paletteType(mc.ElementType)
		if !ok {
			return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown element type %q", mc.ElementType))
		}
		id := mc.ID
		if id == "" {
			id = diagram.NewElementID(typ)
		}
		w, h := diagram.DefaultSize(typ)
		el := &diagram.Element{
			ID:          id,
			Type:        typ,
			Name:        mc.Name,
			DecisionRef: mc.DecisionRef,
			Bounds:      &diagram.Bounds{X: mc.X, Y: mc.Y, Width: w, Height: h},
		}
		return &diagram.AddElement{Element: el}, nil
	case "remove":
		if mc.ID == "" {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "id is required")
		}
		return &diagram.RemoveElement{ID: mc.ID}, nil
	case "rename":
		if mc.ID == "" {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "id is required")
		}
		return &diagram.RenameElement{ID: mc.ID, NewName: mc.Name}, nil
	case "move":
		if mc.ID == "" {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "id is required")
		}
		return &diagram.MoveShape{ID: mc.ID, DX: mc.DX, DY: mc.DY}, nil
	case "connect":
		if mc.Source == "" || mc.Target == "" {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "source and target are required")
		}
		id := mc.ID
		if id == "" {
			id = diagram.NewElementID(diagram.TypeSequenceFlow)
		}
		return &diagram.Connect{ID: id, SourceID: mc.Source, TargetID: mc.Target, Label: mc.Label}, nil
	case "properties":
		if mc.ID == "" {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "id is required")
		}
		props := make(map[string]string, len(mc.Properties)+1)
		for k, v := range mc.Properties {
			props[k] = v
		}
		if mc.Property != "" {
			props[mc.Property] = mc.Value
		}
		if len(props) == 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "properties are required")
		}
		return &diagram.SetProperties{ID: mc.ID, Properties: props}, nil
	default:
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown command %q", mc.Type))
	}
}

// openModeler replaces the session's modeler. It starts from xml when given,
// otherwise from the stored diagram id, otherwise from the empty diagram.
func (s *Server) openModeler(ctx context.Context, session, id, xml string) (*diagram.Modeler, []string, error) {
	if id == "" {
		id = "diagram-" + uuid.NewString()[:8]
	}
	m := s.Modelers.Open(session, func(ctx context.Context, xml string) error {
		return s.persist(ctx, id, xml)
	})

	var warnings []string
	var err error
	switch {
	case xml != "":
		warnings, err = m.Import(xml)
	default:
		saved, gerr := s.Diagrams.Get(ctx, id)
		switch {
		case gerr == nil:
			warnings, err = m.Import(saved.XML)
		case errors.Is(gerr, repository.ErrNotFound):
			err = m.New()
		default:
			err = gerr
		}
	}
	if err != nil {
		s.Modelers.Close(session)
		return nil, nil, err
	}

	s.mu.Lock()
	s.editing[session] = id
	s.mu.Unlock()
	return m, warnings, nil
}

// modeler returns the session's open modeler and the id it saves under.
func (s *Server) modeler(session string) (*diagram.Modeler, string, error) {
	m, ok := s.Modelers.Get(session)
	if !ok {
		return nil, "", ErrNoModeler
	}
	s.mu.Lock()
	id := s.editing[session]
	s.mu.Unlock()
	return m, id, nil
}

func (s *Server) closeModeler(session string) {
	s.Modelers.Close(session)
	s.mu.Lock()
	delete(s.editing, session)
	s.mu.Unlock()
}

// persist is the modeler save callback. It runs on the request context.
func (s *Server) persist(ctx context.Context, id, xml string) error {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if _, err := s.Diagrams.Save(ctx, id, xml); err != nil {
		return fmt.Errorf("save diagram %s: %w", id, err)
	}
	s.Logger.Info("diagram saved", "diagram", id, "bytes", len(xml))
	return nil
}

func (s *Server) saveModeler(ctx context.Context, session string) (*models.SavedDiagram, error) {
	m, id, err := s.modeler(session)
	if err != nil {
		return nil, err
	}
	if _, err := m.Save(ctx); err != nil {
		return nil, err
	}
	return s.Diagrams.Get(ctx, id)
}

// importUpload loads a diagram from a multipart file field, a JSON body with
// an xml field, or the raw request body.
func importUpload(c echo.Context, m *diagram.Modeler) ([]string, error) {
	req := c.Request()
	ct := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ct, echo.MIMEMultipartForm):
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return m.ImportFrom(f)
	case strings.HasPrefix(ct, echo.MIMEApplicationJSON):
		var body struct {
			XML string `json:"xml"`
		}
		if err := c.Bind(&body); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
		}
		return m.Import(body.XML)
	default:
		return m.ImportFrom(req.Body)
	}
}

func writeExport(c echo.Context, exp *diagram.Export) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exp.FileName))
	return c.Blob(http.StatusOK, exp.ContentType, exp.Data)
}

// ListDiagrams returns the saved diagrams
// (GET /api/v1/diagrams)
func (s *Server) ListDiagrams(c echo.Context) error {
	list, err := s.Diagrams.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// GetDiagram returns one saved diagram
// (GET /api/v1/diagrams/:id)
func (s *Server) GetDiagram(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	d, err := s.Diagrams.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// StoredDiagram is a saved diagram plus the warnings of its import.
type StoredDiagram struct {
	*models.SavedDiagram
	Warnings []string `json:"warnings,omitempty"`
}

// PutDiagram stores a diagram after checking that it imports
// (PUT /api/v1/diagrams/:id)
func (s *Server) PutDiagram(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	m := diagram.NewModeler(diagram.NewEngine(), nil, s.Logger)
	defer m.Destroy()
	warnings, err := importUpload(c, m)
	if err != nil {
		return err
	}
	xml, err := m.Save(ctx)
	if err != nil {
		return err
	}
	d, err := s.Diagrams.Save(ctx, id, xml)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StoredDiagram{SavedDiagram: d, Warnings: warnings})
}

// DeleteDiagram removes a saved diagram
// (DELETE /api/v1/diagrams/:id)
func (s *Server) DeleteDiagram(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.Diagrams.Remove(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportDiagram renders a saved diagram as xml, svg or png
// (GET /api/v1/diagrams/:id/export)
func (s *Server) ExportDiagram(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	format, err := bindExportParams(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := s.Diagrams.Get(ctx, id)
	if err != nil {
		return err
	}
	m := diagram.NewModeler(diagram.NewEngine(), nil, s.Logger)
	defer m.Destroy()
	if _, err := m.Import(d.XML); err != nil {
		return err
	}
	exp, err := m.Export(ctx, format)
	if err != nil {
		return err
	}
	if dot := strings.LastIndex(exp.FileName, "."); dot >= 0 {
		exp.FileName = id + exp.FileName[dot:]
	}
	return writeExport(c, exp)
}

// OpenModelerRequest is the body of OpenModeler.
type OpenModelerRequest struct {
	DiagramID string `json:"diagramId"`
	XML       string `json:"xml"`
}

// OpenModeler starts a modeler for the session, replacing any open one
// (POST /api/v1/modeler)
func (s *Server) OpenModeler(c echo.Context) error {
	var body OpenModelerRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
		}
	}
	session := sessionID(c)
	m, warnings, err := s.openModeler(c.Request().Context(), session, body.DiagramID, body.XML)
	if err != nil {
		return err
	}
	_, id, _ := s.modeler(session)
	return c.JSON(http.StatusCreated, modelerState(id, m, warnings))
}

// GetModeler returns the state of the session's modeler
// (GET /api/v1/modeler)
func (s *Server) GetModeler(c echo.Context) error {
	m, id, err := s.modeler(sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, modelerState(id, m, nil))
}

// ImportModeler replaces the modeler diagram with an uploaded file
// (POST /api/v1/modeler/import)
func (s *Server) ImportModeler(c echo.Context) error {
	m, id, err := s.modeler(sessionID(c))
	if err != nil {
		return err
	}
	warnings, err := importUpload(c, m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, modelerState(id, m, warnings))
}

// ExecuteModelerCommand applies one edit
// (POST /api/v1/modeler/commands)
func (s *Server) ExecuteModelerCommand(c echo.Context) error {
	m, id, err := s.modeler(sessionID(c))
	if err != nil {
		return err
	}
	var body ModelerCommand
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	cmd, err := body.command()
	if err != nil {
		return err
	}
	if err := m.Execute(cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, modelerState(id, m, nil))
}

// UndoModeler reverts the last edit
// (POST /api/v1/modeler/undo)
func (s *Server) UndoModeler(c echo.Context) error {
	return s.stepModeler(c, (*diagram.Modeler).Undo)
}

// RedoModeler re-applies the last undone edit
// (POST /api/v1/modeler/redo)
func (s *Server) RedoModeler(c echo.Context) error {
	return s.stepModeler(c, (*diagram.Modeler).Redo)
}

func (s *Server) stepModeler(c echo.Context, step func(*diagram.Modeler) (bool, error)) error {
	m, id, err := s.modeler(sessionID(c))
	if err != nil {
		return err
	}
	if _, err := step(m); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, modelerState(id, m, nil))
}

// ViewOnlyRequest is the body of SetModelerViewOnly.
type ViewOnlyRequest struct {
	ViewOnly bool `json:"viewOnly"`
}

// SetModelerViewOnly switches view-only mode
// (PUT /api/v1/modeler/view-only)
func (s *Server) SetModelerViewOnly(c echo.Context) error {
	m, id, err := s.modeler(sessionID(c))
	if err != nil {
		return err
	}
	var body ViewOnlyRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	m.SetViewOnly(body.ViewOnly)
	return c.JSON(http.StatusOK, modelerState(id, m, nil))
}

// SaveModeler stores the modeler diagram
// (POST /api/v1/modeler/save)
func (s *Server) SaveModeler(c echo.Context) error {
	d, err := s.saveModeler(c.Request().Context(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// ExportModeler downloads the modeler diagram
// (GET /api/v1/modeler/export)
func (s *Server) ExportModeler(c echo.Context) error {
	format, err := bindExportParams(c)
	if err != nil {
		return err
	}
	m, _, err := s.modeler(sessionID(c))
	if err != nil {
		return err
	}
	exp, err := m.Export(c.Request().Context(), format)
	if err != nil {
		return err
	}
	return writeExport(c, exp)
}

// CloseModeler releases the session's modeler
// (DELETE /api/v1/modeler)
func (s *Server) CloseModeler(c echo.Context) error {
	s.closeModeler(sessionID(c))
	return c.NoContent(http.StatusNoContent)
}
