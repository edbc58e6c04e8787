package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vicodes/process-flow-canvas-dream/internal/auth"
	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/internal/dmn"
	"github.com/vicodes/process-flow-canvas-dream/internal/generator"
	"github.com/vicodes/process-flow-canvas-dream/internal/services"
	"github.com/vicodes/process-flow-canvas-dream/internal/state"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// maxZoomSteps bounds the z query parameter of the detail page.
const maxZoomSteps = 10

type loginPage struct {
	From    string
	Error   string
	Loading bool
}

// LoginPage shows the sign-in options. Signed-in users go straight back to
// where they came from.
func (s *Server) LoginPage(c echo.Context) error {
	r := c.Request()
	from := auth.SafeRedirect(c.QueryParam("from"))
	switch s.Auth.State(r) {
	case auth.StateAuthenticated:
		return c.Redirect(http.StatusSeeOther, from)
	case auth.StateLoading:
		c.Response().Header().Set("Refresh", "2")
		return s.render(c, http.StatusOK, "login", pageData{Title: "Loading", Page: loginPage{From: from, Loading: true}})
	}
	return s.render(c, http.StatusOK, "login", pageData{
		Title: "Sign in",
		Page:  loginPage{From: from, Error: c.QueryParam("error")},
	})
}

type processesPage struct {
	Filter    models.Filter
	Names     []string
	Versions  []string
	Instances []models.ProcessInstance
	Counts    models.InstanceCounts
	CSVURL    string
}

// ProcessesPage lists process instances. Filter fields submitted in the query
// are merged into the session filter first; changing the process clears the
// version.
func (s *Server) ProcessesPage(c echo.Context) error {
	session := sessionID(c)
	q := c.QueryParams()
	if q.Get("clear") != "" {
		s.Sessions.ClearFilter(session)
	} else if u, ok := filterUpdate(q, s.Sessions.Filter(session)); ok {
		s.Sessions.SetFilter(session, u)
	}
	f := s.Sessions.Filter(session)

	page := processesPage{Filter: f, CSVURL: csvURL(f)}
	data := pageData{Title: "Processes", Nav: "processes", Page: &page}

	ctx := c.Request().Context()
	defs, err := s.Backend.ListProcessDefinitions(ctx)
	if err == nil {
		page.Names = services.ProcessNames(defs)
		page.Versions = services.ProcessVersions(defs, f.Process)
		var all []models.ProcessInstance
		if all, err = s.Backend.ListAllProcessInstances(ctx); err == nil {
			page.Instances = services.FilterInstances(all, f)
			page.Counts = services.InstanceCounts(page.Instances)
		}
	}
	if err != nil {
		s.Logger.Error("failed to load process instances", "error", err)
		data.Notice = &notice{Kind: noticeError, Message: "Failed to load process instances"}
	}
	return s.render(c, http.StatusOK, "processes", data)
}

func filterUpdate(q url.Values, current models.Filter) (models.FilterUpdate, bool) {
	var u models.FilterUpdate
	changed := false
	if q.Has("process") {
		p := q.Get("process")
		u.Process = &p
		changed = true
	}
	// a new process keeps the submitted version only when the user picked one
	if v := q.Get("version"); q.Has("version") &&
		(u.Process == nil || *u.Process == current.Process || v != current.Version) {
		u.Version = &v
		changed = true
	}
	if q.Has("q") {
		t := q.Get("q")
		u.SearchText = &t
		changed = true
	}
	return u, changed
}

func csvURL(f models.Filter) string {
	q := url.Values{}
	if f.Process != "" {
		q.Set("process", f.Process)
	}
	if f.Version != "" {
		q.Set("version", f.Version)
	}
	if f.SearchText != "" {
		q.Set("q", f.SearchText)
	}
	u := "/api/v1/instances/export.csv"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

type processPage struct {
	NotFound     bool
	ID           string
	Instance     *models.ProcessInstance
	SVG          string
	DiagramError string
	Warnings     []string
	Zoom         int
	ZoomPercent  int
	Hand         bool
	Tasks        []models.TaskEntry
	Variables    []models.Variable
	VarQuery     string
}

// ProcessPage shows one instance: its diagram with the active task highlighted,
// the task timeline and the variables. Zoom is a number of zoom steps in the
// z query parameter; hand=1 turns on the hand tool.
func (s *Server) ProcessPage(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	page := processPage{ID: id, Hand: c.QueryParam("hand") == "1", VarQuery: c.QueryParam("vq")}
	data := pageData{Title: "Instance Details", Nav: "instance", Page: &page}

	ctx := c.Request().Context()
	inst, err := s.Backend.GetProcessInstance(ctx, id)
	if errors.Is(err, services.ErrNotFound) {
		page.NotFound = true
		return s.render(c, http.StatusNotFound, "process", data)
	}
	if err != nil {
		return err
	}
	s.Sessions.SetActiveInstance(sessionID(c), inst.ID)
	page.Instance = inst
	page.Tasks = services.TaskHistory(inst)
	page.Variables = services.SearchVariables(services.Variables(inst), page.VarQuery)

	if z, err := strconv.Atoi(c.QueryParam("z")); err == nil {
		page.Zoom = max(-maxZoomSteps, min(maxZoomSteps, z))
	}

	link := func(el *diagram.Element) string {
		if page.Hand || !diagram.IsDecisionTask(el) {
			return ""
		}
		return "/processes/" + url.PathEscape(id) + "/elements/" + url.PathEscape(el.ID)
	}
	svg, warnings, zoom, err := s.renderInstance(ctx, inst, page.Zoom, page.Hand, link)
	if err != nil {
		s.Logger.Error("failed to render instance diagram", "instance", id, "error", err)
		page.DiagramError = diagram.LoadFailedMessage
	}
	page.SVG, page.Warnings = svg, warnings
	page.ZoomPercent = int(zoom*100 + 0.5)
	return s.render(c, http.StatusOK, "process", data)
}

func (s *Server) renderInstance(ctx context.Context, inst *models.ProcessInstance, steps int, hand bool, link func(*diagram.Element) string) (string, []string, float64, error) {
	v, err := s.openViewer(ctx, inst, []diagram.EngineOption{diagram.WithElementLink(link)})
	if err != nil {
		return "", nil, 0, err
	}
	defer v.Close()
	v.SetHandTool(hand)

	zoom := v.ZoomIn
	if steps < 0 {
		zoom, steps = v.ZoomOut, -steps
	}
	for range steps {
		if err := zoom(); err != nil {
			return "", nil, 0, err
		}
	}
	svg, err := v.SVG()
	if err != nil {
		return "", nil, 0, err
	}
	return svg, v.Warnings(), v.Zoom(), nil
}

// ElementClick dispatches a click on a diagram element. Decision tasks open
// their DMN page; anything else returns to the instance.
func (s *Server) ElementClick(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	elementID, err := pathParam(c, "elementId")
	if err != nil {
		return err
	}
	back := "/processes/" + url.PathEscape(id)

	ctx := c.Request().Context()
	inst, err := s.Backend.GetProcessInstance(ctx, id)
	if err != nil {
		return err
	}
	v, err := s.openViewer(ctx, inst, nil)
	if err != nil {
		return redirectWithNotice(c, back, noticeError, diagram.LoadFailedMessage)
	}
	defer v.Close()
	v.SetHandTool(c.QueryParam("hand") == "1")

	if decision, ok := v.Click(elementID); ok {
		return c.Redirect(http.StatusSeeOther, "/dmns/"+url.PathEscape(decision))
	}
	return c.Redirect(http.StatusSeeOther, back)
}

type dmnsPage struct {
	Query     string
	Status    string
	Statuses  []string
	Decisions []models.DmnDecision
}

// DecisionsPage lists the DMN catalog.
func (s *Server) DecisionsPage(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = dmn.StatusAll
	}
	page := dmnsPage{
		Query:     c.QueryParam("q"),
		Status:    status,
		Statuses:  decisionStatuses(s.Decisions.List()),
		Decisions: s.Decisions.Search(c.QueryParam("q"), status),
	}
	return s.render(c, http.StatusOK, "dmns", pageData{Title: "DMN", Nav: "dmn", Page: page})
}

func decisionStatuses(list []models.DmnDecision) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range list {
		if d.Status != "" && !seen[d.Status] {
			seen[d.Status] = true
			out = append(out, d.Status)
		}
	}
	sort.Strings(out)
	return append([]string{dmn.StatusAll}, out...)
}

type dmnPage struct {
	NotFound    bool
	ID          string
	Decision    *models.DmnDecision
	Definitions *dmn.Definitions
}

// DecisionPage shows one DMN model with its decision tables. Unknown ids
// render an inline not-found message.
func (s *Server) DecisionPage(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	page := dmnPage{ID: id}
	data := pageData{Title: "DMN", Nav: "dmn", Page: &page}

	d, err := s.Decisions.Get(id)
	if errors.Is(err, dmn.ErrNotFound) {
		page.NotFound = true
		return s.render(c, http.StatusNotFound, "dmn", data)
	}
	if err != nil {
		return err
	}
	page.Decision = d
	data.Title = d.Name
	if d.XML != "" {
		if page.Definitions, err = s.Decisions.Definitions(id); err != nil {
			s.Logger.Warn("failed to parse DMN", "decision", id, "error", err)
			data.Notice = &notice{Kind: noticeError, Message: "Failed to load DMN model"}
		}
	}
	return s.render(c, http.StatusOK, "dmn", data)
}

type modelerPage struct {
	State     ModelerState
	SVG       template.HTML
	Palette   any
	Saved     []models.SavedDiagram
	Decisions []models.DmnDecision
}

// ModelerPage shows the session's modeler, opening the diagram named by the
// diagram query parameter or an empty one when nothing is open yet.
func (s *Server) ModelerPage(c echo.Context) error {
	ctx := c.Request().Context()
	session := sessionID(c)

	m, id, err := s.modeler(session)
	if want := c.QueryParam("diagram"); want != "" && want != id || errors.Is(err, ErrNoModeler) {
		var warnings []string
		if m, warnings, err = s.openModeler(ctx, session, c.QueryParam("diagram"), ""); err != nil {
			return err
		}
		if len(warnings) > 0 {
			s.Logger.Warn("diagram imported with warnings", "warnings", warnings)
		}
		_, id, _ = s.modeler(session)
	} else if err != nil {
		return err
	}

	exp, err := m.Export(ctx, "svg")
	if err != nil {
		return err
	}
	saved, err := s.Diagrams.List(ctx)
	if err != nil {
		return err
	}
	page := modelerPage{
		State:     modelerState(id, m, nil),
		SVG:       template.HTML(exp.Data),
		Palette:   paletteTypes,
		Saved:     saved,
		Decisions: s.Decisions.List(),
	}
	return s.render(c, http.StatusOK, "modeler", pageData{Title: "Process Modeler", Nav: "modeler", Page: page})
}

// ModelerAction applies one form action to the session's modeler and
// redirects back to the modeler page.
func (s *Server) ModelerAction(c echo.Context) error {
	action, err := pathParam(c, "action")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	session := sessionID(c)
	done := func(msg string) error { return redirectWithNotice(c, "/modeler", noticeSuccess, msg) }
	fail := func(err error) error {
		_, detail := statusFor(err)
		return redirectWithNotice(c, "/modeler", noticeError, detail)
	}

	switch action {
	case "new":
		if _, _, err := s.openModeler(ctx, session, "", ""); err != nil {
			return fail(err)
		}
		return done("New diagram created")
	case "open":
		if _, _, err := s.openModeler(ctx, session, c.FormValue("diagramId"), ""); err != nil {
			return fail(err)
		}
		return done("Diagram opened")
	case "close":
		s.closeModeler(session)
		return c.Redirect(http.StatusSeeOther, "/")
	}

	m, _, err := s.modeler(session)
	if err != nil {
		return fail(err)
	}
	switch action {
	case "import":
		if _, err := importUpload(c, m); err != nil {
			return redirectWithNotice(c, "/modeler", noticeError, diagram.LoadFailedMessage)
		}
		return done("Diagram imported")
	case "command":
		var body ModelerCommand
		if err := c.Bind(&body); err != nil {
			return fail(echo.NewHTTPError(http.StatusBadRequest, err.Error()))
		}
		cmd, err := body.command()
		if err == nil {
			err = m.Execute(cmd)
		}
		if err != nil {
			return fail(err)
		}
		return c.Redirect(http.StatusSeeOther, "/modeler")
	case "undo", "redo":
		step := m.Undo
		if action == "redo" {
			step = m.Redo
		}
		if _, err := step(); err != nil {
			return fail(err)
		}
		return c.Redirect(http.StatusSeeOther, "/modeler")
	case "view-only":
		m.SetViewOnly(c.FormValue("viewOnly") == "on" || c.FormValue("viewOnly") == "true")
		return c.Redirect(http.StatusSeeOther, "/modeler")
	case "save":
		if _, err := s.saveModeler(ctx, session); err != nil {
			return fail(err)
		}
		return done("Diagram saved")
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown modeler action "+action)
	}
}

type generatorPage struct {
	Messages []generator.Message
	XML      string
	SVG      template.HTML
}

// GeneratorPage shows the BPMN generator conversation and a preview of the
// last generated diagram.
func (s *Server) GeneratorPage(c echo.Context) error {
	conv := s.Chats.Get(sessionID(c))
	page := generatorPage{Messages: conv.History(), XML: conv.LastXML()}
	data := pageData{Title: "BPMN Generator", Nav: "generator", Page: &page}
	if page.XML != "" {
		svg, err := previewSVG(page.XML)
		if err != nil {
			s.Logger.Error("failed to render generated diagram", "error", err)
			data.Notice = &notice{Kind: noticeError, Message: diagram.LoadFailedMessage}
		}
		page.SVG = template.HTML(svg)
	}
	return s.render(c, http.StatusOK, "generator", data)
}

func previewSVG(xml string) (string, error) {
	e := diagram.NewEngine()
	defer e.Destroy()
	if _, err := e.ImportXML(xml); err != nil {
		return "", err
	}
	if err := e.FitViewport(); err != nil {
		return "", err
	}
	return e.SaveSVG()
}

// GeneratorAction handles the generator page forms: send, reset and open the
// generated diagram in the modeler.
func (s *Server) GeneratorAction(c echo.Context) error {
	action, err := pathParam(c, "action")
	if err != nil {
		return err
	}
	session := sessionID(c)
	switch action {
	case "send":
		if _, err := s.Chats.Get(session).Send(c.FormValue("message")); err != nil {
			_, detail := statusFor(err)
			return redirectWithNotice(c, "/generator", noticeError, detail)
		}
		return c.Redirect(http.StatusSeeOther, "/generator")
	case "reset":
		s.Chats.Reset(session)
		return redirectWithNotice(c, "/generator", noticeInfo, "Conversation cleared")
	case "open":
		if err := s.openGenerated(c.Request().Context(), session); err != nil {
			_, detail := statusFor(err)
			return redirectWithNotice(c, "/generator", noticeError, detail)
		}
		return redirectWithNotice(c, "/modeler", noticeSuccess, "Generated diagram opened")
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown generator action "+action)
	}
}

// openGenerated opens the last generated diagram in the session's modeler.
func (s *Server) openGenerated(ctx context.Context, session string) error {
	xml := s.Chats.Get(session).LastXML()
	if xml == "" {
		return echo.NewHTTPError(http.StatusConflict, "no diagram has been generated yet")
	}
	_, _, err := s.openModeler(ctx, session, "", xml)
	return err
}

// ToggleTheme flips the light/dark preference and returns to the page the
// form was posted from.
func (s *Server) ToggleTheme(c echo.Context) error {
	state.ToggleTheme(c.Response(), c.Request(), s.Auth.SecureCookies())
	return c.Redirect(http.StatusSeeOther, auth.SafeRedirect(c.FormValue("from")))
}
