package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// ServiceName names the dashboard in traces and the health check.
const ServiceName = "orchestt"

// Register mounts the pages, the auth endpoints, the API documentation and the
// /api/v1 JSON API on e. Everything except sign-in, health and documentation
// requires an authenticated session.
func (s *Server) Register(e *echo.Echo) {
	e.Renderer = s.pages
	e.HTTPErrorHandler = s.HTTPErrorHandler
	e.Use(otelecho.Middleware(ServiceName))

	// public
	e.GET("/login", s.LoginPage)
	e.GET("/auth/login", echo.WrapHandler(http.HandlerFunc(s.Auth.LoginHandler)))
	e.POST("/auth/dev-login", echo.WrapHandler(http.HandlerFunc(s.Auth.DevLoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(s.Auth.CallbackHandler)))
	e.GET("/logout", s.Logout)
	e.GET("/health", s.HandleHealth)
	e.GET("/openapi.yaml", echo.WrapHandler(SpecHandler(s.Config.Auth.Issuer)))
	e.GET("/docs", echo.WrapHandler(SwaggerHandler(s.Config.Auth.Issuer, s.Config.Auth.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(OAuthRedirectHandler)))
	e.POST("/theme", s.ToggleTheme)

	protected := []echo.MiddlewareFunc{echo.WrapMiddleware(s.Auth.RequireAuth), s.withSession}

	e.GET("/", s.ProcessesPage, protected...)
	e.GET("/processes/:id", s.ProcessPage, protected...)
	e.GET("/processes/:id/elements/:elementId", s.ElementClick, protected...)
	e.GET("/dmns", s.DecisionsPage, protected...)
	e.GET("/dmns/:id", s.DecisionPage, protected...)
	e.GET("/modeler", s.ModelerPage, protected...)
	e.POST("/modeler/actions/:action", s.ModelerAction, protected...)
	e.GET("/generator", s.GeneratorPage, protected...)
	e.POST("/generator/actions/:action", s.GeneratorAction, protected...)

	v1 := e.Group("/api/v1", protected...)
	RegisterHandlers(v1, s)
}

// ServerInterface is implemented by Server for the /api/v1 routes.
type ServerInterface interface {
	GetHealth(ctx echo.Context) error
	GetSession(ctx echo.Context) error

	ListProcesses(ctx echo.Context) error
	GetProcessXML(ctx echo.Context) error

	ListInstances(ctx echo.Context) error
	ExportInstancesCSV(ctx echo.Context) error
	GetInstance(ctx echo.Context) error
	GetInstanceTasks(ctx echo.Context) error
	GetInstanceVariables(ctx echo.Context) error
	GetInstanceDiagramSVG(ctx echo.Context) error
	GetInstanceDiagramPNG(ctx echo.Context) error

	GetFilter(ctx echo.Context) error
	PutFilter(ctx echo.Context) error
	DeleteFilter(ctx echo.Context) error

	ListDiagrams(ctx echo.Context) error
	GetDiagram(ctx echo.Context) error
	PutDiagram(ctx echo.Context) error
	DeleteDiagram(ctx echo.Context) error
	ExportDiagram(ctx echo.Context) error

	GetModeler(ctx echo.Context) error
	OpenModeler(ctx echo.Context) error
	ImportModeler(ctx echo.Context) error
	ExecuteModelerCommand(ctx echo.Context) error
	UndoModeler(ctx echo.Context) error
	RedoModeler(ctx echo.Context) error
	SetModelerViewOnly(ctx echo.Context) error
	SaveModeler(ctx echo.Context) error
	ExportModeler(ctx echo.Context) error
	CloseModeler(ctx echo.Context) error

	SendGeneratorMessage(ctx echo.Context) error
	GetGeneratorHistory(ctx echo.Context) error
	ResetGenerator(ctx echo.Context) error
	OpenGeneratedDiagram(ctx echo.Context) error

	ListDecisions(ctx echo.Context) error
	GetDecision(ctx echo.Context) error
}

// EchoRouter is the subset of *echo.Echo and *echo.Group used for routing.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each API route to the router.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	router.GET("/health", si.GetHealth)
	router.GET("/session", si.GetSession)

	router.GET("/processes", si.ListProcesses)
	router.GET("/processes/:id/xml", si.GetProcessXML)

	router.GET("/instances", si.ListInstances)
	router.GET("/instances/export.csv", si.ExportInstancesCSV)
	router.GET("/instances/:id", si.GetInstance)
	router.GET("/instances/:id/tasks", si.GetInstanceTasks)
	router.GET("/instances/:id/variables", si.GetInstanceVariables)
	router.GET("/instances/:id/diagram.svg", si.GetInstanceDiagramSVG)
	router.GET("/instances/:id/diagram.png", si.GetInstanceDiagramPNG)

	router.GET("/filters", si.GetFilter)
	router.PUT("/filters", si.PutFilter)
	router.DELETE("/filters", si.DeleteFilter)

	router.GET("/diagrams", si.ListDiagrams)
	router.GET("/diagrams/:id", si.GetDiagram)
	router.PUT("/diagrams/:id", si.PutDiagram)
	router.DELETE("/diagrams/:id", si.DeleteDiagram)
	router.GET("/diagrams/:id/export", si.ExportDiagram)

	router.GET("/modeler", si.GetModeler)
	router.POST("/modeler", si.OpenModeler)
	router.DELETE("/modeler", si.CloseModeler)
	router.POST("/modeler/import", si.ImportModeler)
	router.POST("/modeler/commands", si.ExecuteModelerCommand)
	router.POST("/modeler/undo", si.UndoModeler)
	router.POST("/modeler/redo", si.RedoModeler)
	router.PUT("/modeler/view-only", si.SetModelerViewOnly)
	router.POST("/modeler/save", si.SaveModeler)
	router.GET("/modeler/export", si.ExportModeler)

	router.GET("/generator/messages", si.GetGeneratorHistory)
	router.POST("/generator/messages", si.SendGeneratorMessage)
	router.DELETE("/generator", si.ResetGenerator)
	router.POST("/generator/modeler", si.OpenGeneratedDiagram)

	router.GET("/dmns", si.ListDecisions)
	router.GET("/dmns/:id", si.GetDecision)
}
