package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// ListInstancesParams defines parameters for ListInstances and ExportInstancesCSV.
type ListInstancesParams struct {
	Process *string `form:"process,omitempty" json:"process,omitempty"`
	Version *string `form:"version,omitempty" json:"version,omitempty"`
	Q       *string `form:"q,omitempty" json:"q,omitempty"`
	Page    *int    `form:"page,omitempty" json:"page,omitempty"`
	Size    *int    `form:"size,omitempty" json:"size,omitempty"`
}

// filter merges the query over the session filter without storing it.
func (p ListInstancesParams) filter(base models.Filter) models.Filter {
	if p.Process != nil {
		base.Process = *p.Process
	}
	if p.Version != nil {
		base.Version = *p.Version
	}
	if p.Q != nil {
		base.SearchText = *p.Q
	}
	return base
}

// DiagramImageParams defines parameters for the instance diagram renderings.
type DiagramImageParams struct {
	Zoom *float64 `form:"zoom,omitempty" json:"zoom,omitempty"`
}

// SearchParams defines parameters for list endpoints with a free-text search.
type SearchParams struct {
	Q      *string `form:"q,omitempty" json:"q,omitempty"`
	Status *string `form:"status,omitempty" json:"status,omitempty"`
}

// ExportParams defines parameters for diagram exports.
type ExportParams struct {
	Format *string `form:"format,omitempty" json:"format,omitempty"`
}

func bindListInstancesParams(c echo.Context) (ListInstancesParams, error) {
	var p ListInstancesParams
	q := c.QueryParams()
	if err := runtime.BindQueryParameter("form", true, false, "process", q, &p.Process); err != nil {
		return p, badParam("process", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "version", q, &p.Version); err != nil {
		return p, badParam("version", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "q", q, &p.Q); err != nil {
		return p, badParam("q", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &p.Page); err != nil {
		return p, badParam("page", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "size", q, &p.Size); err != nil {
		return p, badParam("size", err)
	}
	if p.Page != nil && *p.Page < 0 {
		return p, echo.NewHTTPError(http.StatusBadRequest, "page must not be negative")
	}
	if p.Size != nil && *p.Size <= 0 {
		return p, echo.NewHTTPError(http.StatusBadRequest, "size must be positive")
	}
	return p, nil
}

func bindDiagramImageParams(c echo.Context) (DiagramImageParams, error) {
	var p DiagramImageParams
	if err := runtime.BindQueryParameter("form", true, false, "zoom", c.QueryParams(), &p.Zoom); err != nil {
		return p, badParam("zoom", err)
	}
	if p.Zoom != nil && *p.Zoom <= 0 {
		return p, echo.NewHTTPError(http.StatusBadRequest, "zoom must be positive")
	}
	return p, nil
}

func bindSearchParams(c echo.Context) (SearchParams, error) {
	var p SearchParams
	if err := runtime.BindQueryParameter("form", true, false, "q", c.QueryParams(), &p.Q); err != nil {
		return p, badParam("q", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "status", c.QueryParams(), &p.Status); err != nil {
		return p, badParam("status", err)
	}
	return p, nil
}

func bindExportParams(c echo.Context) (string, error) {
	var p ExportParams
	if err := runtime.BindQueryParameter("form", true, false, "format", c.QueryParams(), &p.Format); err != nil {
		return "", badParam("format", err)
	}
	if p.Format == nil {
		return "xml", nil
	}
	return *p.Format, nil
}

// pathParam binds a required simple-style path parameter.
func pathParam(c echo.Context, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", badParam(name, err)
	}
	return v, nil
}

func badParam(name string, err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
