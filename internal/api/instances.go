package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/internal/services"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// InstanceList is the filtered instance listing.
type InstanceList struct {
	Items  []models.ProcessInstance `json:"items"`
	Counts models.InstanceCounts    `json:"counts"`
	Filter models.Filter            `json:"filter"`
}

// ListProcesses returns every deployed process definition
// (GET /api/v1/processes)
func (s *Server) ListProcesses(c echo.Context) error {
	defs, err := s.Backend.ListProcessDefinitions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, defs)
}

// GetProcessXML returns the BPMN document of a definition
// (GET /api/v1/processes/:id/xml)
func (s *Server) GetProcessXML(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	xml, err := s.Backend.GetProcessDefinitionXML(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(xml))
}

// ListInstances returns the instances matching the query, falling back to the
// session filter for fields the query leaves out
// (GET /api/v1/instances)
func (s *Server) ListInstances(c echo.Context) error {
	params, err := bindListInstancesParams(c)
	if err != nil {
		return err
	}
	items, f, err := s.instances(c, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, InstanceList{Items: items, Counts: services.InstanceCounts(items), Filter: f})
}

// ExportInstancesCSV downloads the filtered instances
// (GET /api/v1/instances/export.csv)
func (s *Server) ExportInstancesCSV(c echo.Context) error {
	params, err := bindListInstancesParams(c)
	if err != nil {
		return err
	}
	items, _, err := s.instances(c, params)
	if err != nil {
		return err
	}
	csv := services.ExportCSV(services.InstanceRecords(items))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", services.CSVFileName(s.now())))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

func (s *Server) instances(c echo.Context, params ListInstancesParams) ([]models.ProcessInstance, models.Filter, error) {
	ctx := c.Request().Context()
	f := params.filter(s.Sessions.Filter(sessionID(c)))

	var all []models.ProcessInstance
	if params.Page != nil || params.Size != nil {
		page, size := 0, s.Config.Backend.PageSize
		if params.Page != nil {
			page = *params.Page
		}
		if params.Size != nil {
			size = *params.Size
		}
		p, err := s.Backend.ListProcessInstances(ctx, page, size)
		if err != nil {
			return nil, f, err
		}
		all = p.Content
	} else {
		var err error
		if all, err = s.Backend.ListAllProcessInstances(ctx); err != nil {
			return nil, f, err
		}
	}
	return services.FilterInstances(all, f), f, nil
}

// GetInstance returns one instance with variables and history
// (GET /api/v1/instances/:id)
func (s *Server) GetInstance(c echo.Context) error {
	inst, err := s.instance(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inst)
}

// GetInstanceTasks returns the task history
// (GET /api/v1/instances/:id/tasks)
func (s *Server) GetInstanceTasks(c echo.Context) error {
	inst, err := s.instance(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, services.TaskHistory(inst))
}

// GetInstanceVariables returns the flattened variables, optionally searched
// (GET /api/v1/instances/:id/variables)
func (s *Server) GetInstanceVariables(c echo.Context) error {
	params, err := bindSearchParams(c)
	if err != nil {
		return err
	}
	inst, err := s.instance(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, services.SearchVariables(services.Variables(inst), deref(params.Q)))
}

// GetInstanceDiagramSVG renders the instance diagram with the active task highlighted
// (GET /api/v1/instances/:id/diagram.svg)
func (s *Server) GetInstanceDiagramSVG(c echo.Context) error {
	return s.instanceDiagram(c, func(ctx context.Context, v *diagram.Viewer) ([]byte, string, error) {
		svg, err := v.SVG()
		return []byte(svg), "image/svg+xml", err
	})
}

// GetInstanceDiagramPNG rasterises the instance diagram
// (GET /api/v1/instances/:id/diagram.png)
func (s *Server) GetInstanceDiagramPNG(c echo.Context) error {
	return s.instanceDiagram(c, func(ctx context.Context, v *diagram.Viewer) ([]byte, string, error) {
		png, err := v.PNG(ctx)
		return png, "image/png", err
	})
}

func (s *Server) instanceDiagram(c echo.Context, encode func(context.Context, *diagram.Viewer) ([]byte, string, error)) error {
	params, err := bindDiagramImageParams(c)
	if err != nil {
		return err
	}
	inst, err := s.instance(c)
	if err != nil {
		return err
	}
	v, err := s.openViewer(c.Request().Context(), inst, nil)
	if err != nil {
		return err
	}
	defer v.Close()
	if params.Zoom != nil {
		if err := v.Engine().ZoomTo(*params.Zoom); err != nil {
			return err
		}
	}
	data, contentType, err := encode(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, contentType, data)
}

// instance fetches the instance named by the id path parameter and records it
// as the session's active instance.
func (s *Server) instance(c echo.Context) (*models.ProcessInstance, error) {
	id, err := pathParam(c, "id")
	if err != nil {
		return nil, err
	}
	inst, err := s.Backend.GetProcessInstance(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	s.Sessions.SetActiveInstance(sessionID(c), inst.ID)
	return inst, nil
}

// openViewer loads the instance diagram into a fresh viewer and highlights the
// active task. The caller must Close the viewer.
func (s *Server) openViewer(ctx context.Context, inst *models.ProcessInstance, opts []diagram.EngineOption) (*diagram.Viewer, error) {
	xml := inst.DiagramXML
	if xml == "" && inst.ProcessID != "" {
		var err error
		if xml, err = s.Backend.GetProcessDefinitionXML(ctx, inst.ProcessID); err != nil {
			return nil, err
		}
	}
	if xml == "" {
		return nil, diagram.ErrNoDiagram
	}

	v := diagram.NewViewer(func() diagram.Engine { return diagram.NewEngine(opts...) }, nil, s.Logger)
	if err := v.Open(xml, ""); err != nil {
		v.Close()
		return nil, err
	}
	if active := services.ActiveElementID(services.TaskHistory(inst), v.Engine().Elements()); active != "" {
		if err := v.Highlight(active); err != nil {
			v.Close()
			return nil, err
		}
	}
	return v, nil
}
