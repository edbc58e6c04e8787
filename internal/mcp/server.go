// Package mcp exposes the dashboard's read operations and the BPMN generator
// as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vicodes/process-flow-canvas-dream/internal/dmn"
	"github.com/vicodes/process-flow-canvas-dream/internal/generator"
	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/internal/services"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	backend   services.Backend
	decisions *dmn.Catalog
	logger    *logging.Logger
}

func NewServer(backend services.Backend, decisions *dmn.Catalog, version string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(
			"OrchesT",
			version,
			server.WithToolCapabilities(true),
		),
		backend:   backend,
		decisions: decisions,
		logger:    logger,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	filterArgs := []mcp.ToolOption{
		mcp.WithString("process", mcp.Description("Process name to match exactly")),
		mcp.WithString("version", mcp.Description("Process version to match exactly")),
		mcp.WithString("search", mcp.Description("Case-insensitive text matched against instance id and process name")),
	}

	s.mcpServer.AddTool(
		mcp.NewTool("list_process_instances", append([]mcp.ToolOption{
			mcp.WithDescription("List process instances with optional filters, together with total, active and completed counts"),
		}, filterArgs...)...),
		s.handleListInstances,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_process_instance",
			mcp.WithDescription("Get one process instance with its task history and variables"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The process instance ID")),
		),
		s.handleGetInstance,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("export_instances_csv", append([]mcp.ToolOption{
			mcp.WithDescription("Export the filtered process instances as CSV"),
		}, filterArgs...)...),
		s.handleExportCSV,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_bpmn",
			mcp.WithDescription("Generate a BPMN 2.0 diagram from a plain-language process description such as \"first ..., then ..., if ... then ... otherwise ...\""),
			mcp.WithString("description", mcp.Required(), mcp.Description("The process description")),
		),
		s.handleGenerateBPMN,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_dmn_decisions",
			mcp.WithDescription("Search the DMN decision catalog"),
			mcp.WithString("query", mcp.Description("Text matched against decision name and id")),
			mcp.WithString("status", mcp.Description("Decision status, or all")),
		),
		s.handleListDecisions,
	)
}

// InstanceList is the list_process_instances result.
type InstanceList struct {
	Items  []models.ProcessInstance `json:"items"`
	Counts models.InstanceCounts    `json:"counts"`
}

// InstanceDetail is the get_process_instance result.
type InstanceDetail struct {
	models.ProcessInstance
	Tasks     []models.TaskEntry `json:"tasks"`
	Variables []models.Variable  `json:"flatVariables"`
}

func filterFrom(request mcp.CallToolRequest) models.Filter {
	return models.Filter{
		Process:    request.GetString("process", ""),
		Version:    request.GetString("version", ""),
		SearchText: request.GetString("search", ""),
	}
}

func (s *Server) filtered(ctx context.Context, request mcp.CallToolRequest) ([]models.ProcessInstance, error) {
	all, err := s.backend.ListAllProcessInstances(ctx)
	if err != nil {
		return nil, err
	}
	return services.FilterInstances(all, filterFrom(request)), nil
}

func (s *Server) handleListInstances(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.filtered(ctx, request)
	if err != nil {
		s.logger.Error("mcp: failed to list instances", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load process instances: %v", err)), nil
	}
	return jsonResult(InstanceList{Items: items, Counts: services.InstanceCounts(items)})
}

func (s *Server) handleGetInstance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	inst, err := s.backend.GetProcessInstance(ctx, id)
	if errors.Is(err, services.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Process instance %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load process instance: %v", err)), nil
	}
	detail := InstanceDetail{
		ProcessInstance: *inst,
		Tasks:           services.TaskHistory(inst),
		Variables:       services.Variables(inst),
	}
	detail.DiagramXML = ""
	return jsonResult(detail)
}

func (s *Server) handleExportCSV(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.filtered(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load process instances: %v", err)), nil
	}
	return mcp.NewToolResultText(services.ExportCSV(services.InstanceRecords(items))), nil
}

func (s *Server) handleGenerateBPMN(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: description"), nil
	}

	xml, err := generator.Generate(description)
	if errors.Is(err, generator.ErrNoSteps) {
		return mcp.NewToolResultError(generator.PromptMessage), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate BPMN: %v", err)), nil
	}
	return mcp.NewToolResultText(xml), nil
}

func (s *Server) handleListDecisions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := request.GetString("status", dmn.StatusAll)
	return jsonResult(s.decisions.Search(request.GetString("query", ""), status))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers serves the streamable HTTP transport at /mcp and the
// legacy SSE transport at /mcp/sse and /mcp/message.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.Handle("/mcp", streamable)
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
