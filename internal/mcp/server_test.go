package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicodes/process-flow-canvas-dream/internal/dmn"
	"github.com/vicodes/process-flow-canvas-dream/internal/services"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend, err := services.NewMockBackend(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	catalog, err := dmn.DefaultCatalog()
	require.NoError(t, err)
	return NewServer(backend, catalog, "test", nil)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestListInstancesTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleListInstances(context.Background(), callRequest("list_process_instances", map[string]any{
		"process": "Expense Approval",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var list InstanceList
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &list))
	require.NotEmpty(t, list.Items)
	for _, inst := range list.Items {
		assert.Equal(t, "Expense Approval", inst.ProcessName)
	}
	assert.Equal(t, len(list.Items), list.Counts.Total)
	assert.LessOrEqual(t, list.Counts.Active+list.Counts.Completed, list.Counts.Total)
}

func TestGetInstanceTool(t *testing.T) {
	s := newTestServer(t)

	t.Run("found", func(t *testing.T) {
		result, err := s.handleGetInstance(context.Background(), callRequest("get_process_instance", map[string]any{"id": "inst-012"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var detail InstanceDetail
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &detail))
		assert.Equal(t, "inst-012", detail.ID)
		assert.Empty(t, detail.DiagramXML)
		require.Len(t, detail.Tasks, 2)
	})

	t.Run("missing id", func(t *testing.T) {
		result, err := s.handleGetInstance(context.Background(), callRequest("get_process_instance", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("unknown", func(t *testing.T) {
		result, err := s.handleGetInstance(context.Background(), callRequest("get_process_instance", map[string]any{"id": "nope"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "not found")
	})
}

func TestExportCSVTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleExportCSV(context.Background(), callRequest("export_instances_csv", map[string]any{
		"search": "inst-012",
	}))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(resultText(t, result)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "inst-012")
}

func TestGenerateBPMNTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleGenerateBPMN(context.Background(), callRequest("generate_bpmn", map[string]any{
		"description": "first receive the order, then ship the goods",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	xml := resultText(t, result)
	assert.Contains(t, xml, "bpmn:definitions")
	assert.Contains(t, xml, "Receive the order")

	result, err = s.handleGenerateBPMN(context.Background(), callRequest("generate_bpmn", map[string]any{
		"description": "   ",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListDecisionsTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleListDecisions(context.Background(), callRequest("list_dmn_decisions", map[string]any{
		"query": "segment",
	}))
	require.NoError(t, err)

	var decisions []models.DmnDecision
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decisions))
	require.Len(t, decisions, 1)
	assert.Equal(t, "dmn-005", decisions[0].ID)
}

func TestToolsRegistered(t *testing.T) {
	s := newTestServer(t)
	require.Len(t, s.GetMCPServer().ListTools(), 5)
	for _, name := range []string{"list_process_instances", "get_process_instance", "export_instances_csv", "generate_bpmn", "list_dmn_decisions"} {
		assert.NotNil(t, s.GetMCPServer().GetTool(name), "tool %s should be registered", name)
	}
}
