package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

var mockNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMockBackend_Dataset(t *testing.T) {
	m, err := NewMockBackend(mockNow)
	require.NoError(t, err)
	ctx := context.Background()

	defs, err := m.ListProcessDefinitions(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 5)
	assert.Equal(t, []string{"v1.0", "v1.1"}, ProcessVersions(defs, "Order Processing"))

	all, err := m.ListAllProcessInstances(ctx)
	require.NoError(t, err)
	require.Len(t, all, 50)
	for _, inst := range all {
		assert.Nil(t, inst.Variables, inst.ID)
		assert.Empty(t, inst.DiagramXML, inst.ID)
		assert.False(t, inst.StartDate.After(mockNow), inst.ID)
		if inst.Status == models.StatusActive || inst.Status == models.StatusPending {
			assert.True(t, inst.Running(), inst.ID)
		}
	}

	again, err := NewMockBackend(mockNow)
	require.NoError(t, err)
	allAgain, err := again.ListAllProcessInstances(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, allAgain)
}

func TestMockBackend_Paging(t *testing.T) {
	m, err := NewMockBackend(mockNow)
	require.NoError(t, err)

	p, err := m.ListProcessInstances(context.Background(), 2, 20)
	require.NoError(t, err)
	assert.Len(t, p.Content, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.Last())

	p, err = m.ListProcessInstances(context.Background(), 5, 20)
	require.NoError(t, err)
	assert.Empty(t, p.Content)
}

func TestMockBackend_GetProcessInstance(t *testing.T) {
	m, err := NewMockBackend(mockNow)
	require.NoError(t, err)
	ctx := context.Background()

	inst, err := m.GetProcessInstance(ctx, "inst-001")
	require.NoError(t, err)
	assert.NotEmpty(t, inst.DiagramXML)
	assert.Equal(t, "CUST-1042", inst.Variables["customerId"])
	require.NotEmpty(t, inst.History)

	inst.Variables["customerId"] = "changed"
	fresh, err := m.GetProcessInstance(ctx, "inst-001")
	require.NoError(t, err)
	assert.Equal(t, "CUST-1042", fresh.Variables["customerId"])

	_, err = m.GetProcessInstance(ctx, "inst-999")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetProcessDefinitionXML(ctx, "proc-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockBackend_ActiveTaskHighlightsDiagram(t *testing.T) {
	m, err := NewMockBackend(mockNow)
	require.NoError(t, err)
	all, err := m.ListAllProcessInstances(context.Background())
	require.NoError(t, err)

	var checked int
	for _, summary := range all {
		if summary.Status != models.StatusActive {
			continue
		}
		inst, err := m.GetProcessInstance(context.Background(), summary.ID)
		require.NoError(t, err)

		e := diagram.NewEngine()
		_, err = e.ImportXML(inst.DiagramXML)
		require.NoError(t, err, inst.ID)
		assert.NotEmpty(t, ActiveElementID(TaskHistory(inst), e.Elements()), inst.ID)
		checked++
	}
	assert.Positive(t, checked)
}

func TestNewMockBackend_RejectsDefinitionWithoutTasks(t *testing.T) {
	fixture := []byte(`
definitions:
  - id: proc-empty
    name: Empty
    version: v1
    diagram: order-processing
    tasks: []
instances:
  count: 3
  statuses: [ACTIVE]
  assignees: [ana]
`)
	var m *MockBackend
	var err error
	require.NotPanics(t, func() { m, err = newMockBackend(fixture, mockNow) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proc-empty has no tasks")
	assert.Nil(t, m)
}
