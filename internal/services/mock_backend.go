package services

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

//go:embed fixtures/mock.yaml
var mockFixture []byte

type fixtureDefinition struct {
	models.ProcessDefinition `yaml:",inline"`
	Diagram                  string   `yaml:"diagram"`
	Tasks                    []string `yaml:"tasks"`
}

type fixture struct {
	Definitions []fixtureDefinition `yaml:"definitions"`
	Instances   struct {
		Count               int      `yaml:"count"`
		Statuses            []string `yaml:"statuses"`
		Assignees           []string `yaml:"assignees"`
		MaxAgeDays          int      `yaml:"maxAgeDays"`
		TaskIntervalMinutes int      `yaml:"taskIntervalMinutes"`
	} `yaml:"instances"`
	Variables map[string]any `yaml:"variables"`
}

// MockBackend serves the offline development dataset. The instance list is
// derived deterministically from the fixture and the clock passed at creation.
type MockBackend struct {
	definitions []fixtureDefinition
	instances   []models.ProcessInstance
	byID        map[string]int
	diagrams    map[string]string
}

// NewMockBackend builds the dataset relative to now.
func NewMockBackend(now time.Time) (*MockBackend, error) {
	return newMockBackend(mockFixture, now)
}

func newMockBackend(data []byte, now time.Time) (*MockBackend, error) {
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse mock fixture: %w", err)
	}
	if len(fx.Definitions) == 0 || len(fx.Instances.Statuses) == 0 || len(fx.Instances.Assignees) == 0 {
		return nil, fmt.Errorf("mock fixture is incomplete")
	}

	m := &MockBackend{
		definitions: fx.Definitions,
		byID:        map[string]int{},
		diagrams:    diagram.Samples(),
	}
	for _, d := range fx.Definitions {
		if _, ok := m.diagrams[d.Diagram]; !ok {
			return nil, fmt.Errorf("mock definition %s references unknown diagram %q", d.ID, d.Diagram)
		}
		if len(d.Tasks) == 0 {
			return nil, fmt.Errorf("mock definition %s has no tasks", d.ID)
		}
	}

	interval := time.Duration(fx.Instances.TaskIntervalMinutes) * time.Minute
	maxAge := fx.Instances.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 1
	}
	for i := 1; i <= fx.Instances.Count; i++ {
		def := fx.Definitions[(i*7)%len(fx.Definitions)]
		status := models.InstanceStatus(fx.Instances.Statuses[(i*3)%len(fx.Instances.Statuses)])
		start := now.Add(-time.Duration((i*13)%maxAge) * 24 * time.Hour).Add(-time.Duration(i) * time.Minute).UTC().Truncate(time.Second)

		inst := models.ProcessInstance{
			ID:             fmt.Sprintf("inst-%03d", i),
			ProcessID:      def.ID,
			ProcessName:    def.Name,
			ProcessVersion: def.Version,
			Status:         status,
			StartDate:      start,
			Variables:      map[string]any{"instanceId": fmt.Sprintf("inst-%03d", i)},
			History:        map[string]models.HistoryEntry{},
		}
		if status == models.StatusCompleted || status == models.StatusFailed {
			end := start.Add(time.Duration(1+i%24) * time.Hour)
			inst.EndDate = &end
		}
		for k, v := range fx.Variables {
			inst.Variables[k] = v
		}

		taskCount := 2 + i%len(def.Tasks)
		if taskCount > len(def.Tasks) {
			taskCount = len(def.Tasks)
		}
		for t := 0; t < taskCount; t++ {
			taskStatus := string(models.StatusCompleted)
			if t == taskCount-1 {
				switch status {
				case models.StatusActive, models.StatusFailed, models.StatusPending:
					taskStatus = string(status)
				}
			}
			inst.History[fmt.Sprintf("task-%d", t+1)] = models.HistoryEntry{
				TaskName:  def.Tasks[t],
				Status:    taskStatus,
				Timestamp: start.Add(time.Duration(t) * interval),
				Assignee:  fx.Instances.Assignees[(i+t)%len(fx.Instances.Assignees)],
			}
		}

		m.byID[inst.ID] = len(m.instances)
		m.instances = append(m.instances, inst)
	}
	return m, nil
}

func (m *MockBackend) ListProcessDefinitions(ctx context.Context) ([]models.ProcessDefinition, error) {
	out := make([]models.ProcessDefinition, 0, len(m.definitions))
	for _, d := range m.definitions {
		out = append(out, d.ProcessDefinition)
	}
	return out, nil
}

func (m *MockBackend) ListProcessInstances(ctx context.Context, page, size int) (*models.Page[models.ProcessInstance], error) {
	if size <= 0 {
		size = len(m.instances)
	}
	if page < 0 {
		page = 0
	}
	total := len(m.instances)
	p := &models.Page[models.ProcessInstance]{
		Content:       []models.ProcessInstance{},
		Number:        page,
		Size:          size,
		TotalElements: total,
		TotalPages:    (total + size - 1) / size,
	}
	from := page * size
	if from >= total {
		return p, nil
	}
	to := min(from+size, total)
	for _, inst := range m.instances[from:to] {
		p.Content = append(p.Content, summary(inst))
	}
	return p, nil
}

func (m *MockBackend) ListAllProcessInstances(ctx context.Context) ([]models.ProcessInstance, error) {
	out := make([]models.ProcessInstance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, summary(inst))
	}
	return out, nil
}

func (m *MockBackend) GetProcessInstance(ctx context.Context, id string) (*models.ProcessInstance, error) {
	idx, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("process instance with ID %s: %w", id, ErrNotFound)
	}
	inst := m.instances[idx]
	inst.Variables = copyMap(inst.Variables)
	history := make(map[string]models.HistoryEntry, len(inst.History))
	for k, v := range inst.History {
		history[k] = v
	}
	inst.History = history
	xml, err := m.GetProcessDefinitionXML(ctx, inst.ProcessID)
	if err != nil {
		return nil, err
	}
	inst.DiagramXML = xml
	return &inst, nil
}

func (m *MockBackend) GetProcessDefinitionXML(ctx context.Context, id string) (string, error) {
	for _, d := range m.definitions {
		if d.ID == id {
			return m.diagrams[d.Diagram], nil
		}
	}
	return "", fmt.Errorf("process definition %s: %w", id, ErrNotFound)
}

// summary strips the detail fields the list endpoint does not return.
func summary(inst models.ProcessInstance) models.ProcessInstance {
	inst.Variables = nil
	inst.History = nil
	inst.DiagramXML = ""
	return inst
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
