package diagram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEngine satisfies Engine for adapter tests.
// The expectations live in a named field because Engine.On shadows mock.Mock.On.
type MockEngine struct {
	calls    mock.Mock
	handlers map[string][]Handler
}

func (m *MockEngine) ImportXML(xml string) ([]string, error) {
	args := m.calls.Called(xml)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockEngine) SaveXML() (string, error) {
	args := m.calls.Called()
	return args.String(0), args.Error(1)
}

func (m *MockEngine) SaveSVG() (string, error) {
	args := m.calls.Called()
	return args.String(0), args.Error(1)
}

func (m *MockEngine) Zoom() float64 {
	return m.calls.Called().Get(0).(float64)
}

func (m *MockEngine) ZoomTo(level float64) error {
	return m.calls.Called(level).Error(0)
}

func (m *MockEngine) FitViewport() error {
	return m.calls.Called().Error(0)
}

func (m *MockEngine) CenterOn(id string) error {
	return m.calls.Called(id).Error(0)
}

func (m *MockEngine) Highlight(id string) bool {
	return m.calls.Called(id).Bool(0)
}

func (m *MockEngine) ClearHighlights() { m.calls.Called() }

func (m *MockEngine) Highlighted() []string {
	return nil
}

func (m *MockEngine) Element(id string) (*Element, bool) {
	args := m.calls.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*Element), args.Bool(1)
}

func (m *MockEngine) Elements() []*Element {
	return nil
}

func (m *MockEngine) On(event string, h Handler) {
	m.calls.Called(event)
	if m.handlers == nil {
		m.handlers = map[string][]Handler{}
	}
	m.handlers[event] = append(m.handlers[event], h)
}

func (m *MockEngine) Fire(event string, el *Element) {
	for _, h := range m.handlers[event] {
		h(el)
	}
}

func (m *MockEngine) Destroy() { m.calls.Called() }

func readyEngine(xml string) *MockEngine {
	e := new(MockEngine)
	e.calls.On("ImportXML", xml).Return([]string{}, nil)
	e.calls.On("FitViewport").Return(nil)
	e.calls.On("On", EventElementClick).Return()
	e.calls.On("Destroy").Return()
	return e
}

func TestViewer_OpenFitsAndHighlights(t *testing.T) {
	e := readyEngine("<xml/>")
	e.calls.On("Highlight", "Task_1").Return(true)
	e.calls.On("CenterOn", "Task_1").Return(nil)

	v := NewViewer(func() Engine { return e }, nil, nil)
	require.NoError(t, v.Open("<xml/>", "Task_1"))

	e.calls.AssertCalled(t, "FitViewport")
	e.calls.AssertCalled(t, "Highlight", "Task_1")
	e.calls.AssertCalled(t, "CenterOn", "Task_1")
}

func TestViewer_ReopenDestroysPreviousEngine(t *testing.T) {
	first := readyEngine("<a/>")
	second := readyEngine("<b/>")
	engines := []*MockEngine{first, second}

	v := NewViewer(func() Engine {
		e := engines[0]
		engines = engines[1:]
		return e
	}, nil, nil)

	require.NoError(t, v.Open("<a/>", ""))
	require.NoError(t, v.Open("<b/>", ""))

	first.calls.AssertNumberOfCalls(t, "Destroy", 1)
	second.calls.AssertNotCalled(t, "Destroy")
	second.calls.AssertNumberOfCalls(t, "On", 1)

	v.Close()
	v.Close()
	second.calls.AssertNumberOfCalls(t, "Destroy", 1)
}

func TestViewer_ImportFailure(t *testing.T) {
	e := new(MockEngine)
	e.calls.On("ImportXML", "<broken").Return(nil, errors.New("unexpected EOF"))
	e.calls.On("Destroy").Return()

	v := NewViewer(func() Engine { return e }, nil, nil)
	err := v.Open("<broken", "")

	assert.ErrorIs(t, err, ErrImport)
	e.calls.AssertCalled(t, "Destroy")
	e.calls.AssertNotCalled(t, "FitViewport")
	assert.Nil(t, v.Engine())
	assert.ErrorIs(t, v.ZoomIn(), ErrClosed)
}

func TestViewer_EmptyXML(t *testing.T) {
	v := NewViewer(func() Engine {
		t.Fatal("engine must not be created for an empty document")
		return nil
	}, nil, nil)
	assert.ErrorIs(t, v.Open("  ", ""), ErrNoDiagram)
}

func TestViewer_ClickNavigatesToDecision(t *testing.T) {
	e := readyEngine("<xml/>")
	e.calls.On("Element", "Rule_1").Return(&Element{ID: "Rule_1", Type: TypeBusinessRuleTask, DmnID: "dmn-002"}, true)
	e.calls.On("Element", "Task_1").Return(&Element{ID: "Task_1", Type: TypeUserTask}, true)
	e.calls.On("Element", "missing").Return(nil, false)

	var navigated []string
	v := NewViewer(func() Engine { return e }, func(id string) { navigated = append(navigated, id) }, nil)
	require.NoError(t, v.Open("<xml/>", ""))

	id, ok := v.Click("Rule_1")
	assert.True(t, ok)
	assert.Equal(t, "dmn-002", id)

	_, ok = v.Click("Task_1")
	assert.False(t, ok)
	_, ok = v.Click("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"dmn-002"}, navigated)
}

func TestViewer_HandToolSuppressesClicks(t *testing.T) {
	e := readyEngine("<xml/>")
	var navigated []string
	v := NewViewer(func() Engine { return e }, func(id string) { navigated = append(navigated, id) }, nil)
	require.NoError(t, v.Open("<xml/>", ""))

	v.SetHandTool(true)
	_, ok := v.Click("Rule_1")
	assert.False(t, ok)
	assert.Empty(t, navigated)
	e.calls.AssertNotCalled(t, "Element", "Rule_1")
}

func TestViewer_Zoom(t *testing.T) {
	e := readyEngine("<xml/>")
	e.calls.On("Zoom").Return(1.0)
	e.calls.On("ZoomTo", 1.2).Return(nil)
	e.calls.On("ZoomTo", mock.MatchedBy(func(l float64) bool { return l < 1 })).Return(nil)

	v := NewViewer(func() Engine { return e }, nil, nil)
	require.NoError(t, v.Open("<xml/>", ""))

	require.NoError(t, v.ZoomIn())
	require.NoError(t, v.ZoomOut())
	require.NoError(t, v.ResetZoom())

	e.calls.AssertCalled(t, "ZoomTo", 1.2)
	e.calls.AssertNumberOfCalls(t, "ZoomTo", 2)
	e.calls.AssertNumberOfCalls(t, "FitViewport", 2)
}

func TestViewer_WithRealEngine(t *testing.T) {
	var navigated string
	v := NewViewer(func() Engine { return NewEngine() }, func(id string) { navigated = id }, nil)
	require.NoError(t, v.Open(SampleExpenseBPMN, "Task_Review"))
	defer v.Close()

	id, ok := v.Click("Task_Risk")
	require.True(t, ok)
	assert.Equal(t, "dmn-004", id)
	assert.Equal(t, "dmn-004", navigated)

	svg, err := v.SVG()
	require.NoError(t, err)
	assert.Contains(t, svg, `highlighted" data-element-id="Task_Review"`)
}
