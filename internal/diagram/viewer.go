package diagram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
)

// LoadFailedMessage is shown to the user when a diagram cannot be imported.
const LoadFailedMessage = "Failed to load BPMN diagram"

// ZoomStep is the factor applied by ZoomIn and ZoomOut.
const ZoomStep = 1.2

var (
	// ErrImport wraps every import failure.
	ErrImport = errors.New("diagram: import failed")
	// ErrNoDiagram is returned when there is no XML to show.
	ErrNoDiagram = errors.New("diagram: no diagram available")
	// ErrClosed is returned by viewer calls before Open or after Close.
	ErrClosed = errors.New("diagram: viewer is not open")
)

// Viewer shows one read-only diagram. Each Open releases the previous engine
// before creating a new one, so click handlers are never bound twice.
type Viewer struct {
	newEngine  func() Engine
	engine     Engine
	onDecision func(decisionID string)
	handTool   bool
	warnings   []string
	navigated  string
	logger     *logging.Logger
}

// NewViewer returns a viewer that builds engines with newEngine and reports
// clicks on decision tasks to onDecision.
func NewViewer(newEngine func() Engine, onDecision func(decisionID string), logger *logging.Logger) *Viewer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Viewer{newEngine: newEngine, onDecision: onDecision, logger: logger}
}

// Open imports xml, fits it to the viewport and highlights activeElementID when set.
func (v *Viewer) Open(xml, activeElementID string) error {
	v.Close()
	if strings.TrimSpace(xml) == "" {
		return ErrNoDiagram
	}

	e := v.newEngine()
	warnings, err := e.ImportXML(xml)
	if err != nil {
		e.Destroy()
		v.logger.Error("BPMN import error", "error", err)
		return fmt.Errorf("%w: %v", ErrImport, err)
	}
	if len(warnings) > 0 {
		v.logger.Warn("BPMN import warnings", "warnings", warnings)
	}
	v.engine = e
	v.warnings = warnings

	if err := e.FitViewport(); err != nil {
		return err
	}
	e.On(EventElementClick, v.handleClick)

	if activeElementID != "" {
		v.highlight(activeElementID)
	}
	return nil
}

// Highlight marks id as the active element of the open diagram and centres on it.
func (v *Viewer) Highlight(id string) error {
	if v.engine == nil {
		return ErrClosed
	}
	v.highlight(id)
	return nil
}

func (v *Viewer) highlight(id string) {
	if !v.engine.Highlight(id) {
		v.logger.Debug("active element not in diagram", "element", id)
		return
	}
	if err := v.engine.CenterOn(id); err != nil {
		v.logger.Warn("element highlighting error", "element", id, "error", err)
	}
}

func (v *Viewer) handleClick(el *Element) {
	if !IsDecisionTask(el) {
		return
	}
	id := ResolveDecisionID(el)
	v.navigated = id
	if v.onDecision != nil {
		v.onDecision(id)
	}
}

// Click dispatches a click on elementID. It returns the decision id navigated to,
// or false when the element is not a decision task or the hand tool is active.
func (v *Viewer) Click(elementID string) (string, bool) {
	if v.engine == nil || v.handTool {
		return "", false
	}
	el, ok := v.engine.Element(elementID)
	if !ok {
		return "", false
	}
	v.navigated = ""
	v.engine.Fire(EventElementClick, el)
	return v.navigated, v.navigated != ""
}

// SetHandTool toggles canvas panning. While it is on clicks are ignored.
func (v *Viewer) SetHandTool(on bool) {
	v.handTool = on
}

func (v *Viewer) HandTool() bool {
	return v.handTool
}

func (v *Viewer) ZoomIn() error {
	if v.engine == nil {
		return ErrClosed
	}
	return v.engine.ZoomTo(v.engine.Zoom() * ZoomStep)
}

func (v *Viewer) ZoomOut() error {
	if v.engine == nil {
		return ErrClosed
	}
	return v.engine.ZoomTo(v.engine.Zoom() / ZoomStep)
}

// ResetZoom fits the diagram to the viewport again.
func (v *Viewer) ResetZoom() error {
	if v.engine == nil {
		return ErrClosed
	}
	return v.engine.FitViewport()
}

// Zoom returns the current zoom level, or 0 when closed.
func (v *Viewer) Zoom() float64 {
	if v.engine == nil {
		return 0
	}
	return v.engine.Zoom()
}

// Warnings returns the warnings of the last import.
func (v *Viewer) Warnings() []string {
	return v.warnings
}

func (v *Viewer) SVG() (string, error) {
	if v.engine == nil {
		return "", ErrClosed
	}
	return v.engine.SaveSVG()
}

// PNG rasterises the DI layout, falling back to an automatic layout when the
// document has no diagram interchange data.
func (v *Viewer) PNG(ctx context.Context) ([]byte, error) {
	if v.engine == nil {
		return nil, ErrClosed
	}
	return exportPNG(ctx, v.engine)
}

// Engine returns the live engine, or nil when closed.
func (v *Viewer) Engine() Engine {
	return v.engine
}

// Close releases the engine. It is safe to call more than once.
func (v *Viewer) Close() {
	if v.engine != nil {
		v.engine.Destroy()
		v.engine = nil
	}
	v.warnings = nil
}

func exportPNG(ctx context.Context, e Engine) ([]byte, error) {
	if _, ok := boundingBox(e.Elements()); !ok {
		return RenderLayout(ctx, e, LayoutPNG)
	}
	return RenderPNG(e)
}
