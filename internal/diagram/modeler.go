package diagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
)

// MaxImportSize caps uploaded diagram files.
const MaxImportSize = 5 << 20

var (
	// ErrViewOnly is returned by every mutating call while the modeler is in view-only mode.
	ErrViewOnly = errors.New("diagram: modeler is in view-only mode")
	// ErrUnsupportedFormat is returned by Export for unknown formats.
	ErrUnsupportedFormat = errors.New("diagram: unsupported export format")
)

// Export formats.
const (
	FormatXML = "xml"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Export is a rendered diagram ready to download.
type Export struct {
	Data        []byte
	ContentType string
	FileName    string
}

// SaveFunc stores the XML written by Modeler.Save. An error fails the save.
type SaveFunc func(ctx context.Context, xml string) error

// Modeler edits one diagram with undo and redo. It is safe for concurrent use.
type Modeler struct {
	mu       sync.Mutex
	canvas   Canvas
	stack    CommandStack
	viewOnly bool
	onSave   SaveFunc
	lastUsed time.Time
	logger   *logging.Logger
}

// NewModeler wraps canvas. onSave, when set, receives the XML of every Save.
func NewModeler(canvas Canvas, onSave SaveFunc, logger *logging.Logger) *Modeler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Modeler{canvas: canvas, onSave: onSave, logger: logger, lastUsed: time.Now()}
}

// New starts from the empty diagram.
func (m *Modeler) New() error {
	_, err := m.Import(EmptyBPMN)
	return err
}

// Import replaces the diagram and clears the command stack.
func (m *Modeler) Import(xml string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()

	if strings.TrimSpace(xml) == "" {
		return nil, ErrNoDiagram
	}
	warnings, err := m.canvas.ImportXML(xml)
	if err != nil {
		m.logger.Error("BPMN import error", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrImport, err)
	}
	if err := m.canvas.FitViewport(); err != nil {
		return nil, err
	}
	m.stack.Clear()
	return warnings, nil
}

// ImportFrom reads a diagram file, as uploaded through the file picker or drag and drop.
func (m *Modeler) ImportFrom(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("diagram: read upload: %w", err)
	}
	if len(data) > MaxImportSize {
		return nil, fmt.Errorf("%w: file larger than %d bytes", ErrImport, MaxImportSize)
	}
	return m.Import(string(data))
}

// Execute applies cmd and records it for undo.
func (m *Modeler) Execute(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()

	if m.viewOnly {
		return ErrViewOnly
	}
	if err := m.stack.Execute(m.canvas, cmd); err != nil {
		return err
	}
	m.logger.Debug("command executed", "command", cmd.Name())
	return nil
}

// Undo reverts the last command. It reports false when there was nothing to undo.
func (m *Modeler) Undo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()

	if m.viewOnly {
		return false, ErrViewOnly
	}
	return m.stack.Undo(m.canvas)
}

// Redo re-applies the last undone command.
func (m *Modeler) Redo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()

	if m.viewOnly {
		return false, ErrViewOnly
	}
	return m.stack.Redo(m.canvas)
}

func (m *Modeler) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stack.CanUndo()
}

func (m *Modeler) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stack.CanRedo()
}

// SetViewOnly switches view-only mode. The document and its command history are
// kept across switches, so nothing is re-imported.
func (m *Modeler) SetViewOnly(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()
	m.viewOnly = on
}

func (m *Modeler) ViewOnly() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewOnly
}

// PaletteVisible reports whether editing tools should be shown.
func (m *Modeler) PaletteVisible() bool {
	return !m.ViewOnly()
}

// Elements returns the current document elements.
func (m *Modeler) Elements() []*Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canvas.Elements()
}

// Save returns the formatted XML once the save callback has stored it.
func (m *Modeler) Save(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()

	xml, err := m.canvas.SaveXML()
	if err != nil {
		return "", err
	}
	if m.onSave != nil {
		if err := m.onSave(ctx, xml); err != nil {
			m.logger.Error("BPMN save error", "error", err)
			return "", fmt.Errorf("diagram: save: %w", err)
		}
	}
	return xml, nil
}

// Export renders the diagram as xml, svg or png.
func (m *Modeler) Export(ctx context.Context, format string) (*Export, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()

	switch strings.ToLower(format) {
	case FormatXML:
		xml, err := m.canvas.SaveXML()
		if err != nil {
			return nil, err
		}
		return &Export{Data: []byte(xml), ContentType: "application/xml", FileName: "diagram.bpmn"}, nil
	case FormatSVG:
		svg, err := m.canvas.SaveSVG()
		if err != nil {
			return nil, err
		}
		return &Export{Data: []byte(svg), ContentType: "image/svg+xml", FileName: "diagram.svg"}, nil
	case FormatPNG:
		png, err := exportPNG(ctx, m.canvas)
		if err != nil {
			return nil, err
		}
		return &Export{Data: png, ContentType: "image/png", FileName: "diagram.png"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// LastUsed returns when the modeler was last touched.
func (m *Modeler) LastUsed() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUsed
}

// Destroy releases the engine.
func (m *Modeler) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.Destroy()
	m.stack.Clear()
}

// NewElementID returns a fresh id in the bpmn-js style, e.g. Activity_1a2b3c4.
func NewElementID(typ string) string {
	prefix := "Activity"
	switch {
	case typ == TypeSequenceFlow:
		prefix = "Flow"
	case strings.HasSuffix(typ, "Gateway"):
		prefix = "Gateway"
	case strings.HasSuffix(typ, "Event"):
		prefix = "Event"
	}
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}

// DefaultSize returns the bpmn-js default shape size for typ.
func DefaultSize(typ string) (float64, float64) {
	switch {
	case strings.HasSuffix(typ, "Event"):
		return 36, 36
	case strings.HasSuffix(typ, "Gateway"):
		return 50, 50
	default:
		return 100, 80
	}
}
