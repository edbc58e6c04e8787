package dmn

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// StatusAll disables the status filter of Search.
const StatusAll = "all"

// ErrNotFound is returned for unknown decision ids.
var ErrNotFound = errors.New("DMN decision not found")

//go:embed decisions
var decisionFS embed.FS

type catalogEntry struct {
	models.DmnDecision `yaml:",inline"`
	File               string `yaml:"file"`
}

// Catalog is the DMN listing. It is read-only after creation.
type Catalog struct {
	entries []models.DmnDecision
}

// NewCatalog wraps entries in listing order.
func NewCatalog(entries []models.DmnDecision) *Catalog {
	return &Catalog{entries: append([]models.DmnDecision(nil), entries...)}
}

// DefaultCatalog loads the bundled decisions.
func DefaultCatalog() (*Catalog, error) {
	raw, err := decisionFS.ReadFile("decisions/catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read DMN catalog: %w", err)
	}
	var list []catalogEntry
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse DMN catalog: %w", err)
	}

	entries := make([]models.DmnDecision, 0, len(list))
	for _, e := range list {
		doc, err := decisionFS.ReadFile(path.Join("decisions", e.File))
		if err != nil {
			return nil, fmt.Errorf("failed to read DMN document for %s: %w", e.ID, err)
		}
		e.XML = string(doc)
		entries = append(entries, e.DmnDecision)
	}
	return NewCatalog(entries), nil
}

// List returns every entry without its XML.
func (c *Catalog) List() []models.DmnDecision {
	return c.Search("", StatusAll)
}

// Search matches term against name or id, case-insensitively, and status exactly
// unless status is StatusAll or empty. Results omit the XML.
func (c *Catalog) Search(term, status string) []models.DmnDecision {
	needle := strings.ToLower(term)
	out := []models.DmnDecision{}
	for _, e := range c.entries {
		if status != "" && status != StatusAll && e.Status != status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.Name), needle) &&
			!strings.Contains(strings.ToLower(e.ID), needle) {
			continue
		}
		e.XML = ""
		out = append(out, e)
	}
	return out
}

// Get returns one entry including its XML.
func (c *Catalog) Get(id string) (*models.DmnDecision, error) {
	for _, e := range c.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Definitions parses the DMN document of an entry.
func (c *Catalog) Definitions(id string) (*Definitions, error) {
	e, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if e.XML == "" {
		return nil, fmt.Errorf("%s has no DMN document: %w", id, ErrNotFound)
	}
	return Parse(e.XML)
}
