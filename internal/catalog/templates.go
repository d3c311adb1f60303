// Package catalog holds the two registries the process engine reads from: the
// read-only procedure template catalog and the mutable pricing catalog.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tramitia/process-tracker/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// templateFile is the on-disk layout of a template catalog.
type templateFile struct {
	Templates []templateYAML `yaml:"templates"`
}

type templateYAML struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Authority         string   `yaml:"authority"`
	RequiredDocuments []string `yaml:"requiredDocuments"`
	EstimatedDays     int      `yaml:"estimatedDays"`
	BaseCost          string   `yaml:"baseCost"`
}

// TemplateCatalog is a fixed, read-only lookup table of procedure templates
// keyed by id. It is safe for concurrent readers because nothing mutates it
// after construction.
type TemplateCatalog struct {
	templates []domain.Template
	byID      map[string]int
}

// NewTemplateCatalog validates the templates and builds the catalog. List
// order follows the input order.
func NewTemplateCatalog(templates []domain.Template) (*TemplateCatalog, error) {
	c := &TemplateCatalog{
		templates: make([]domain.Template, 0, len(templates)),
		byID:      make(map[string]int, len(templates)),
	}
	for i, t := range templates {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("catalog: template %d: id is required", i)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate template id %q", t.ID)
		}
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("catalog: template %q: name is required", t.ID)
		}
		if t.EstimatedDays < 0 {
			return nil, fmt.Errorf("catalog: template %q: estimatedDays must be >= 0", t.ID)
		}
		if t.BaseCost != nil && t.BaseCost.IsNegative() {
			return nil, fmt.Errorf("catalog: template %q: baseCost must be >= 0", t.ID)
		}
		t.RequiredDocuments = append([]string(nil), t.RequiredDocuments...)
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// ParseTemplatesYAML decodes a template catalog document.
func ParseTemplatesYAML(data []byte) ([]domain.Template, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog: template payload is empty")
	}
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode templates: %w", err)
	}

	templates := make([]domain.Template, 0, len(file.Templates))
	for _, raw := range file.Templates {
		t := domain.Template{
			ID:                strings.TrimSpace(raw.ID),
			Name:              strings.TrimSpace(raw.Name),
			Authority:         strings.TrimSpace(raw.Authority),
			RequiredDocuments: raw.RequiredDocuments,
			EstimatedDays:     raw.EstimatedDays,
		}
		if raw.BaseCost != "" {
			cost, err := decimal.NewFromString(raw.BaseCost)
			if err != nil {
				return nil, fmt.Errorf("catalog: template %q: baseCost: %w", raw.ID, err)
			}
			t.BaseCost = &cost
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// LoadTemplatesFile loads a catalog from an explicit YAML file path.
func LoadTemplatesFile(path string) (*TemplateCatalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	templates, err := ParseTemplatesYAML(content)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return NewTemplateCatalog(templates)
}

// LoadDefaultTemplates loads the catalog bundled with the binary.
func LoadDefaultTemplates() (*TemplateCatalog, error) {
	templates, err := ParseTemplatesYAML(defaultTemplatesYAML)
	if err != nil {
		return nil, err
	}
	return NewTemplateCatalog(templates)
}

// List returns every template in catalog order.
func (c *TemplateCatalog) List() []domain.Template {
	out := make([]domain.Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Find returns the template with the given id.
func (c *TemplateCatalog) Find(id string) (domain.Template, error) {
	idx, ok := c.byID[id]
	if !ok {
		return domain.Template{}, domain.NewNotFound("template", id)
	}
	return c.templates[idx], nil
}

// ByAuthority returns the templates issued by an authority, compared
// case-insensitively.
func (c *TemplateCatalog) ByAuthority(authority string) []domain.Template {
	want := strings.ToLower(strings.TrimSpace(authority))
	out := make([]domain.Template, 0)
	for _, t := range c.templates {
		if t.AuthorityTag() == want {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of templates.
func (c *TemplateCatalog) Len() int {
	return len(c.templates)
}
