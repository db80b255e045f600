// Package template defines extraction templates: named sections of fields
// that steer the producer beyond the ten standard sections.
package template

import (
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field is one requested extraction target within a section.
type Field struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Section groups fields under a heading.
type Section struct {
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Template is a parsed extraction template. The schema handed to the
// producer comes from Schema, not from the YAML directly.
type Template struct {
	ID          uuid.UUID `yaml:"id,omitempty" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Sections    []Section `yaml:"sections" json:"sections"`
}

// Parse decodes and validates a YAML template definition. Field types
// default to "text".
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "template: parse yaml")
	}

	if t.Name == "" {
		return nil, eris.New("template: name is required")
	}
	if len(t.Sections) == 0 {
		return nil, eris.New("template: at least one section is required")
	}

	seen := make(map[string]bool, len(t.Sections))
	for i := range t.Sections {
		sec := &t.Sections[i]
		if sec.Name == "" {
			return nil, eris.Errorf("template: section %d has no name", i)
		}
		if seen[sec.Name] {
			return nil, eris.Errorf("template: duplicate section %q", sec.Name)
		}
		seen[sec.Name] = true

		for j := range sec.Fields {
			f := &sec.Fields[j]
			if f.Name == "" {
				return nil, eris.Errorf("template: section %q field %d has no name", sec.Name, j)
			}
			if f.Type == "" {
				f.Type = "text"
			}
		}
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return &t, nil
}

// Load reads and parses a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "template: read %s", path)
	}
	return Parse(data)
}

// Schema renders the template as the plain map given to the extraction
// producer alongside the standard sections.
func (t *Template) Schema() map[string]any {
	sections := make([]any, 0, len(t.Sections))
	for _, sec := range t.Sections {
		fields := make([]any, 0, len(sec.Fields))
		for _, f := range sec.Fields {
			field := map[string]any{"name": f.Name, "type": f.Type}
			if f.Description != "" {
				field["description"] = f.Description
			}
			fields = append(fields, field)
		}
		sections = append(sections, map[string]any{"name": sec.Name, "fields": fields})
	}
	return map[string]any{"name": t.Name, "sections": sections}
}
