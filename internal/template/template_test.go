package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: orthopedic outcomes
description: extra fields for joint replacement studies
sections:
  - name: implant
    fields:
      - name: implant_type
        description: manufacturer and model
      - name: fixation_method
        type: categorical
  - name: rehabilitation
    fields:
      - name: protocol_duration_weeks
        type: number
`

func TestParse(t *testing.T) {
	tpl, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "orthopedic outcomes", tpl.Name)
	assert.NotEqual(t, uuid.Nil, tpl.ID)
	require.Len(t, tpl.Sections, 2)

	implant := tpl.Sections[0]
	require.Len(t, implant.Fields, 2)
	assert.Equal(t, "text", implant.Fields[0].Type) // defaulted
	assert.Equal(t, "categorical", implant.Fields[1].Type)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "{{nope", "parse yaml"},
		{"missing name", "sections:\n  - name: a\n    fields: []\n", "name is required"},
		{"no sections", "name: empty\n", "at least one section"},
		{"unnamed section", "name: x\nsections:\n  - fields: []\n", "has no name"},
		{
			"duplicate section",
			"name: x\nsections:\n  - name: a\n    fields: []\n  - name: a\n    fields: []\n",
			`duplicate section "a"`,
		},
		{
			"unnamed field",
			"name: x\nsections:\n  - name: a\n    fields:\n      - type: text\n",
			"has no name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tpl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	tpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orthopedic outcomes", tpl.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSchema(t *testing.T) {
	tpl, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	schema := tpl.Schema()
	assert.Equal(t, "orthopedic outcomes", schema["name"])

	sections := schema["sections"].([]any)
	require.Len(t, sections, 2)
	first := sections[0].(map[string]any)
	assert.Equal(t, "implant", first["name"])

	fields := first["fields"].([]any)
	require.Len(t, fields, 2)
	assert.Equal(t, "implant_type", fields[0].(map[string]any)["name"])
	assert.Equal(t, "manufacturer and model", fields[0].(map[string]any)["description"])
	_, hasDesc := fields[1].(map[string]any)["description"]
	assert.False(t, hasDesc)
}
