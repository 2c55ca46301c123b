package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parse(t *testing.T, doc string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &v))
	return v
}

func TestValidate_RequestList(t *testing.T) {
	valid := `
group: app
target: iSH
requests:
  - op: add
    name: Disassembler.m
    path: app/Disassembler.m
    group: Disassembler
  - op: fix
    name: "XREF*.h"
`
	res, err := Validate(parse(t, valid), RequestList)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Summary())
	assert.Empty(t, res.Summary())

	tests := []struct {
		name    string
		doc     string
		message string
	}{
		{"unknown op", "requests: [{op: delete, name: a.m}]", "op must be one of: add, fix"},
		{"slash in name", "requests: [{op: add, name: app/a.m}]", "must not contain '/'"},
		{"leading slash group", "requests: [{op: add, name: a.m, group: /Sub}]", "must not start or end"},
		{"missing name", "requests: [{op: add}]", "name"},
		{"extra key", "requests: [{op: add, name: a.m, phase: Sources}]", "phase"},
		{"no requests", "group: app", "requests"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Validate(parse(t, tt.doc), RequestList)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Contains(t, res.Summary(), tt.message)
		})
	}
}

func TestValidate_Config(t *testing.T) {
	res, err := Validate(parse(t, "manifest: iSH.xcodeproj\ndry_run: true\nreport: {output: run.md}\n"), Config)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Summary())

	res, err = Validate(parse(t, "dry_run: yes-please\n"), Config)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "dry_run", res.Errors[0].Path)
}

func TestValidate_UnknownSchema(t *testing.T) {
	_, err := Validate(map[string]any{}, "nonexistent")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not found"))
}

func TestValidator_NotInitialised(t *testing.T) {
	var nilValidator *Validator
	_, err := nilValidator.Validate(nil)
	assert.Error(t, err)

	v, err := GetEmbeddedValidator(RequestList)
	require.NoError(t, err)
	res, err := v.Validate(parse(t, "requests: [{op: fix, name: a.h}]"))
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Summary())
}
