package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "viora-nlu/internal/common/errors"
)

func TestDefault_LoadsFullCatalog(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"open_document", "search_file", "navigate_document", "read_document",
		"document_qa", "summarize_content", "generate_study_aid",
		"focus_alert_control", "ocr_request", "clarification", "unknown",
	}, reg.Names())
	assert.Equal(t, 11, reg.Len())
	assert.Equal(t, "1.0.0", reg.Version())
}

func TestLookup_RequiredEntities(t *testing.T) {
	reg := MustDefault()

	tests := []struct {
		intent   string
		required []string
	}{
		{"open_document", []string{"document_name"}},
		{"search_file", []string{"search_query"}},
		{"navigate_document", nil},
		{"read_document", []string{"reading_action"}},
		{"document_qa", []string{"question"}},
		{"summarize_content", nil},
		{"generate_study_aid", []string{"study_aid_type"}},
		{"focus_alert_control", []string{"focus_status"}},
		{"ocr_request", nil},
		{"clarification", nil},
		{"unknown", nil},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			c, ok := reg.Lookup(tt.intent)
			require.True(t, ok)
			if tt.required == nil {
				assert.Empty(t, c.RequiredEntities)
			} else {
				assert.Equal(t, tt.required, c.RequiredEntities)
			}
		})
	}
}

func TestLookup_MissIsNotAnError(t *testing.T) {
	reg := MustDefault()
	c, ok := reg.Lookup("order_pizza")
	assert.False(t, ok)
	assert.Empty(t, c.Name)
}

func TestLookup_ReturnsCopies(t *testing.T) {
	reg := MustDefault()

	c, ok := reg.Lookup("read_document")
	require.True(t, ok)
	c.RequiredEntities[0] = "tampered"
	spec := c.Entities["reading_action"]
	spec.Values[0] = "tampered"
	delete(c.Entities, "reading_action")

	again, _ := reg.Lookup("read_document")
	assert.Equal(t, []string{"reading_action"}, again.RequiredEntities)
	assert.Equal(t, "start", again.Entities["reading_action"].Values[0])
}

func TestIntentContract_Allows(t *testing.T) {
	reg := MustDefault()
	aid, _ := reg.Lookup("generate_study_aid")
	assert.True(t, aid.Allows("study_aid_type", "flashcards"))
	assert.False(t, aid.Allows("study_aid_type", "mindmap"))

	open, _ := reg.Lookup("open_document")
	assert.True(t, open.Allows("document_name", "anything at all"))
	assert.True(t, open.Allows("undeclared", "x"))
}

func TestLoad_RejectsInvalidCatalogs(t *testing.T) {
	sentinels := `{"name":"unknown","description":"","entities":{},"requiredEntities":[]},
		{"name":"clarification","description":"","entities":{},"requiredEntities":[]}`

	tests := []struct {
		name    string
		catalog string
		wantMsg string
	}{
		{
			name:    "schema violation",
			catalog: `{"version":"1","intents":[{"name":"Bad Name","description":"","entities":{},"requiredEntities":[]}]}`,
			wantMsg: "name",
		},
		{
			name:    "missing sentinel",
			catalog: `{"version":"1","intents":[{"name":"unknown","description":"","entities":{},"requiredEntities":[]}]}`,
			wantMsg: "clarification",
		},
		{
			name: "duplicate intent",
			catalog: `{"version":"1","intents":[` + sentinels + `,
				{"name":"unknown","description":"","entities":{},"requiredEntities":[]}]}`,
			wantMsg: "duplicate",
		},
		{
			name: "undeclared required entity",
			catalog: `{"version":"1","intents":[` + sentinels + `,
				{"name":"open_document","description":"","entities":{},"requiredEntities":["document_name"]}]}`,
			wantMsg: "undeclared entity",
		},
		{
			name: "sentinel with required entity",
			catalog: `{"version":"1","intents":[
				{"name":"unknown","description":"","entities":{"x":{"description":""}},"requiredEntities":["x"]},
				{"name":"clarification","description":"","entities":{},"requiredEntities":[]}]}`,
			wantMsg: "must not require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.catalog))
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeCatalogInvalid, apperrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2",
		"intents": [
			{"name": "unknown", "description": "out of scope", "entities": {}, "requiredEntities": []},
			{"name": "clarification", "description": "vague", "entities": {}, "requiredEntities": []},
			{"name": "open_document", "description": "open",
			 "entities": {"document_name": {"description": "file"}},
			 "requiredEntities": ["document_name"]}
		]
	}`), 0o600))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "2", reg.Version())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
