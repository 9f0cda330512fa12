package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairSeparators(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "string value then key",
			in:   `{"intent": "open_document" "confidence": 1.0}`,
			want: `{"intent": "open_document", "confidence": 1.0}`,
		},
		{
			name: "number then key",
			in:   `{"confidence": 0.9 "entities": {}}`,
			want: `{"confidence": 0.9, "entities": {}}`,
		},
		{
			name: "literals then key",
			in:   `{"a": true "b": null "c": false "d": 1}`,
			want: `{"a": true, "b": null, "c": false, "d": 1}`,
		},
		{
			name: "adjacent list strings",
			in:   `{"file_types": ["pptx" "pdf"]}`,
			want: `{"file_types": ["pptx", "pdf"]}`,
		},
		{
			name: "closed object then key",
			in:   `{"entities": {"page_number": 3} "intent": "navigate_document"}`,
			want: `{"entities": {"page_number": 3}, "intent": "navigate_document"}`,
		},
		{
			name: "no whitespace between string and key",
			in:   `{"a": "x""b": "y"}`,
			want: `{"a": "x","b": "y"}`,
		},
		{
			name: "quotes inside strings untouched",
			in:   `{"question": "what does \"foo\" \"bar\" mean" "page_number": 2}`,
			want: `{"question": "what does \"foo\" \"bar\" mean", "page_number": 2}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairSeparators(tt.in))
		})
	}
}

func TestRepairSeparators_ValidJSONUnchanged(t *testing.T) {
	inputs := []string{
		`{"intent": "navigate_document", "confidence": 1.0, "entities": {"page_number": 15, "navigation_direction": "to"}}`,
		"{\n  \"intent\" : \"search_file\",\n  \"entities\" : { \"file_types\" : [ \"pptx\" , \"pdf\" ] }\n}",
		`{"a":[{"b":"c"},{"d":[]}],"e":-1.5e3}`,
		`{"escaped": "back\\slash \" quote", "x": "y"}`,
	}
	for _, in := range inputs {
		assert.Equal(t, in, RepairSeparators(in))
	}
}

func TestEndsInString(t *testing.T) {
	assert.True(t, endsInString(`{"a": "star`))
	assert.True(t, endsInString(`{"a": "ends with escaped quote \"`))
	assert.False(t, endsInString(`{"a": "done"`))
	assert.False(t, endsInString(`{"a": 1`))
	assert.False(t, endsInString(`{"a": "back\\"`))
}
