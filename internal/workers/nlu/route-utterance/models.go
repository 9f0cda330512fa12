package routeutterance

import "viora-nlu/internal/models"

const (
	SourceModel = "model"
	SourceRaw   = "raw"
)

// Input is read from the job variables. Either Utterance or RawText must
// be non-empty; RawText wins when both are present.
type Input struct {
	Utterance string `json:"utterance"`
	RawText   string `json:"rawText"`
	RequestID string `json:"requestId"`
}

type Output struct {
	RequestID          string                 `json:"requestId"`
	Decision           models.DecisionLabel   `json:"decision"`
	Action             string                 `json:"action"`
	Intent             string                 `json:"intent"`
	Confidence         float64                `json:"confidence"`
	Entities           map[string]interface{} `json:"entities"`
	NeedsClarification bool                   `json:"needsClarification"`
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"utterance": {"type": "string"},
		"rawText": {"type": "string"},
		"requestId": {"type": "string"}
	},
	"anyOf": [
		{"required": ["utterance"], "properties": {"utterance": {"pattern": "\\S"}}},
		{"required": ["rawText"], "properties": {"rawText": {"pattern": "\\S"}}}
	]
}`
