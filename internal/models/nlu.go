// internal/models/nlu.go
package models

// Sentinel intents every catalog must carry.
const (
	IntentUnknown       = "unknown"
	IntentClarification = "clarification"
)

// NLUResult is built once per input by the Normalizer, mutated in place only
// by the Validator and read by the Router.
type NLUResult struct {
	Intent             string    `json:"intent"`
	Confidence         float64   `json:"confidence"`
	Entities           EntityMap `json:"entities"`
	NeedsClarification bool      `json:"needsClarification"`
}

// ClarificationFallback is the result for text no record could be
// recovered from.
func ClarificationFallback() *NLUResult {
	return &NLUResult{
		Intent:             IntentClarification,
		Confidence:         0.0,
		Entities:           EntityMap{},
		NeedsClarification: true,
	}
}

// UnknownFallback is the result for a record that parsed but could not be
// mapped onto an NLUResult.
func UnknownFallback() *NLUResult {
	return &NLUResult{
		Intent:     IntentUnknown,
		Confidence: 0.0,
		Entities:   EntityMap{},
	}
}

func (r *NLUResult) Clone() *NLUResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Entities = r.Entities.Clone()
	return &out
}
