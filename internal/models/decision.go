// internal/models/decision.go
package models

import "strings"

// DecisionLabel is drawn from the closed routing vocabulary.
type DecisionLabel string

const (
	LabelOutOfScope              DecisionLabel = "OUT_OF_SCOPE"
	LabelClarifyAmbiguous        DecisionLabel = "CLARIFY_AMBIGUOUS"
	LabelExecuteDirectly         DecisionLabel = "EXECUTE_DIRECTLY"
	LabelExecuteWithConfirmation DecisionLabel = "EXECUTE_WITH_CONFIRMATION"
	LabelAskUserClarification    DecisionLabel = "ASK_USER_CLARIFICATION"
	LabelUnhandledIntent         DecisionLabel = "UNHANDLED_INTENT"

	clarifyMissingInfoPrefix = "CLARIFY_MISSING_INFO_"
)

// ClarifyMissingInfo builds CLARIFY_MISSING_INFO_<INTENT>.
func ClarifyMissingInfo(intent string) DecisionLabel {
	return DecisionLabel(clarifyMissingInfoPrefix + strings.ToUpper(intent))
}

// Decision is the Router's output. Action is the intent-specialized
// execute label (READ_DOCUMENT_PAUSE, GENERATE_STUDY_AID_QUIZ, ...); it is
// empty for OUT_OF_SCOPE, UNHANDLED_INTENT and any intent outside the
// catalog.
type Decision struct {
	Label  DecisionLabel `json:"decision"`
	Action string        `json:"action,omitempty"`
	Result *NLUResult    `json:"result"`
}
