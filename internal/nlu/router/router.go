// internal/nlu/router/router.go
package router

import (
	"strings"

	"viora-nlu/internal/models"
	"viora-nlu/pkg/registry"
)

// Band floors. Each band includes its lower bound.
const (
	DirectThreshold       = 0.85
	ConfirmationThreshold = 0.50
)

type ContractLookup interface {
	Lookup(name string) (registry.IntentContract, bool)
}

// actionEntity names the entity whose value specializes an intent's action.
type actionEntity struct {
	entity   string
	prefix   string
	fallback string
}

var actionEntities = map[string]actionEntity{
	"read_document":       {entity: "reading_action", prefix: "READ_DOCUMENT"},
	"generate_study_aid":  {entity: "study_aid_type", prefix: "GENERATE_STUDY_AID", fallback: "quiz"},
	"focus_alert_control": {entity: "focus_status", prefix: "FOCUS_ALERT"},
}

// Router is a pure function of its input and the read-only catalog.
type Router struct {
	contracts ContractLookup
}

func New(contracts ContractLookup) *Router {
	return &Router{contracts: contracts}
}

// Route maps a validated result to exactly one decision. The result is not
// modified. Checks run in a fixed order: unknown, clarification flag,
// unregistered intent, then confidence band. A flagged intent outside the
// catalog is ambiguous rather than missing info.
func (r *Router) Route(result *models.NLUResult) models.Decision {
	if result == nil {
		result = models.ClarificationFallback()
	}

	if result.Intent == models.IntentUnknown {
		return models.Decision{Label: models.LabelOutOfScope, Result: result}
	}

	_, registered := r.contracts.Lookup(result.Intent)

	if result.NeedsClarification {
		switch {
		case !registered:
			// Only catalog intents name a missing-info label.
			return models.Decision{Label: models.LabelClarifyAmbiguous, Result: result}
		case result.Intent == models.IntentClarification:
			return models.Decision{Label: models.LabelClarifyAmbiguous, Action: r.action(result), Result: result}
		default:
			return models.Decision{Label: models.ClarifyMissingInfo(result.Intent), Action: r.action(result), Result: result}
		}
	}

	if !registered {
		return models.Decision{Label: models.LabelUnhandledIntent, Result: result}
	}

	return models.Decision{Label: Band(result.Confidence), Action: r.action(result), Result: result}
}

// Band maps a confidence onto its execution band.
func Band(confidence float64) models.DecisionLabel {
	switch {
	case confidence >= DirectThreshold:
		return models.LabelExecuteDirectly
	case confidence >= ConfirmationThreshold:
		return models.LabelExecuteWithConfirmation
	default:
		return models.LabelAskUserClarification
	}
}

// action returns the intent-specialized label, falling back to the generic
// one when the selecting entity is absent or not an allowed value.
func (r *Router) action(result *models.NLUResult) string {
	generic := strings.ToUpper(result.Intent)

	spec, ok := actionEntities[result.Intent]
	if !ok {
		return generic
	}

	value := spec.fallback
	if s, isString := result.Entities[spec.entity].AsString(); isString {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && r.allowed(result.Intent, spec.entity, s) {
			value = s
		}
	}
	if value == "" {
		return generic
	}
	return spec.prefix + "_" + strings.ToUpper(value)
}

func (r *Router) allowed(intent, entity, value string) bool {
	contract, ok := r.contracts.Lookup(intent)
	if !ok {
		return false
	}
	return contract.Allows(entity, value)
}
