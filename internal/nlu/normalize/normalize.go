// internal/nlu/normalize/normalize.go
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "viora-nlu/internal/common/errors"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/models"
	"viora-nlu/internal/nlu/recovery"
)

// Normalizer maps a recovered tree onto models.NLUResult.
type Normalizer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Normalizer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Normalizer{logger: log}
}

// Outcome says which path Normalize took.
type Outcome string

const (
	OutcomeParsed        Outcome = "parsed"
	OutcomeClarification Outcome = "clarification_fallback"
	OutcomeUnknown       Outcome = "unknown_fallback"
)

// Normalize never fails. An unrecovered input yields the clarification
// fallback; a tree that cannot be mapped yields the unknown fallback.
func (n *Normalizer) Normalize(rec recovery.Result) *models.NLUResult {
	result, _ := n.Apply(rec)
	return result
}

// Apply is Normalize that also reports the path taken.
func (n *Normalizer) Apply(rec recovery.Result) (*models.NLUResult, Outcome) {
	if !rec.Recovered() {
		n.logger.Info("Falling back to clarification", map[string]interface{}{
			"attempts": rec.Attempts,
			"error":    rec.Err,
		})
		return models.ClarificationFallback(), OutcomeClarification
	}

	result, err := FromTree(rec.Tree)
	if err != nil {
		n.logger.Warn("Falling back to unknown", map[string]interface{}{
			"error": err,
		})
		return models.UnknownFallback(), OutcomeUnknown
	}
	return result, OutcomeParsed
}

// FromTree applies the defaults and coercions. It returns a
// NORMALIZATION_FAILED error instead of a partial result.
func FromTree(tree map[string]interface{}) (*models.NLUResult, error) {
	result := &models.NLUResult{
		Intent:   models.IntentUnknown,
		Entities: models.EntityMap{},
	}

	if s, ok := tree["intent"].(string); ok && strings.TrimSpace(s) != "" {
		result.Intent = strings.TrimSpace(s)
	}

	result.Confidence = Confidence(tree["confidence"])

	entities, err := entityMap(tree["entities"])
	if err != nil {
		return nil, err
	}
	result.Entities = entities

	result.NeedsClarification = clarificationFlag(tree)
	return result, nil
}

// Confidence coerces v into [0, 1]. Numbers and numeric strings are read
// as floats, booleans as 1 or 0; anything else is 0.
func Confidence(v interface{}) float64 {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, ok := parseFloat(string(val))
		if !ok {
			return 0
		}
		f = parsed
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		parsed, ok := parseFloat(strings.TrimSpace(val))
		if !ok {
			return 0
		}
		f = parsed
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}

	switch {
	case math.IsNaN(f):
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// parseFloat keeps the signed infinity ParseFloat returns on overflow so
// the clamp sees it.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return f, true
	}
	if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
		return f, true
	}
	return 0, false
}

func entityMap(v interface{}) (models.EntityMap, error) {
	if v == nil {
		return models.EntityMap{}, nil
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, apperrors.NewNormalizationFailedError(
			fmt.Sprintf("entities is %T, want object", v))
	}

	out := make(models.EntityMap, len(obj))
	for key, raw := range obj {
		value, err := models.ParseEntityValue(raw)
		if err != nil {
			return nil, apperrors.NewNormalizationFailedError(
				fmt.Sprintf("entity %q: %v", key, err))
		}
		out[key] = value
	}
	return out, nil
}

// clarificationFlag reads needsClarification or needs_clarification. Only a
// JSON boolean counts.
func clarificationFlag(tree map[string]interface{}) bool {
	for _, key := range []string{"needsClarification", "needs_clarification"} {
		if b, ok := tree[key].(bool); ok && b {
			return true
		}
	}
	return false
}
