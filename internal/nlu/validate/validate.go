// internal/nlu/validate/validate.go
package validate

import (
	apperrors "viora-nlu/internal/common/errors"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/models"
	"viora-nlu/pkg/registry"
)

// DowngradedConfidence is forced onto any result missing a required entity.
const DowngradedConfidence = 0.5

type ContractLookup interface {
	Lookup(name string) (registry.IntentContract, bool)
}

// Validator enforces required-entity contracts.
type Validator struct {
	contracts ContractLookup
	logger    logger.Logger
}

func New(contracts ContractLookup, log logger.Logger) *Validator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Validator{contracts: contracts, logger: log}
}

// Validate mutates result in place and returns it. Intents without a
// contract pass through unchanged. A single missing required entity sets
// NeedsClarification and forces the confidence to DowngradedConfidence.
func (v *Validator) Validate(result *models.NLUResult) *models.NLUResult {
	if result == nil {
		return nil
	}
	missing, known := v.check(result)
	if !known {
		v.logger.WithError(apperrors.NewUnregisteredIntentError(result.Intent)).Debug("No contract for intent", map[string]interface{}{
			"intent": result.Intent,
			"code":   apperrors.ErrCodeUnregisteredIntent,
		})
		return result
	}
	if len(missing) == 0 {
		return result
	}

	v.logger.WithError(apperrors.NewContractViolationError(result.Intent, missing)).Info("Required entities missing", map[string]interface{}{
		"intent":             result.Intent,
		"missing":            missing,
		"originalConfidence": result.Confidence,
		"code":               apperrors.ErrCodeContractViolation,
	})
	result.NeedsClarification = true
	result.Confidence = DowngradedConfidence
	return result
}

// MissingEntities lists the required keys result lacks, in contract order.
func (v *Validator) MissingEntities(result *models.NLUResult) []string {
	missing, _ := v.check(result)
	return missing
}

func (v *Validator) check(result *models.NLUResult) ([]string, bool) {
	contract, ok := v.contracts.Lookup(result.Intent)
	if !ok {
		return nil, false
	}
	var missing []string
	for _, key := range contract.RequiredEntities {
		if result.Entities.Missing(key) {
			missing = append(missing, key)
		}
	}
	return missing, true
}
