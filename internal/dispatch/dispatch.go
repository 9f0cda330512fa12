// Package dispatch hands routed decisions to the action-execution side.
package dispatch

import (
	"context"
	"errors"
	"time"

	"viora-nlu/internal/models"
)

// Envelope is the outbound record for one routed utterance.
type Envelope struct {
	RequestID          string                 `json:"requestId"`
	Decision           models.DecisionLabel   `json:"decision"`
	Action             string                 `json:"action,omitempty"`
	Intent             string                 `json:"intent"`
	Confidence         float64                `json:"confidence"`
	Entities           map[string]interface{} `json:"entities"`
	NeedsClarification bool                   `json:"needsClarification"`
	ProcessedAt        time.Time              `json:"processedAt"`
}

// NewEnvelope flattens a decision. The result is copied, so later changes
// to it do not leak into the envelope.
func NewEnvelope(requestID string, d models.Decision, at time.Time) Envelope {
	result := d.Result
	if result == nil {
		result = models.ClarificationFallback()
	}
	return Envelope{
		RequestID:          requestID,
		Decision:           d.Label,
		Action:             d.Action,
		Intent:             result.Intent,
		Confidence:         result.Confidence,
		Entities:           result.Entities.Plain(),
		NeedsClarification: result.NeedsClarification,
		ProcessedAt:        at.UTC(),
	}
}

type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope) error
}

// Multi delivers to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, env Envelope) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops envelopes.
type Nop struct{}

func (Nop) Dispatch(context.Context, Envelope) error { return nil }
