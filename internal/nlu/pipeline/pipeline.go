// internal/nlu/pipeline/pipeline.go
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/common/metrics"
	"viora-nlu/internal/common/observability"
	"viora-nlu/internal/models"
	"viora-nlu/internal/nlu/normalize"
	"viora-nlu/internal/nlu/recovery"
	"viora-nlu/internal/nlu/router"
	"viora-nlu/internal/nlu/validate"
	"viora-nlu/pkg/registry"
)

const tracerName = "viora-nlu/pipeline"

// Generator is the model-inference collaborator: utterance in, raw text out.
type Generator interface {
	Generate(ctx context.Context, utterance string) (string, error)
}

type ContractLookup interface {
	Lookup(name string) (registry.IntentContract, bool)
}

type Options struct {
	Recovery recovery.Options
}

// Pipeline runs recovery, normalization, validation and routing. It is
// built once and shared; every call works on its own NLUResult.
type Pipeline struct {
	recoverer  *recovery.Recoverer
	normalizer *normalize.Normalizer
	validator  *validate.Validator
	router     *router.Router
	logger     logger.Logger
	tracer     trace.Tracer
}

func New(contracts ContractLookup, opts Options, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pipeline{
		recoverer:  recovery.New(opts.Recovery, log),
		normalizer: normalize.New(log),
		validator:  validate.New(contracts, log),
		router:     router.New(contracts),
		logger:     log,
		tracer:     observability.Tracer(tracerName),
	}
}

// Process turns raw generated text into a decision. It cannot fail.
func (p *Pipeline) Process(ctx context.Context, raw string) models.Decision {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "nlu.process")
	defer span.End()

	p.logger.Debug("Processing generated text", map[string]interface{}{
		"text": logger.Snippet(raw),
	})

	rec := p.recover(ctx, raw)

	_, nspan := p.tracer.Start(ctx, "nlu.normalize")
	result, outcome := p.normalizer.Apply(rec)
	if outcome != normalize.OutcomeParsed {
		metrics.NLUFallbacks.WithLabelValues(result.Intent).Inc()
	}
	nspan.SetAttributes(attribute.String("nlu.normalize.outcome", string(outcome)))
	nspan.End()

	_, vspan := p.tracer.Start(ctx, "nlu.validate")
	if missing := p.validator.MissingEntities(result); len(missing) > 0 {
		metrics.NLUContractViolations.WithLabelValues(result.Intent).Inc()
		vspan.SetAttributes(attribute.StringSlice("nlu.missing_entities", missing))
	}
	result = p.validator.Validate(result)
	vspan.End()

	decision := p.router.Route(result)

	metrics.NLUDecisions.WithLabelValues(string(decision.Label)).Inc()
	metrics.NLUPipelineDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("nlu.intent", result.Intent),
		attribute.String("nlu.decision", string(decision.Label)),
		attribute.Float64("nlu.confidence", result.Confidence),
	)

	p.logger.Info("Routed utterance", map[string]interface{}{
		"decision":           string(decision.Label),
		"action":             decision.Action,
		"intent":             result.Intent,
		"confidence":         result.Confidence,
		"entities":           result.Entities.Keys(),
		"needsClarification": result.NeedsClarification,
	})
	return decision
}

// Understand calls the model and routes its output. Only the model call
// can fail.
func (p *Pipeline) Understand(ctx context.Context, gen Generator, utterance string) (models.Decision, error) {
	ctx, span := p.tracer.Start(ctx, "nlu.understand")
	defer span.End()

	raw, err := gen.Generate(ctx, utterance)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return models.Decision{}, err
	}
	return p.Process(ctx, raw), nil
}

func (p *Pipeline) recover(ctx context.Context, raw string) recovery.Result {
	_, span := p.tracer.Start(ctx, "nlu.recover")
	defer span.End()

	rec := p.recoverer.Recover(raw)
	span.SetAttributes(attribute.Int("nlu.recovery.attempts", rec.Attempts))

	if !rec.Recovered() {
		metrics.NLURecoveries.WithLabelValues("unrecoverable", "none").Inc()
		span.SetAttributes(attribute.Bool("nlu.recovery.ok", false))
		return rec
	}
	metrics.NLURecoveries.WithLabelValues("recovered", suffixLabel(rec.Suffix)).Inc()
	span.SetAttributes(
		attribute.Bool("nlu.recovery.ok", true),
		attribute.String("nlu.recovery.suffix", rec.Suffix),
	)
	return rec
}

func suffixLabel(s string) string {
	if s == "" {
		return "none_needed"
	}
	return s
}
