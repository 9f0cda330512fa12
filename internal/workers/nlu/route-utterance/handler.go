package routeutterance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"viora-nlu/internal/common/errors"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/common/metrics"
	"viora-nlu/internal/common/observability"
	"viora-nlu/internal/common/validation"
	"viora-nlu/internal/dispatch"
	"viora-nlu/internal/models"
	"viora-nlu/internal/nlu/pipeline"
)

const TaskType = "route-utterance"

// Core is the decision pipeline as seen by the worker.
type Core interface {
	Process(ctx context.Context, raw string) models.Decision
	Understand(ctx context.Context, gen pipeline.Generator, utterance string) (models.Decision, error)
}

type HandlerOptions struct {
	Config        *Config
	Core          Core
	Generator     pipeline.Generator
	Dispatcher    dispatch.Dispatcher
	Observability *observability.Observability
	Logger        logger.Logger
}

type Handler struct {
	config     *Config
	core       Core
	generator  pipeline.Generator
	dispatcher dispatch.Dispatcher
	obs        *observability.Observability
	errors     *errors.ErrorHandler
	schema     *validation.Schema
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Core == nil {
		return nil, fmt.Errorf("route-utterance: decision pipeline is required")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = LoadConfig(nil)
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = dispatch.Nop{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:     cfg,
		core:       opts.Core,
		generator:  opts.Generator,
		dispatcher: dispatcher,
		obs:        opts.Observability,
		errors:     errors.NewErrorHandler(log),
		schema:     validation.MustCompile(inputSchema),
		logger:     log,
		now:        time.Now,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
	defer observeJobDuration(startTime)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// observeJobDuration records every handled job, failed or completed.
func observeJobDuration(start time.Time) {
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

// Execute routes one utterance and dispatches the decision. Routing itself
// never fails; errors come from the model call or from dispatch.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var (
		decision models.Decision
		source   string
	)
	switch {
	case strings.TrimSpace(input.RawText) != "":
		source = SourceRaw
		decision = h.core.Process(ctx, input.RawText)
	case strings.TrimSpace(input.Utterance) != "":
		if h.generator == nil {
			return nil, errors.NewInvalidInputError("utterance given but no model is configured; send rawText instead")
		}
		source = SourceModel
		d, err := h.core.Understand(ctx, h.generator, input.Utterance)
		if err != nil {
			return nil, err
		}
		decision = d
	default:
		return nil, errors.NewInvalidInputError("one of utterance or rawText is required")
	}

	env := dispatch.NewEnvelope(requestID, decision, h.now())
	if err := h.dispatcher.Dispatch(ctx, env); err != nil {
		return nil, err
	}

	h.obs.RecordUtterance(ctx, string(decision.Label), source)
	h.obs.RecordLatency(ctx, time.Since(start), source)

	h.logger.Info("Decision dispatched", map[string]interface{}{
		"requestId": requestID,
		"decision":  string(env.Decision),
		"action":    env.Action,
		"source":    source,
	})

	return &Output{
		RequestID:          env.RequestID,
		Decision:           env.Decision,
		Action:             env.Action,
		Intent:             env.Intent,
		Confidence:         env.Confidence,
		Entities:           env.Entities,
		NeedsClarification: env.NeedsClarification,
	}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}

	result := h.schema.ValidateInput(variables)
	if !result.Valid {
		return nil, errors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("decode variables: %v", err))
	}
	return &input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
