package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	apperrors "viora-nlu/internal/common/errors"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/common/metrics"
)

// StreamAppender is satisfied by stream.RedisClient.
type StreamAppender interface {
	Append(ctx context.Context, key string, maxLen int64, values map[string]interface{}) (string, error)
}

// StreamDispatcher appends envelopes to a capped Redis stream. Scalar
// fields are written as separate stream fields so consumers can filter
// without decoding the payload.
type StreamDispatcher struct {
	client StreamAppender
	key    string
	maxLen int64
	logger logger.Logger
}

func NewStreamDispatcher(client StreamAppender, key string, maxLen int64, log logger.Logger) *StreamDispatcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &StreamDispatcher{client: client, key: key, maxLen: maxLen, logger: log}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return apperrors.NewDispatchFailedError("stream", err)
	}

	id, err := d.client.Append(ctx, d.key, d.maxLen, map[string]interface{}{
		"requestId":   env.RequestID,
		"decision":    string(env.Decision),
		"action":      env.Action,
		"intent":      env.Intent,
		"confidence":  strconv.FormatFloat(env.Confidence, 'f', -1, 64),
		"processedAt": env.ProcessedAt.Format(time.RFC3339Nano),
		"payload":     string(payload),
	})
	if err != nil {
		metrics.DispatchedDecisions.WithLabelValues("stream", "error").Inc()
		return apperrors.NewDispatchFailedError("stream", err)
	}

	metrics.DispatchedDecisions.WithLabelValues("stream", "ok").Inc()
	d.logger.Debug("Decision appended to stream", map[string]interface{}{
		"stream":    d.key,
		"entryId":   id,
		"requestId": env.RequestID,
	})
	return nil
}
