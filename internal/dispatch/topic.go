package dispatch

import (
	"context"
	"encoding/json"

	apperrors "viora-nlu/internal/common/errors"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/common/metrics"
)

// TopicPublisher is satisfied by aws.SNSClient.
type TopicPublisher interface {
	PublishMessage(ctx context.Context, message string, attributes map[string]string) (string, error)
}

// TopicDispatcher publishes envelopes to a topic with decision, action and
// intent as message attributes for subscription filtering.
type TopicDispatcher struct {
	publisher TopicPublisher
	logger    logger.Logger
}

func NewTopicDispatcher(publisher TopicPublisher, log logger.Logger) *TopicDispatcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &TopicDispatcher{publisher: publisher, logger: log}
}

func (d *TopicDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return apperrors.NewDispatchFailedError("topic", err)
	}

	messageID, err := d.publisher.PublishMessage(ctx, string(payload), map[string]string{
		"decision": string(env.Decision),
		"action":   env.Action,
		"intent":   env.Intent,
	})
	if err != nil {
		metrics.DispatchedDecisions.WithLabelValues("topic", "error").Inc()
		return apperrors.NewDispatchFailedError("topic", err)
	}

	metrics.DispatchedDecisions.WithLabelValues("topic", "ok").Inc()
	d.logger.Debug("Decision published", map[string]interface{}{
		"messageId": messageID,
		"requestId": env.RequestID,
	})
	return nil
}
