// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSClient publishes to a single topic.
type SNSClient struct {
	client   *sns.Client
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func (s *SNSClient) TopicARN() string { return s.topicARN }

// PublishMessage sends message with string attributes and returns the
// message ID.
func (s *SNSClient) PublishMessage(ctx context.Context, message string, attributes map[string]string) (string, error) {
	out, err := s.client.Publish(ctx, BuildPublishInput(s.topicARN, message, attributes))
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}

// BuildPublishInput assembles a topic publish request. Empty attribute
// values are dropped since SNS rejects them.
func BuildPublishInput(topicARN, message string, attributes map[string]string) *sns.PublishInput {
	input := &sns.PublishInput{
		TopicArn: awssdk.String(topicARN),
		Message:  awssdk.String(message),
	}
	if len(attributes) == 0 {
		return input
	}

	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(keys))
	for _, k := range keys {
		v := attributes[k]
		if v == "" {
			continue
		}
		input.MessageAttributes[k] = types.MessageAttributeValue{
			DataType:    awssdk.String("String"),
			StringValue: awssdk.String(v),
		}
	}
	return input
}
