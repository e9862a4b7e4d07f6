package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/goccy/go-json"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier sends events to an SQS queue
type SQSNotifier struct {
	client   sqsAPI
	queueURL string
}

// NewSQSNotifier returns a notifier sending to queueURL
func NewSQSNotifier(cfg aws.Config, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: sqs.NewFromConfig(cfg), queueURL: queueURL}
}

// Notify implements Notifier
func (s *SQSNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(string(event.Type))},
		},
	})
	if err != nil {
		return fmt.Errorf("cannot send %s to sqs: %w", event.Type, err)
	}
	return nil
}
