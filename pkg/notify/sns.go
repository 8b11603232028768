package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSNotifier implements Notifier using AWS SNS transactional SMS.
type SNSNotifier struct {
	client *sns.Client
	logger *slog.Logger
}

// Compile-time interface check.
var _ Notifier = (*SNSNotifier)(nil)

// NewSNSNotifier creates a notifier from an AWS configuration.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	notifier := notify.NewSNSNotifier(cfg)
func NewSNSNotifier(cfg aws.Config) *SNSNotifier {
	return &SNSNotifier{
		client: sns.NewFromConfig(cfg),
		logger: slog.Default(),
	}
}

// SendSMS implements Notifier.
func (n *SNSNotifier) SendSMS(ctx context.Context, phone, message string) error {
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		n.logger.Error("SMS send failed",
			slog.String("phone", phone),
			slog.String("error", err.Error()))
		return fmt.Errorf("sns publish: %w", err)
	}

	n.logger.Info("SMS sent", slog.String("phone", phone))
	return nil
}
