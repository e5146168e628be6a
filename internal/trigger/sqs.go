package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

// SQSAPI is the subset of the SQS client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSPublisher publishes jobs to an SQS queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Publish implements Publisher. Unlike a fire-and-forget publish, the
// caller learns whether SQS accepted the job.
func (p *SQSPublisher) Publish(ctx context.Context, j Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	body, err := j.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("publish %s to sqs: %w", j.Kind, err)
	}
	return nil
}

// SQSConsumer long-polls a queue and hands each job to a Handler. A
// message is deleted once handled or found undecodable; a failed Handle
// leaves it for redelivery after the visibility timeout.
type SQSConsumer struct {
	client   SQSAPI
	queueURL string
	handler  Handler
	// WaitSeconds is the long-poll duration.
	WaitSeconds int32
	// RetryDelay is the pause after a receive error.
	RetryDelay time.Duration

	done chan struct{}
	log  *logger.Logger
}

// NewSQSConsumer creates a consumer for queueURL.
func NewSQSConsumer(client SQSAPI, queueURL string, handler Handler) *SQSConsumer {
	return &SQSConsumer{
		client:      client,
		queueURL:    queueURL,
		handler:     handler,
		WaitSeconds: 20,
		RetryDelay:  5 * time.Second,
		done:        make(chan struct{}),
		log:         logger.Named("sqs-consumer"),
	}
}

// Start begins polling in the background.
func (c *SQSConsumer) Start(ctx context.Context) {
	c.log.Info("sqs consumer started", "queue", c.queueURL)
	go c.poll(ctx)
}

// Stop ends polling after the current receive returns.
func (c *SQSConsumer) Stop() {
	close(c.done)
}

func (c *SQSConsumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}
		if err := c.ReceiveOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("sqs receive failed", "error", err)
			select {
			case <-time.After(c.RetryDelay):
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}
	}
}

// ReceiveOnce performs one receive and processes what it returns.
func (c *SQSConsumer) ReceiveOnce(ctx context.Context) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     c.WaitSeconds,
	})
	if err != nil {
		return err
	}

	for _, msg := range out.Messages {
		j, err := DecodeJob(aws.ToString(msg.Body))
		if err != nil {
			c.log.Warn("dropping undecodable message", "message_id", aws.ToString(msg.MessageId), "error", err)
			c.deleteMessage(ctx, msg.ReceiptHandle)
			continue
		}
		if err := c.handler.Handle(ctx, j); err != nil {
			c.log.Error("job failed, leaving for redelivery", "job_id", j.ID, "kind", j.Kind, "error", err)
			continue
		}
		c.deleteMessage(ctx, msg.ReceiptHandle)
	}
	return nil
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		c.log.Warn("sqs delete failed", "error", err)
	}
}
