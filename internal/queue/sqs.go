package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
)

// SQSQueue serves a channel out of an AWS SQS queue. Visibility
// timeouts and dead-letter redrive are configured on the queue itself,
// so the receive path only has to long-poll and ack.
type SQSQueue struct {
	client   *sqs.SQS
	queueURL string
}

var _ Queue = (*SQSQueue)(nil)

func NewSQSQueue(region, queueName string) (*SQSQueue, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "create SQS client")
	}

	client := sqs.New(sess)
	out, err := client.GetQueueUrl(&sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
	if err != nil {
		return nil, errors.Wrapf(err, "resolve queue %s", queueName)
	}

	return &SQSQueue{client: client, queueURL: aws.StringValue(out.QueueUrl)}, nil
}

func (q *SQSQueue) Send(ctx context.Context, body []byte) error {
	_, err := q.client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return errors.Wrap(err, "sending message")
}

func (q *SQSQueue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	out, err := q.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: aws.Int64(1),
		WaitTimeSeconds:     aws.Int64(int64(wait.Seconds())),
		AttributeNames:      []*string{aws.String(sqs.MessageSystemAttributeNameApproximateReceiveCount)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "receiving message")
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	m := out.Messages[0]
	receiveCount := 0
	if attr, ok := m.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount]; ok {
		receiveCount, _ = strconv.Atoi(aws.StringValue(attr))
	}

	return &Message{
		ID:           aws.StringValue(m.MessageId),
		Receipt:      aws.StringValue(m.ReceiptHandle),
		Body:         []byte(aws.StringValue(m.Body)),
		ReceiveCount: receiveCount,
	}, nil
}

func (q *SQSQueue) Ack(ctx context.Context, msg *Message) error {
	_, err := q.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	return errors.Wrap(err, "acking message")
}
