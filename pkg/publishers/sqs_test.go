package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/atlas-sanctum/vrc-issuer/pkg/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSQSPublisherSendSuccess(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		typ:      TypeSQS,
		queueURL: "https://example.com/queue",
		client:   client,
		log:      logging.Nop{},
	}

	err := pub.Publish(context.Background(), NewEvent("farm-1", "abc", 201, `{"id":"cred-1"}`, nil))
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["request_id"]
	if !ok || aws.ToString(attr.StringValue) != "farm-1" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("request_id attribute missing or wrong: %#v", attr)
	}
	status := client.input.MessageAttributes["status_code"]
	if aws.ToString(status.StringValue) != "201" || aws.ToString(status.DataType) != "Number" {
		t.Fatalf("status_code attribute wrong: %#v", status)
	}
	if !strings.Contains(aws.ToString(client.input.MessageBody), `"request_id":"farm-1"`) {
		t.Fatalf("MessageBody missing request_id: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSPublisherSendError(t *testing.T) {
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://example.com/queue",
		client:   &fakeSQSClient{err: errors.New("boom")},
		log:      logging.Nop{},
	}

	if err := pub.Publish(context.Background(), Event{RequestID: "farm-1"}); err == nil {
		t.Fatalf("expected error from Publish")
	}
}
