package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	return &sqs.SendMessageOutput{}, f.err
}

func TestSQSClientSendEncodesBody(t *testing.T) {
	fake := &fakeSender{}
	c := newSQSClient(fake, "https://sqs.local/queue")

	require.NoError(t, c.Send(context.Background(), Message{JobID: "job-1", RequestID: "req-1", Version: 1}))
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(fake.input.QueueUrl))
	assert.Contains(t, aws.ToString(fake.input.MessageBody), `"jobId":"job-1"`)
	assert.Equal(t, "job-1", aws.ToString(fake.input.MessageAttributes["jobId"].StringValue))
	assert.Equal(t, "req-1", aws.ToString(fake.input.MessageAttributes["requestId"].StringValue))
	assert.Nil(t, fake.input.MessageGroupId)
}

func TestSQSClientSendSetsFIFOFields(t *testing.T) {
	fake := &fakeSender{}
	c := newSQSClient(fake, "https://sqs.local/jobs.fifo")

	require.NoError(t, c.Send(context.Background(), Message{JobID: "job-2"}))
	assert.Equal(t, "job-2", aws.ToString(fake.input.MessageGroupId))
	assert.Equal(t, "job-2", aws.ToString(fake.input.MessageDeduplicationId))
	_, hasRequestID := fake.input.MessageAttributes["requestId"]
	assert.False(t, hasRequestID)
}

func TestSQSClientSendWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	c := newSQSClient(&fakeSender{err: boom}, "q")
	assert.ErrorIs(t, c.Send(context.Background(), Message{JobID: "job-1"}), boom)
}

func TestSQSClientSendRejectsMissingJobID(t *testing.T) {
	fake := &fakeSender{}
	err := newSQSClient(fake, "q").Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrMissingJobID)
	assert.Nil(t, fake.input)
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	_, err := NewSQSClient(context.Background(), "", " ")
	assert.Error(t, err)
}
