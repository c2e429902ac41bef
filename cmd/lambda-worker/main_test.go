package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
)

type stubProcessor map[string]error

func (s stubProcessor) Process(_ context.Context, jobID string) error {
	return s[jobID]
}

func TestHandleBatchReportsOnlyRetryableRecords(t *testing.T) {
	p := stubProcessor{
		"job-fail":    errors.New("storage unavailable"),
		"job-missing": bundles.ErrNotFound,
	}
	records := []events.SQSMessage{
		{MessageId: "m-ok", Body: `{"jobId":"job-ok","version":1}`},
		{MessageId: "m-fail", Body: `{"jobId":"job-fail","version":1}`, Attributes: map[string]string{"ApproximateReceiveCount": "2"}},
		{MessageId: "m-missing", Body: `{"jobId":"job-missing","version":1}`},
		{MessageId: "m-garbage", Body: "not json"},
	}

	resp := handleBatch(context.Background(), p, records)
	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "m-fail"}}, resp.BatchItemFailures)
}

func TestFailAllMarksEveryRecord(t *testing.T) {
	got := failAll([]events.SQSMessage{{MessageId: "a"}, {MessageId: "b"}})
	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "a"}, {ItemIdentifier: "b"}}, got)
}

func TestRecordFields(t *testing.T) {
	f := recordFields(events.SQSMessage{MessageId: "m", Attributes: map[string]string{"ApproximateReceiveCount": "4"}})
	assert.Equal(t, map[string]any{"sqs_message_id": "m", "receive_count": 4}, f)
}
