package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/WeDesignz/WebApp-sub000/internal/bootstrap"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
	"github.com/WeDesignz/WebApp-sub000/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, cfg.LogLevel)
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		return events.SQSEventResponse{BatchItemFailures: failAll(event.Records)}, initErr
	}
	return handleBatch(ctx, app.BundlesService, event.Records), nil
}

// handleBatch reports only retryable records back to SQS. Acked and dropped
// records are deleted by the partial batch response.
func handleBatch(ctx context.Context, p workerproc.Processor, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		out := workerproc.Handle(ctx, p, record.Body, recordFields(record))
		if out.Disposition == workerproc.Retry {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func recordFields(record events.SQSMessage) map[string]any {
	fields := map[string]any{"sqs_message_id": record.MessageId}
	if n, err := strconv.Atoi(record.Attributes["ApproximateReceiveCount"]); err == nil {
		fields["receive_count"] = n
	}
	return fields
}

func failAll(records []events.SQSMessage) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0, len(records))
	for _, record := range records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
