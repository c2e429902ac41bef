package main

// Long-running SQS consumer for mock-PDF generation jobs:
//   MOCKPDF_SQS_QUEUE_URL=... go run ./cmd/worker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/WeDesignz/WebApp-sub000/internal/bootstrap"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
	"github.com/WeDesignz/WebApp-sub000/internal/workerproc"
)

const (
	defaultRegion = "us-east-1"
	// retryStep is the visibility delay per previous delivery of a failed message.
	retryStep = 30 * time.Second
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// poller long-polls one queue and hands each message to the processor.
type poller struct {
	client    sqsAPI
	queueURL  string
	processor workerproc.Processor
	cfg       config.WorkerConfig
}

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, cfg.LogLevel)

	if err := run(cfg); err != nil {
		telemetry.Error("worker.fatal", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	queueURL := strings.TrimSpace(cfg.QueueURL)
	if queueURL == "" {
		return errors.New("MOCKPDF_SQS_QUEUE_URL is required")
	}
	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	p := &poller{
		client:    sqs.NewFromConfig(awsCfg),
		queueURL:  queueURL,
		processor: app.BundlesService,
		cfg:       cfg.Worker,
	}
	p.run(ctx)
	return nil
}

func (p *poller) run(ctx context.Context) {
	concurrency := max(1, p.cfg.Concurrency)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"queue":              p.queueURL,
		"concurrency":        concurrency,
		"visibility_seconds": int(p.cfg.VisibilityTimeout.Seconds()),
	})

	for ctx.Err() == nil {
		resp, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(p.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(p.cfg.VisibilityTimeout.Seconds()),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			sleep(ctx, time.Second)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
			case sem <- struct{}{}:
				wg.Add(1)
				go func(m sqstypes.Message) {
					defer wg.Done()
					defer func() { <-sem }()
					p.handle(ctx, m)
				}(msg)
			}
		}
	}

	p.drain(&wg)
}

func (p *poller) drain(wg *sync.WaitGroup) {
	timeout := p.cfg.ShutdownTimeout
	telemetry.Info("worker.shutdown", map[string]any{"timeout": timeout.String()})
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": timeout.String()})
	}
}

// handle processes one message. Generation and acking ignore shutdown; drain
// bounds how long they may take.
func (p *poller) handle(ctx context.Context, msg sqstypes.Message) {
	fields := messageFields(msg)
	out := workerproc.Handle(context.WithoutCancel(ctx), p.processor, aws.ToString(msg.Body), fields)
	switch out.Disposition {
	case workerproc.Ack, workerproc.Drop:
		p.delete(context.WithoutCancel(ctx), msg, fields)
	case workerproc.Retry:
		p.backoff(context.WithoutCancel(ctx), msg, fields)
	}
}

func (p *poller) delete(ctx context.Context, msg sqstypes.Message, fields map[string]any) {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("worker.job.delete_failed", with(fields, "error", "missing receipt handle"))
		return
	}
	if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("worker.job.delete_failed", with(fields, "error", err.Error()))
	}
}

// backoff hides a failed message for longer after each delivery.
func (p *poller) backoff(ctx context.Context, msg sqstypes.Message, fields map[string]any) {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		return
	}
	delay := retryDelay(receiveCount(msg), p.cfg.MaxRetryDelay)
	if _, err := p.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(p.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: int32(delay.Seconds()),
	}); err != nil {
		telemetry.Warn("worker.job.backoff_failed", with(fields, "error", err.Error()))
		return
	}
	telemetry.Debug("worker.job.backoff", with(fields, "delay_seconds", int(delay.Seconds())))
}

// retryDelay grows linearly with the receive count up to limit. SQS caps
// visibility at 12 hours.
func retryDelay(receives int, limit time.Duration) time.Duration {
	const sqsMax = 12 * time.Hour
	if limit <= 0 || limit > sqsMax {
		limit = sqsMax
	}
	d := time.Duration(max(1, receives)) * retryStep
	return min(d, limit)
}

func messageFields(msg sqstypes.Message) map[string]any {
	return map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func with(fields map[string]any, key string, value any) map[string]any {
	out := maps.Clone(fields)
	out[key] = value
	return out
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
