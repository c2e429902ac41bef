// Package workerproc decides the fate of one queued generation message. The SQS
// poller and the Lambda handler share it and differ only in how they ack.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
	"github.com/WeDesignz/WebApp-sub000/internal/queue"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/metrics"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// Processor generates the artifact for one bundle job.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Disposition tells the transport what to do with a delivery.
type Disposition int

const (
	// Ack deletes a handled message.
	Ack Disposition = iota
	// Drop deletes a message that can never succeed.
	Drop
	// Retry leaves the message for redelivery.
	Retry
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Drop:
		return "drop"
	case Retry:
		return "retry"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Reasons attached to Drop and Retry outcomes.
const (
	ReasonEmptyBody    = "empty_body"
	ReasonDecode       = "decode_failed"
	ReasonMissingJobID = "missing_job_id"
	ReasonUnknownJob   = "unknown_job"
	ReasonUnpaid       = "payment_required"
	ReasonProcess      = "process_failed"
	ReasonNoProcessor  = "no_processor"
)

// MessageMeta fingerprints a body so it can be logged without its content.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// Outcome is the verdict on one delivery.
type Outcome struct {
	Disposition Disposition
	Reason      string
	Message     queue.Message
	Meta        MessageMeta
	Err         error
}

// ParseError is returned by Parse for bodies that can never be processed.
type ParseError struct {
	Reason string
	Meta   MessageMeta
	// RequestID is set when the body decoded but lacked a job id.
	RequestID string
	Err       error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes and validates a body.
func Parse(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, &ParseError{Reason: ReasonEmptyBody, Meta: meta}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, &ParseError{Reason: ReasonDecode, Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return msg, meta, &ParseError{Reason: ReasonMissingJobID, Meta: meta, RequestID: msg.RequestID, Err: queue.ErrMissingJobID}
	}
	return msg, meta, nil
}

// Handle parses body, runs the processor and logs the verdict. fields carries
// transport details such as the SQS message id and receive count.
func Handle(ctx context.Context, p Processor, body string, fields map[string]any) Outcome {
	metrics.IncWorkerJobsReceived()

	msg, meta, err := Parse(body)
	if err != nil {
		var perr *ParseError
		errors.As(err, &perr)
		out := Outcome{Disposition: Drop, Reason: perr.Reason, Message: msg, Meta: meta, Err: err}
		report(out, fields)
		return out
	}

	out := Outcome{Message: msg, Meta: meta}
	telemetry.Info("worker.job.received", logFields(out, fields))

	switch err := process(ctx, p, msg); {
	case err == nil:
		out.Disposition = Ack
	case p == nil:
		out.Disposition, out.Reason, out.Err = Retry, ReasonNoProcessor, err
	case errors.Is(err, bundles.ErrNotFound):
		out.Disposition, out.Reason, out.Err = Drop, ReasonUnknownJob, err
	case errors.Is(err, bundles.ErrPaymentRequired):
		// Capture enqueues the job again once it is paid.
		out.Disposition, out.Reason, out.Err = Drop, ReasonUnpaid, err
	default:
		out.Disposition, out.Reason, out.Err = Retry, ReasonProcess, err
	}
	report(out, fields)
	return out
}

func process(ctx context.Context, p Processor, msg queue.Message) error {
	if p == nil {
		return errors.New("bundle processor not configured")
	}
	return p.Process(bundles.WithRequestID(ctx, msg.RequestID), msg.JobID)
}

func report(out Outcome, fields map[string]any) {
	f := logFields(out, fields)
	switch out.Disposition {
	case Ack:
		telemetry.Info("worker.job.completed", f)
		metrics.IncWorkerJobsCompleted()
	case Drop:
		telemetry.Error("worker.job.dropped", f)
		metrics.IncWorkerJobsDeletedUnrecoverable()
	case Retry:
		telemetry.Error("worker.job.failed", f)
		metrics.IncWorkerJobsFailed()
	}
}

func logFields(out Outcome, extra map[string]any) map[string]any {
	f := make(map[string]any, len(extra)+6)
	maps.Copy(f, extra)
	if out.Message.JobID != "" {
		f["job_id"] = out.Message.JobID
	}
	if out.Message.RequestID != "" {
		f["request_id"] = out.Message.RequestID
	}
	if out.Reason != "" {
		f["reason"] = out.Reason
		f["body_len"] = out.Meta.BodyLen
		if out.Meta.BodySHA != "" {
			f["body_sha256"] = out.Meta.BodySHA
		}
	}
	if out.Err != nil {
		f["error"] = out.Err.Error()
	}
	return f
}
