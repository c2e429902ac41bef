// Package queue carries generation jobs from the API to the workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the payload version written by NewMessage.
const Version = 1

var (
	// ErrMissingJobID indicates a message without a job id.
	ErrMissingJobID = errors.New("missing job id")
	// ErrUnsupportedVersion indicates a payload from a newer producer.
	ErrUnsupportedVersion = errors.New("unsupported message version")
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message asks a worker to generate one mock-PDF job.
type Message struct {
	JobID      string `json:"jobId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps a job message with the current payload version.
func NewMessage(jobID, requestID string, now time.Time) Message {
	return Message{
		JobID:      jobID,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    Version,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if strings.TrimSpace(msg.JobID) == "" {
		return nil, ErrMissingJobID
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload. Version 0 is read as a legacy
// version 1 message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > Version {
		return msg, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.Version)
	}
	return msg, nil
}
