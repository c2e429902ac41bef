package events

import (
	"context"
	"time"
)

const (
	// TypeDownloadsInvalidated tells every open view that the downloads list changed.
	TypeDownloadsInvalidated = "downloads.invalidated"
	// TypeJobUpdated carries a job status change.
	TypeJobUpdated = "job.updated"
)

// Event is one message delivered to a user's open views.
type Event struct {
	Type   string    `json:"type"`
	JobID  string    `json:"jobId,omitempty"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// Broadcaster fans events out to every subscriber of a user.
type Broadcaster interface {
	Publish(ctx context.Context, userID string, ev Event) error
	// Subscribe returns a channel of the user's events and a func that ends the
	// subscription and closes the channel.
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }

func (Nop) Subscribe(context.Context, string) (<-chan Event, func(), error) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}, nil
}
