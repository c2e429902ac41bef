package events

import (
	"context"
	"sync"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

const subscriberBuffer = 16

type memorySub struct {
	ch   chan Event
	once sync.Once
}

// Memory is an in-process Broadcaster. Slow subscribers lose events rather
// than block publishers.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySub]struct{}
}

// NewMemory constructs an empty in-process broadcaster.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[*memorySub]struct{})}
}

func (m *Memory) Publish(ctx context.Context, userID string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			telemetry.Warn("events.dropped", map[string]any{"user_id": userID, "type": ev.Type, "job_id": ev.JobID})
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sub := &memorySub{ch: make(chan Event, subscriberBuffer)}
	m.mu.Lock()
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[*memorySub]struct{})
	}
	m.subs[userID][sub] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			m.mu.Lock()
			delete(m.subs[userID], sub)
			if len(m.subs[userID]) == 0 {
				delete(m.subs, userID)
			}
			m.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel, nil
}
