// Package memory keeps archive notifications in process memory when no
// Pub/Sub topic is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity bounds how many notifications a Publisher retains.
const DefaultCapacity = 100

// Notice is one recorded publish. Payload is the JSON the Pub/Sub publisher
// would have sent.
type Notice struct {
	ID          string
	Event       string
	Payload     json.RawMessage
	PublishedAt time.Time
}

// Publisher retains the most recent notices, dropping the oldest past capacity.
type Publisher struct {
	mu       sync.RWMutex
	capacity int
	seq      int
	notices  []Notice
}

// New returns a Publisher retaining up to capacity notices; capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Publisher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Publisher{capacity: capacity}
}

// Publish encodes payload and records it under a sequential ID.
func (p *Publisher) Publish(_ context.Context, event string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s notification: %w", event, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	if len(p.notices) == p.capacity {
		p.notices = append(p.notices[:0], p.notices[1:]...)
	}
	p.notices = append(p.notices, Notice{ID: id, Event: event, Payload: data, PublishedAt: time.Now().UTC()})
	return id, nil
}

// Recent returns the retained notices, oldest first.
func (p *Publisher) Recent() []Notice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Notice(nil), p.notices...)
}
