// Package memory records published notifications for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher keeps every payload in order.
type Publisher struct {
	mu       sync.RWMutex
	messages []any
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records payload and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, payload)
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of the recorded payloads.
func (p *Publisher) Messages() []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]any(nil), p.messages...)
}
