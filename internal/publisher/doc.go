// Package publisher announces finished index rebuilds to downstream consumers.
package publisher

import "context"

// Publisher delivers a JSON-encodable payload and returns the broker message ID.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// IndexRebuilt is published after a successful full rebuild.
type IndexRebuilt struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Articles   int    `json:"articles"`
	Chunks     int    `json:"chunks"`
	Collection string `json:"collection"`
}
