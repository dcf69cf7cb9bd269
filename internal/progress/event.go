// Package progress defines the event structures emitted during an ingest run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageSitemapDone  Stage = "SITEMAP_DONE"
	StageFetchDone    Stage = "FETCH_DONE"
	StageIndexed      Stage = "INDEXED"
	StageCheckpoint   Stage = "CHECKPOINT"
	StageRunDone      Stage = "RUN_DONE"
	StageRunCancelled Stage = "RUN_CANCELLED"
	StageRunError     Stage = "RUN_ERROR"
)

// Outcome classifies what a single article fetch produced.
type Outcome string

// Fetch outcomes.
const (
	OutcomeArticle  Outcome = "article"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// NoteDryRun marks a RUN_DONE event for a run that skipped indexing.
const NoteDryRun = "dry_run"

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single component of ingest progress.
type Event struct {
	// RunID identifies the ingest run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or fetch milestone occurred.
	Stage Stage
	// Site scopes fetch events to a host label.
	Site string
	// URL is the page or sitemap URL, when relevant.
	URL string
	// Bytes carries the response size for fetches.
	Bytes int64
	// Items counts URLs discovered (sitemap), chunks written (indexed, checkpoint).
	Items int64
	// Outcome reports what a fetch produced.
	Outcome Outcome
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Dur captures latency for fetches and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunCancelled, StageRunError, StageSitemapDone:
	case StageIndexed, StageCheckpoint:
		if e.Items < 0 {
			return errors.New("items must be >= 0")
		}
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		switch e.Outcome {
		case OutcomeArticle, OutcomeRejected, OutcomeFailed:
		default:
			return fmt.Errorf("fetch done has unknown outcome %q", e.Outcome)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
