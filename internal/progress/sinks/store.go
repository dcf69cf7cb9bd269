package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/progress"
	"github.com/JakeFAU/tgc-rag/internal/store"
)

// StoreSink persists run progress via a store.RunRepository. Fetch and index
// events are collapsed into one counter delta per run per batch.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for repo.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

type runDelta struct {
	counters store.RunCounters
	at       time.Time
}

// Consume writes lifecycle transitions in event order and flushes counter
// deltas before any terminal transition of the same run.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	deltas := make(map[uuid.UUID]*runDelta)
	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.StartRun(ctx, runID, evt.TS); err != nil {
				return fmt.Errorf("start run: %w", err)
			}
		case progress.StageSitemapDone:
			s.accumulate(deltas, runID, evt.TS, store.RunCounters{URLs: evt.Items})
		case progress.StageFetchDone:
			s.accumulate(deltas, runID, evt.TS, fetchCounters(evt))
		case progress.StageIndexed, progress.StageCheckpoint:
			s.accumulate(deltas, runID, evt.TS, store.RunCounters{Chunks: evt.Items})
		case progress.StageRunDone, progress.StageRunCancelled, progress.StageRunError:
			if err := s.flushRun(ctx, deltas, runID); err != nil {
				return err
			}
			if err := s.finish(ctx, runID, evt); err != nil {
				return err
			}
		}
	}
	for runID := range deltas {
		if err := s.flushRun(ctx, deltas, runID); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) accumulate(deltas map[uuid.UUID]*runDelta, runID uuid.UUID, at time.Time, c store.RunCounters) {
	d := deltas[runID]
	if d == nil {
		d = &runDelta{}
		deltas[runID] = d
	}
	d.counters.URLs += c.URLs
	d.counters.Articles += c.Articles
	d.counters.Rejected += c.Rejected
	d.counters.Failed += c.Failed
	d.counters.Bytes += c.Bytes
	d.counters.Chunks += c.Chunks
	if at.After(d.at) {
		d.at = at
	}
}

func (s *StoreSink) flushRun(ctx context.Context, deltas map[uuid.UUID]*runDelta, runID uuid.UUID) error {
	d, ok := deltas[runID]
	if !ok {
		return nil
	}
	delete(deltas, runID)
	if d.counters.IsZero() {
		return nil
	}
	if err := s.repo.AddCounters(ctx, runID, d.counters, d.at); err != nil {
		return fmt.Errorf("add run counters: %w", err)
	}
	return nil
}

func (s *StoreSink) finish(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	status := store.RunCompleted
	var errMsg *string
	switch evt.Stage {
	case progress.StageRunCancelled:
		status = store.RunCancelled
	case progress.StageRunError:
		status = store.RunFailed
		if evt.Note != "" {
			note := evt.Note
			errMsg = &note
		}
	default:
		if evt.Note == progress.NoteDryRun {
			status = store.RunDryRun
		}
	}
	if err := s.repo.FinishRun(ctx, runID, evt.TS, status, errMsg); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func fetchCounters(evt progress.Event) store.RunCounters {
	c := store.RunCounters{Bytes: evt.Bytes}
	switch evt.Outcome {
	case progress.OutcomeArticle:
		c.Articles = 1
	case progress.OutcomeRejected:
		c.Rejected = 1
	case progress.OutcomeFailed:
		c.Failed = 1
	}
	return c
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
