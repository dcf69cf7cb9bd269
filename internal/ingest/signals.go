package ingest

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
)

// WatchSignals derives the two contexts Run needs. The first signal cancels
// run; a second cancels save. stop releases both and ends the watcher.
func WatchSignals(parent context.Context, signals <-chan os.Signal, logger *zap.Logger) (run, save context.Context, stop func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	run, cancelRun := context.WithCancel(parent)
	save, cancelSave := context.WithCancel(context.WithoutCancel(parent))
	done := make(chan struct{})

	go func() {
		select {
		case <-done:
			return
		case sig := <-signals:
			logger.Warn("interrupted: saving partial progress (signal again to skip save)", zap.Stringer("signal", sig))
			cancelRun()
		}
		select {
		case <-done:
		case sig := <-signals:
			logger.Warn("exiting without save", zap.Stringer("signal", sig))
			cancelSave()
		}
	}()

	var once sync.Once
	return run, save, func() {
		once.Do(func() {
			close(done)
			cancelRun()
			cancelSave()
		})
	}
}
