package session

import (
	"context"
	"time"

	"github.com/mind-engage/learnhub/internal/logger"
)

// Sweeper runs Cleanup on a fixed interval until its context is cancelled.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *logger.Logger
}

func NewSweeper(store *Store, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{store: store, interval: interval, log: log.With("job", "SessionCleanup")}
}

func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	n, err := w.store.Cleanup(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("session cleanup failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.log.Info("session cleanup", "removed", n)
	}
}
