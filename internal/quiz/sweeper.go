package quiz

import (
	"context"
	"time"

	"github.com/mind-engage/learnhub/internal/logger"
)

// ExpirySweeper closes timed attempts whose clients never reported back.
type ExpirySweeper struct {
	svc      *Service
	interval time.Duration
	batch    int
	log      *logger.Logger
}

func NewExpirySweeper(svc *Service, interval time.Duration, log *logger.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExpirySweeper{svc: svc, interval: interval, batch: 200, log: log.With("job", "AttemptExpiry")}
}

func (w *ExpirySweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := w.svc.ExpireOverdue(ctx, w.batch)
			if err != nil && ctx.Err() == nil {
				w.log.Error("attempt expiry failed", "error", err, "expired", n)
				continue
			}
			if n > 0 {
				w.log.Info("attempts expired", "count", n)
			}
		}
	}
}
