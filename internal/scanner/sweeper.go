package scanner

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Sweeper invokes ScanAll on a fixed interval until its context is
// cancelled. Overlap protection is not needed here: alert inserts are
// conditional at the store, so even two concurrent sweeps cannot duplicate
// an alert.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   log.Logger
	done     chan struct{}
}

// NewSweeper creates a sweeper running svc.ScanAll every interval.
func NewSweeper(svc *Service, interval time.Duration, logger log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run blocks, sweeping on the configured cadence until ctx is cancelled.
// The first sweep runs immediately.
func (w *Sweeper) Run(ctx context.Context) {
	defer close(w.done)

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Done is closed when Run has returned.
func (w *Sweeper) Done() <-chan struct{} { return w.done }

func (w *Sweeper) sweep(ctx context.Context) {
	if _, err := w.svc.ScanAll(ctx); err != nil {
		w.logger.Error(ctx, err, "scheduled sweep failed")
	}
}
