package replication

import (
	"context"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/logging"
)

type Ledger interface {
	Prune(ctx context.Context) (int64, error)
}

// Pruner removes expired revocation entries periodically. Deleting rows
// that are already gone is harmless, so several auth instances may prune
// the same ledger.
type Pruner struct {
	ledger   Ledger
	interval time.Duration
	logger   logging.Logger
}

func NewPruner(ledger Ledger, interval time.Duration, l logging.Logger) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{ledger: ledger, interval: interval, logger: l.With("module", "revocation_pruner")}
}

// Run prunes once immediately and then every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		n, err := p.ledger.Prune(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			p.logger.Error(ctx, "revocation prune failed", "error", err)
		case err == nil:
			p.logger.Info(ctx, "revocation prune finished", "deleted", n, "duration_ms", time.Since(start).Milliseconds())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
