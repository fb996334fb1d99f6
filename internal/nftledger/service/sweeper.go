package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/nftledger/internal/metrics"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
)

// SweepStats reports what one sweep removed.
type SweepStats struct {
	ApprovalsPruned    int64
	DedupEntriesPruned int64
}

// Sweep deletes approvals that expired at or before ledger time and dedup
// fingerprints that fell out of the transaction window. Expired approvals
// are never honoured whether or not they have been swept.
func (l *Ledger) Sweep(ctx context.Context) (SweepStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var st SweepStats
	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.Approvals().PruneExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("prune approvals: %w", err)
		}
		st.ApprovalsPruned = n

		n, err = tx.Dedup().PruneOlderThan(ctx, l.dedupCutoff(now))
		if err != nil {
			return fmt.Errorf("prune dedup: %w", err)
		}
		st.DedupEntriesPruned = n
		return nil
	})
	if err != nil {
		metrics.SweepErrors.Inc()
		return SweepStats{}, err
	}

	metrics.ApprovalsPruned.Add(float64(st.ApprovalsPruned))
	metrics.DedupEntriesPruned.Add(float64(st.DedupEntriesPruned))
	return st, nil
}

// Sweeper periodically runs Ledger.Sweep in a background goroutine. It is
// stopped via its context or the Stop method. An interval of 0 disables it.
type Sweeper struct {
	ledger   *Ledger
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper but does not start it.
func NewSweeper(l *Ledger, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		ledger:   l,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs an immediate sweep, then repeats on the interval until ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("sweeper disabled", "interval", s.interval)
		close(s.done)
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx)

	s.logger.Info("sweeper started", "interval", s.interval)
}

// Stop signals the sweeper to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	st, err := s.ledger.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("sweep failed", "err", err)
		}
		return
	}
	if st.ApprovalsPruned > 0 || st.DedupEntriesPruned > 0 {
		s.logger.Info("sweep",
			"approvals_pruned", st.ApprovalsPruned,
			"dedup_pruned", st.DedupEntriesPruned,
		)
	}
}
