package claims

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ReconcilerConfig tunes the periodic repair of records whose claims never synced.
type ReconcilerConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Scanned int
	Synced  int
	Skipped int
	Failed  int
}

// Reconciler retries the claims sync for records left with claimsUpdated=false.
type Reconciler struct {
	identities IdentityProvider
	users      UserStore
	cfg        ReconcilerConfig
	logger     *slog.Logger
}

// NewReconciler builds a Reconciler, filling in defaults for unset limits.
func NewReconciler(identities IdentityProvider, users UserStore, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{identities: identities, users: users, cfg: cfg, logger: logger}
}

// Start runs RunOnce every Interval until ctx is cancelled. A non-positive Interval disables the job.
func (r *Reconciler) Start(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		r.logger.Info("claims reconciler disabled")
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
				res, err := r.RunOnce(tickCtx)
				cancel()
				if err != nil {
					r.logger.Error("claims reconciler pass failed", slog.Any("error", err))
					continue
				}
				if res.Scanned > 0 {
					r.logger.Info("claims reconciler pass finished",
						slog.Int("scanned", res.Scanned),
						slog.Int("synced", res.Synced),
						slog.Int("skipped", res.Skipped),
						slog.Int("failed", res.Failed))
				}
			}
		}
	}()
}

// RunOnce walks every unsynced record in id order, one batch at a time.
// Per-record failures are counted, not returned, and do not block later pages.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileResult, error) {
	var (
		res                     ReconcileResult
		synced, skipped, failed atomic.Int64
		after                   string
	)
	collect := func() ReconcileResult {
		res.Synced = int(synced.Load())
		res.Skipped = int(skipped.Load())
		res.Failed = int(failed.Load())
		return res
	}

	for {
		records, err := r.users.ListUnsynced(ctx, after, r.cfg.BatchSize)
		if err != nil {
			return collect(), err
		}
		res.Scanned += len(records)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Concurrency)
		for _, record := range records {
			g.Go(func() error {
				logger := r.logger.With(slog.String("userId", record.ID), slog.String("role", string(record.Role)))
				switch outcome := syncRole(gctx, r.identities, r.users, logger, record.ID, record.Role); {
				case outcome == OutcomeSynced:
					synced.Add(1)
				case outcome.Failed():
					failed.Add(1)
				default:
					skipped.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(records) < r.cfg.BatchSize {
			return collect(), nil
		}
		if err := ctx.Err(); err != nil {
			return collect(), err
		}
		after = records[len(records)-1].ID
	}
}
