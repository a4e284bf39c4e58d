// Package worker keeps the persisted advice record in step with the ledger
// by reacting to change events from the feed.
package worker

import (
	"context"
	"log/slog"
	"time"

	"ledgerly/internal/advisor"
	"ledgerly/internal/amqp"
	"ledgerly/internal/core"
	"ledgerly/internal/log"
)

// LedgerLoader reads the current ledger. *storage.LedgerStore satisfies it.
type LedgerLoader interface {
	Load(ctx context.Context) []core.Transaction
}

// AdviceSource produces advice for a snapshot. *advisor.Service satisfies it.
type AdviceSource interface {
	Advice(ctx context.Context, txs []core.Transaction) advisor.Advice
}

// AdviceWorker generates advice for ledger snapshots announced on the feed,
// so the server finds a persisted record instead of waiting on the model.
type AdviceWorker struct {
	ledger  LedgerLoader
	advisor AdviceSource
	logger  *log.Logger
}

func NewAdviceWorker(ledger LedgerLoader, adv AdviceSource, logger *log.Logger) *AdviceWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &AdviceWorker{
		ledger:  ledger,
		advisor: adv,
		logger:  logger,
	}
}

// HandleLedgerChange processes a single change event. Events whose
// fingerprint no longer matches the stored ledger are skipped: a later event
// describes the current state. Advice failures are logged, not returned,
// since redelivery cannot make the model available.
func (w *AdviceWorker) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	txs := w.ledger.Load(ctx)
	fp := core.Fingerprint(txs)

	logger := w.logger.With(
		log.FieldTransactionID, msg.TransactionID,
		log.FieldFingerprint, msg.Fingerprint)

	if fp != msg.Fingerprint {
		logger.Op(ctx, slog.LevelDebug, log.OpConsume, "Skipping stale ledger change",
			"current_fingerprint", fp)
		return nil
	}

	start := time.Now()
	adv := w.advisor.Advice(ctx, txs)
	if adv.Fallback && len(txs) > 0 {
		logger.Op(ctx, slog.LevelWarn, log.OpAdvise, "Advice unavailable for ledger change",
			log.FieldCount, len(txs))
		return nil
	}

	logger.Op(ctx, slog.LevelInfo, log.OpAdvise, "Advice ready for ledger change",
		"op", string(msg.Op),
		log.FieldCount, len(txs),
		"cached", adv.Cached,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Reconcile makes sure the current ledger has advice. It backs up the feed
// for events lost while the worker was down.
func (w *AdviceWorker) Reconcile(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txs := w.ledger.Load(ctx)
	if len(txs) == 0 {
		return nil
	}
	adv := w.advisor.Advice(ctx, txs)
	if !adv.Cached && !adv.Fallback {
		w.logger.Op(ctx, slog.LevelInfo, log.OpAdvise, "Reconciled advice",
			log.FieldFingerprint, adv.Fingerprint,
			log.FieldCount, len(txs))
	}
	return nil
}

// RunReconciler calls Reconcile every interval until ctx is done.
func (w *AdviceWorker) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Periodic reconcile failed", log.FieldError, err)
			}
		}
	}
}
