package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerly/internal/advisor"
	"ledgerly/internal/amqp"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	"ledgerly/internal/log"
	"ledgerly/internal/storage"
)

type countingAdviser struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (a *countingAdviser) GetAdvice(context.Context, []core.Transaction) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.reply
}

func (a *countingAdviser) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func seedLedger(t *testing.T, store *storage.LedgerStore, ids ...string) []core.Transaction {
	t.Helper()
	var txs []core.Transaction
	for _, id := range ids {
		txs = append(txs, core.Transaction{
			ID:          id,
			Amount:      decimal.NewFromInt(100),
			Type:        core.Debit,
			Category:    core.CategoryFood,
			Description: "Lunch " + id,
			Date:        time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	if err := store.Save(context.Background(), txs); err != nil {
		t.Fatal(err)
	}
	return txs
}

func newWorker(t *testing.T, reply string) (*AdviceWorker, *storage.LedgerStore, *countingAdviser) {
	t.Helper()
	store := storage.NewLedgerStore(storage.NewMemorySlots(), core.SchemaV1, log.Discard())
	adviser := &countingAdviser{reply: reply}
	svc := advisor.New(adviser, store, advisor.DefaultConfig(), log.Discard())
	t.Cleanup(func() { _ = svc.Close() })
	return NewAdviceWorker(store, svc, log.Discard()), store, adviser
}

func TestHandleLedgerChangePersistsAdvice(t *testing.T) {
	w, store, adviser := newWorker(t, "Cook at home more.")
	ctx := context.Background()
	txs := seedLedger(t, store, "a", "b")

	msg := amqp.NewLedgerChangeMessage(amqp.OpAdded, "b", len(txs), core.Fingerprint(txs))
	if err := w.HandleLedgerChange(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if adviser.Calls() != 1 {
		t.Fatalf("adviser calls = %d, want 1", adviser.Calls())
	}

	rec, ok := store.LoadAdvice(ctx)
	if !ok || rec.Fingerprint != core.Fingerprint(txs) || rec.Text != "Cook at home more." {
		t.Fatalf("advice record = %+v, %v", rec, ok)
	}

	// Redelivery of the same event is served from cache.
	if err := w.HandleLedgerChange(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if adviser.Calls() != 1 {
		t.Fatalf("adviser calls = %d after redelivery, want 1", adviser.Calls())
	}
}

func TestHandleLedgerChangeSkipsStaleEvents(t *testing.T) {
	w, store, adviser := newWorker(t, "Nice.")
	old := seedLedger(t, store, "a")
	seedLedger(t, store, "a", "b")

	msg := amqp.NewLedgerChangeMessage(amqp.OpAdded, "a", len(old), core.Fingerprint(old))
	if err := w.HandleLedgerChange(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if adviser.Calls() != 0 {
		t.Fatalf("stale event should not reach the adviser, got %d calls", adviser.Calls())
	}
}

func TestHandleLedgerChangeFallbackIsNotAnError(t *testing.T) {
	w, store, _ := newWorker(t, gateway.AdviceFallback)
	txs := seedLedger(t, store, "a")

	msg := amqp.NewLedgerChangeMessage(amqp.OpAdded, "a", 1, core.Fingerprint(txs))
	if err := w.HandleLedgerChange(context.Background(), msg); err != nil {
		t.Fatalf("fallback must not trigger redelivery: %v", err)
	}
	if _, ok := store.LoadAdvice(context.Background()); ok {
		t.Fatal("fallback text must not be persisted")
	}
}

func TestReconcile(t *testing.T) {
	w, store, adviser := newWorker(t, "Save more.")
	ctx := context.Background()

	if err := w.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	if adviser.Calls() != 0 {
		t.Fatal("empty ledger needs no advice")
	}

	seedLedger(t, store, "x")
	if err := w.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	if adviser.Calls() != 1 {
		t.Fatalf("adviser calls = %d, want 1", adviser.Calls())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := w.Reconcile(cancelled); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunReconcilerStops(t *testing.T) {
	w, store, adviser := newWorker(t, "Ok.")
	seedLedger(t, store, "x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunReconciler(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for adviser.Calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("reconciler never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
