// Package ledger owns the in-memory transaction collection and keeps it in
// step with its persisted slot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgerly/internal/core"
	"ledgerly/internal/log"
)

// Store is the persistence side of the repository.
type Store interface {
	Save(ctx context.Context, txs []core.Transaction) error
	Load(ctx context.Context) []core.Transaction
}

// ErrIDExhausted is returned when no unused id could be generated.
var ErrIDExhausted = errors.New("could not allocate a unique transaction id")

const maxIDAttempts = 8

// Repository is the single owner of the transaction collection. Mutations
// are serialized and saved under the same lock, so the persisted order is
// the mutation order.
type Repository struct {
	mu     sync.RWMutex
	txs    []core.Transaction
	index  map[string]int
	store  Store
	newID  func() string
	now    func() time.Time
	logger *log.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithIDGenerator replaces the uuid generator. Used by tests.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) { r.newID = gen }
}

// WithClock replaces time.Now for stamping new entries.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// Open loads the persisted collection. It never fails: an absent or corrupt
// slot gives an empty ledger. Entries repeating an earlier id are dropped.
func Open(ctx context.Context, store Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default(log.ComponentLedger)
	}

	loaded := store.Load(ctx)
	r.txs = make([]core.Transaction, 0, len(loaded))
	r.index = make(map[string]int, len(loaded))
	dropped := 0
	for _, tx := range loaded {
		if _, dup := r.index[tx.ID]; dup || tx.ID == "" {
			dropped++
			continue
		}
		r.index[tx.ID] = len(r.txs)
		r.txs = append(r.txs, tx)
	}
	if dropped > 0 {
		r.logger.Op(ctx, slog.LevelWarn, log.OpLoad, "Dropped entries with missing or duplicate ids",
			log.FieldCount, dropped)
	}
	r.logger.Op(ctx, slog.LevelInfo, log.OpLoad, "Ledger loaded", log.FieldCount, len(r.txs))
	return r
}

// Add stores a new entry built from d and returns it with its assigned id.
// If the save fails the entry is not kept.
func (r *Repository) Add(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.uniqueID()
	if err != nil {
		return core.Transaction{}, err
	}
	tx := d.WithID(id, r.now())

	r.txs = append(r.txs, tx)
	if err := r.store.Save(ctx, r.txs); err != nil {
		r.txs = r.txs[:len(r.txs)-1]
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	r.index[id] = len(r.txs) - 1

	r.logger.Op(ctx, slog.LevelInfo, log.OpCreate, "Transaction added",
		log.NewFields().WithTransaction(tx.ID, tx.Amount, string(tx.Type), string(tx.Category)).ToSlice()...)
	return tx, nil
}

// Delete removes the entry with id. Deleting an unknown id is a no-op that
// reports false and does not touch the slot.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return false, nil
	}

	next := make([]core.Transaction, 0, len(r.txs)-1)
	next = append(next, r.txs[:pos]...)
	next = append(next, r.txs[pos+1:]...)
	if err := r.store.Save(ctx, next); err != nil {
		return false, fmt.Errorf("delete transaction %s: %w", id, err)
	}

	r.txs = next
	r.reindex()
	r.logger.Op(ctx, slog.LevelInfo, log.OpDelete, "Transaction deleted", log.FieldTransactionID, id)
	return true, nil
}

// List returns a copy of the collection in insertion order.
func (r *Repository) List() []core.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Transaction, len(r.txs))
	copy(out, r.txs)
	return out
}

func (r *Repository) Get(id string) (core.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index[id]
	if !ok {
		return core.Transaction{}, false
	}
	return r.txs[pos], true
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.txs)
}

// uniqueID must be called with r.mu held.
func (r *Repository) uniqueID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := r.newID()
		if _, taken := r.index[id]; !taken && id != "" {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

func (r *Repository) reindex() {
	r.index = make(map[string]int, len(r.txs))
	for i, tx := range r.txs {
		r.index[tx.ID] = i
	}
}

// SortRecent returns a copy of txs ordered newest first. Entries with equal
// dates keep their relative order reversed, so the last added comes first.
func SortRecent(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}
