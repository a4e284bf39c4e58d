package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/log"
)

// LedgerStore reads and writes the whole transaction collection as one JSON
// array under the schema's slot.
type LedgerStore struct {
	slots  Slots
	schema core.Schema
	logger *log.Logger
}

// AdviceRecord is the last advice text generated for a ledger fingerprint.
type AdviceRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func NewLedgerStore(slots Slots, schema core.Schema, logger *log.Logger) *LedgerStore {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	return &LedgerStore{slots: slots, schema: schema, logger: logger}
}

func (s *LedgerStore) Schema() core.Schema { return s.schema }

// Save overwrites the slot with txs.
func (s *LedgerStore) Save(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	b, err := core.EncodeJSON(txs)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	if err := s.slots.Put(ctx, s.schema.Slot, string(b)); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	return nil
}

// Load returns the persisted collection. A missing, unreadable or corrupt
// slot yields an empty collection; the cause is logged at WARN.
func (s *LedgerStore) Load(ctx context.Context) []core.Transaction {
	raw, ok, err := s.slots.Get(ctx, s.schema.Slot)
	if err != nil {
		s.logger.Op(ctx, slog.LevelWarn, log.OpLoad, "Slot unreadable, starting with an empty ledger",
			log.FieldSlot, s.schema.Slot, log.FieldError, err)
		return []core.Transaction{}
	}
	if !ok || raw == "" {
		return []core.Transaction{}
	}

	var txs []core.Transaction
	if err := json.Unmarshal([]byte(raw), &txs); err != nil {
		s.logger.Op(ctx, slog.LevelWarn, log.OpLoad, "Slot corrupt, starting with an empty ledger",
			log.FieldSlot, s.schema.Slot, log.FieldError, err)
		return []core.Transaction{}
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs
}

// SaveAdvice persists rec under the schema's advice slot.
func (s *LedgerStore) SaveAdvice(ctx context.Context, rec AdviceRecord) error {
	b, err := core.EncodeJSON(rec)
	if err != nil {
		return fmt.Errorf("encode advice: %w", err)
	}
	if err := s.slots.Put(ctx, s.schema.AdviceSlot, string(b)); err != nil {
		return fmt.Errorf("save advice: %w", err)
	}
	return nil
}

// LoadAdvice returns the persisted advice record, if any. Corrupt records are
// treated as absent.
func (s *LedgerStore) LoadAdvice(ctx context.Context) (AdviceRecord, bool) {
	raw, ok, err := s.slots.Get(ctx, s.schema.AdviceSlot)
	if err != nil || !ok {
		if err != nil {
			s.logger.WarnContext(ctx, "Advice slot unreadable", log.FieldError, err)
		}
		return AdviceRecord{}, false
	}
	var rec AdviceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Fingerprint == "" {
		return AdviceRecord{}, false
	}
	return rec, true
}
