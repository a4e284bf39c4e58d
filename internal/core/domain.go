package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

const maxDescriptionLen = 200

type (
	TransactionType string

	// Transaction is the only persisted entity. It is never mutated after
	// creation; the ledger supports append and delete only.
	Transaction struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    Category        `json:"category"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
	}

	// Draft is a transaction that has not been assigned an ID or a date yet.
	// Both are stamped by the repository at creation.
	Draft struct {
		Amount      decimal.Decimal
		Type        TransactionType
		Category    Category
		Description string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidCategory  = errors.New("invalid category")
)

func init() {
	// Slots written by the browser app store amounts as bare JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

func (t TransactionType) Validate() error {
	switch t {
	case Credit, Debit:
		return nil
	default:
		return ErrInvalidType
	}
}

// ParseType accepts "credit"/"debit" in any case, plus the form labels
// "income" and "spend".
func ParseType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "income":
		return Credit, nil
	case "debit", "spend", "spends":
		return Debit, nil
	default:
		return "", ErrInvalidType
	}
}

func (d Draft) Validate() error {
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := d.Type.Validate(); err != nil {
		return err
	}
	if !SchemaV1.HasCategory(d.Category) {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if len([]rune(d.Description)) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

// WithID turns the draft into a transaction created at at.
func (d Draft) WithID(id string, at time.Time) Transaction {
	return Transaction{
		ID:          id,
		Amount:      d.Amount,
		Type:        d.Type,
		Category:    d.Category,
		Description: d.Description,
		Date:        at.UTC(),
	}
}

// CanSuggestCategory reports whether a description is long enough to be
// worth sending to the categorizer.
func CanSuggestCategory(description string) bool {
	n := 0
	for _, r := range description {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		n++
		if n >= 3 {
			return true
		}
	}
	return false
}

// Fingerprint identifies the content of a snapshot. Transactions are
// immutable, so the ordered list of IDs is enough.
func Fingerprint(txs []Transaction) string {
	h := sha256.New()
	for _, t := range txs {
		h.Write([]byte(t.ID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
