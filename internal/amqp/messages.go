package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ChangeOp names the ledger mutation behind a change event.
type ChangeOp string

const (
	OpAdded   ChangeOp = "added"
	OpDeleted ChangeOp = "deleted"
)

// LedgerChangeMessage announces that the ledger was mutated. It carries no
// amounts or descriptions; consumers reload the ledger from its slot.
type LedgerChangeMessage struct {
	Op            ChangeOp  `json:"op"`
	TransactionID string    `json:"transaction_id"`
	Count         int       `json:"count"`
	Fingerprint   string    `json:"fingerprint"`
	Timestamp     time.Time `json:"timestamp"`
}

var errInvalidMessage = errors.New("invalid ledger change message")

func NewLedgerChangeMessage(op ChangeOp, txID string, count int, fingerprint string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Op:            op,
		TransactionID: txID,
		Count:         count,
		Fingerprint:   fingerprint,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes and checks a message body.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if (msg.Op != OpAdded && msg.Op != OpDeleted) || msg.TransactionID == "" {
		return nil, errInvalidMessage
	}
	return &msg, nil
}
