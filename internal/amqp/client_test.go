package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ledgerly/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"recoverable amqp error", &amqp091.Error{Code: 320, Reason: "forced", Recover: true}, true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestCircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "ledgerly", queueName: "ledger_changes", logger: log.Discard()}

	if client.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.mu.Lock()
	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	client.mu.Unlock()
	if client.isCircuitOpen() {
		t.Fatal("circuit should go half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", client.state)
	}

	// One failure while half-open reopens it.
	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("failure in half-open should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset failures")
	}
}

func TestPublishShortCircuits(t *testing.T) {
	client := &Client{exchangeName: "ledgerly", queueName: "ledger_changes", logger: log.Discard()}
	msg := NewLedgerChangeMessage(OpAdded, "tx-1", 1, "fp")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishLedgerChange(ctx, msg); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	if err := client.PublishLedgerChange(context.Background(), msg); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestLedgerChangeMessageJSON(t *testing.T) {
	msg := &LedgerChangeMessage{
		Op:            OpDeleted,
		TransactionID: "abc",
		Count:         2,
		Fingerprint:   "f00d",
		Timestamp:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	b, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if strings.Contains(string(b), "amount") || strings.Contains(string(b), "description") {
		t.Fatalf("message leaks ledger content: %s", b)
	}

	back, err := LedgerChangeMessageFromJSON(b)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if back.Op != msg.Op || back.TransactionID != msg.TransactionID || back.Count != msg.Count ||
		back.Fingerprint != msg.Fingerprint || !back.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("got %+v, want %+v", back, msg)
	}
}

func TestLedgerChangeMessageInvalid(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"op":"renamed","transaction_id":"x"}`,
		`{"op":"added"}`,
		`{"op":"added","transaction_id":5}`,
	} {
		if _, err := LedgerChangeMessageFromJSON([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (f *fakeAck) Ack(bool) error { f.acked++; return nil }
func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked++
	if requeue {
		f.requeued++
	}
	return nil
}

func TestDispatch(t *testing.T) {
	good, _ := NewLedgerChangeMessage(OpAdded, "tx-1", 1, "fp").ToJSON()
	ok := func(context.Context, *LedgerChangeMessage) error { return nil }
	fail := func(context.Context, *LedgerChangeMessage) error { return errors.New("busy") }

	tests := []struct {
		name    string
		body    []byte
		handler Handler
		want    fakeAck
	}{
		{"handled", good, ok, fakeAck{acked: 1}},
		{"handler error requeues", good, fail, fakeAck{nacked: 1, requeued: 1}},
		{"malformed dropped", []byte("{"), ok, fakeAck{nacked: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ack fakeAck
			dispatch(context.Background(), log.Discard(), tt.body, &ack, tt.handler)
			if ack != tt.want {
				t.Fatalf("ack = %+v, want %+v", ack, tt.want)
			}
		})
	}
}
