// Package services wires the ledger, the change feed and the advisor into
// the operations the HTTP layer exposes.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ledgerly/internal/advisor"
	"ledgerly/internal/amqp"
	"ledgerly/internal/analytics"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
)

// ErrDescriptionTooShort is returned by SuggestCategory for descriptions the
// categorizer is not asked about.
var ErrDescriptionTooShort = errors.New("description too short to categorize")

// Publisher sends ledger change events. *amqp.Client satisfies it.
type Publisher interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error
}

// Advisor is the advice side used by the service. *advisor.Service satisfies it.
type Advisor interface {
	Advice(ctx context.Context, txs []core.Transaction) advisor.Advice
	Refresh(ctx context.Context, txs []core.Transaction) advisor.Advice
	RefreshAsync(txs []core.Transaction)
}

// Categorizer suggests categories. *gateway.Gateway satisfies it.
type Categorizer interface {
	SuggestCategory(ctx context.Context, description string) gateway.Suggestion
}

// Order selects how Transactions sorts its result.
type Order string

const (
	OrderRecent    Order = "recent"
	OrderInsertion Order = "insertion"
)

// ParseOrder maps a query value to an Order; empty means recent.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderRecent:
		return OrderRecent, nil
	case OrderInsertion:
		return OrderInsertion, nil
	default:
		return "", fmt.Errorf("unknown order %q", s)
	}
}

// publishTimeout bounds one background publish, dial included.
const publishTimeout = 5 * time.Second

type LedgerService struct {
	repo        *ledger.Repository
	publisher   Publisher
	advisor     Advisor
	categorizer Categorizer
	closers     []io.Closer
	logger      *log.Logger

	mu     sync.Mutex
	closed bool
	bg     sync.WaitGroup
}

// NewLedgerService builds the service. publisher may be nil when the change
// feed is disabled. closers are closed, in order, by Close.
func NewLedgerService(repo *ledger.Repository, publisher Publisher, adv Advisor, cat Categorizer, logger *log.Logger, closers ...io.Closer) *LedgerService {
	if logger == nil {
		logger = log.Default(log.ComponentLedger)
	}
	return &LedgerService{
		repo:        repo,
		publisher:   publisher,
		advisor:     adv,
		categorizer: cat,
		closers:     closers,
		logger:      logger,
	}
}

// AddTransaction stores d. The change event and the advice refresh that
// follow cannot fail or delay the call.
func (s *LedgerService) AddTransaction(ctx context.Context, d core.Draft) (core.Transaction, error) {
	tx, err := s.repo.Add(ctx, d)
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterMutation(ctx, amqp.OpAdded, tx.ID)
	return tx, nil
}

// DeleteTransaction removes id. It reports false when id was unknown.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	s.afterMutation(ctx, amqp.OpDeleted, id)
	return true, nil
}

// afterMutation announces the change. With a feed the advice worker
// generates advice for the new snapshot; without one the advisor refreshes
// in the background here.
func (s *LedgerService) afterMutation(ctx context.Context, op amqp.ChangeOp, id string) {
	snapshot := s.repo.List()

	if s.publisher != nil {
		msg := amqp.NewLedgerChangeMessage(op, id, len(snapshot), core.Fingerprint(snapshot))
		s.publishAsync(context.WithoutCancel(ctx), msg)
		return
	}
	if s.advisor != nil {
		s.advisor.RefreshAsync(snapshot)
	}
}

// publishAsync keeps a slow or unreachable broker off the request path.
func (s *LedgerService) publishAsync(ctx context.Context, msg *amqp.LedgerChangeMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.publisher.PublishLedgerChange(ctx, msg); err != nil {
			s.logger.Op(ctx, slog.LevelWarn, log.OpPublish, "Ledger change not published",
				log.FieldTransactionID, msg.TransactionID, log.FieldError, err)
		}
	}()
}

// Transactions returns a snapshot of the ledger in the requested order.
func (s *LedgerService) Transactions(order Order) []core.Transaction {
	txs := s.repo.List()
	if order == OrderInsertion {
		return txs
	}
	return ledger.SortRecent(txs)
}

func (s *LedgerService) Get(id string) (core.Transaction, bool) {
	return s.repo.Get(id)
}

func (s *LedgerService) Summary() analytics.Summary {
	return analytics.Summarize(s.repo.List())
}

func (s *LedgerService) Breakdown() []analytics.CategoryShare {
	return analytics.CategoryShares(analytics.CategoryBreakdown(s.repo.List()))
}

// Advice returns advice for the current ledger; refresh skips cached answers.
func (s *LedgerService) Advice(ctx context.Context, refresh bool) advisor.Advice {
	txs := s.repo.List()
	if refresh {
		return s.advisor.Refresh(ctx, txs)
	}
	return s.advisor.Advice(ctx, txs)
}

// SuggestCategory asks for a category only when description has at least
// three non-space characters.
func (s *LedgerService) SuggestCategory(ctx context.Context, description string) (gateway.Suggestion, error) {
	if !core.CanSuggestCategory(description) {
		return gateway.Suggestion{}, ErrDescriptionTooShort
	}
	return s.categorizer.SuggestCategory(ctx, description), nil
}

// Close waits for pending publishes, then releases everything handed to
// NewLedgerService.
func (s *LedgerService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.bg.Wait()

	var errs []error
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
