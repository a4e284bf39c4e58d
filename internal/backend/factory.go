package backend

import (
	"context"
	"fmt"

	"ledgerly/internal/amqp"
	"ledgerly/internal/log"
	"ledgerly/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// dialFeed is swapped in tests.
	dialFeed func(url, exchange, queue string, logger *log.Logger) (*amqp.Client, error)
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger, dialFeed: amqp.NewClient}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		res = f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := f.attachFeed(ctx, config, res); err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	slots, err := storage.OpenSQLite(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite slots: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend", "path", config.SQLiteDBPath)
	return &BackendResult{Slots: slots, Cleanup: slots.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) *BackendResult {
	f.logger.InfoContext(ctx, "Initialized memory backend; the ledger will not survive a restart")
	return &BackendResult{Slots: storage.NewMemorySlots()}
}

// attachFeed dials the broker when configured. Without RequireFeed an
// unreachable broker only disables the feed.
func (f *DefaultFactory) attachFeed(ctx context.Context, config Config, res *BackendResult) error {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := f.dialFeed(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		if config.RequireFeed {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		f.logger.WarnContext(ctx, "AMQP unavailable, change feed disabled", log.FieldError, err)
		return nil
	}

	res.Feed = client
	prev := res.Cleanup
	res.Cleanup = func() error {
		feedErr := client.Close()
		if prev != nil {
			if err := prev(); err != nil {
				return err
			}
		}
		return feedErr
	}
	f.logger.InfoContext(ctx, "Change feed connected", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
	return nil
}
