// Package backend builds the persistence slot store and the optional change
// feed from configuration.
package backend

import (
	"context"

	"ledgerly/internal/amqp"
	"ledgerly/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Pinger is implemented by slot stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult is what the factory hands to the commands.
type BackendResult struct {
	Slots storage.Slots
	// Feed is nil when AMQP is not configured or unreachable.
	Feed    *amqp.Client
	Cleanup CleanupFunc
}

// Ready reports whether the slot store is reachable. Stores without a
// Ping method are always ready.
func (r *BackendResult) Ready(ctx context.Context) error {
	if p, ok := r.Slots.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type         BackendType
	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireFeed makes an unreachable broker a hard error (worker mode).
	RequireFeed bool
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
