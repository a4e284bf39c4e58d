// Package advisor serves AI advice for a ledger snapshot, reusing earlier
// answers for the same snapshot and refreshing in the background after
// mutations.
package advisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	"ledgerly/internal/log"
	"ledgerly/internal/storage"
)

// Adviser produces advice text. *gateway.Gateway satisfies it.
type Adviser interface {
	GetAdvice(ctx context.Context, txs []core.Transaction) string
}

// RecordStore persists the last good advice so it survives restarts and can
// be produced by another process.
type RecordStore interface {
	SaveAdvice(ctx context.Context, rec storage.AdviceRecord) error
	LoadAdvice(ctx context.Context) (storage.AdviceRecord, bool)
}

// Advice is one answer for one snapshot.
type Advice struct {
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generatedAt"`
	Cached      bool      `json:"cached"`
	// Fallback is set when Text is a fixed placeholder or fallback string.
	Fallback bool `json:"fallback"`
}

type Config struct {
	CacheSize      int
	CacheTTL       time.Duration
	RefreshTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		CacheSize:      32,
		CacheTTL:       10 * time.Minute,
		RefreshTimeout: 30 * time.Second,
	}
}

type Service struct {
	adviser Adviser
	store   RecordStore
	cache   *cache.LRUCache[Advice]
	group   singleflight.Group
	cfg     Config
	logger  *log.Logger
	now     func() time.Time

	// mu orders bg.Add against Close's bg.Wait.
	mu     sync.Mutex
	closed bool
	bg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the service. store may be nil.
func New(adviser Adviser, store RecordStore, cfg Config, logger *log.Logger) *Service {
	def := DefaultConfig()
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = def.RefreshTimeout
	}
	if logger == nil {
		logger = log.Default(log.ComponentAdvisor)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		adviser: adviser,
		store:   store,
		cache:   cache.NewLRUCache[Advice](cfg.CacheSize, cfg.CacheTTL),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Cache exposes the advice cache so it can be registered with a janitor.
func (s *Service) Cache() *cache.LRUCache[Advice] { return s.cache }

// Advice returns advice for txs, generating it only when neither the cache
// nor the persisted record matches the snapshot.
func (s *Service) Advice(ctx context.Context, txs []core.Transaction) Advice {
	if len(txs) == 0 {
		return Advice{Text: gateway.AdvicePlaceholder, Fingerprint: core.Fingerprint(txs), Fallback: true}
	}
	fp := core.Fingerprint(txs)

	if a, ok := s.cache.Get(fp); ok {
		a.Cached = true
		return a
	}
	if s.store != nil {
		if rec, ok := s.store.LoadAdvice(ctx); ok && rec.Fingerprint == fp {
			a := Advice{Text: rec.Text, Fingerprint: fp, GeneratedAt: rec.GeneratedAt}
			s.cache.Set(fp, a)
			a.Cached = true
			return a
		}
	}
	return s.generate(ctx, fp, txs)
}

// Refresh generates new advice for txs, ignoring anything cached.
func (s *Service) Refresh(ctx context.Context, txs []core.Transaction) Advice {
	if len(txs) == 0 {
		return s.Advice(ctx, txs)
	}
	fp := core.Fingerprint(txs)
	s.cache.Delete(fp)
	return s.generate(ctx, fp, txs)
}

// RefreshAsync refreshes advice for txs in the background. A result that
// arrives after the ledger changed again is still stored under its own
// fingerprint.
func (s *Service) RefreshAsync(txs []core.Transaction) {
	if len(txs) == 0 {
		return
	}

	snapshot := make([]core.Transaction, len(txs))
	copy(snapshot, txs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RefreshTimeout)
		defer cancel()
		a := s.Refresh(ctx, snapshot)
		s.logger.Op(ctx, slog.LevelDebug, log.OpAdvise, "Background advice refresh finished",
			log.FieldFingerprint, a.Fingerprint, "fallback", a.Fallback)
	}()
}

// Close cancels running background refreshes and waits for them to return.
func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Unlock()
	s.bg.Wait()
	return nil
}

func (s *Service) generate(ctx context.Context, fp string, txs []core.Transaction) Advice {
	v, _, shared := s.group.Do(fp, func() (any, error) {
		// Coalesced callers share the first caller's context.
		text := s.adviser.GetAdvice(ctx, txs)
		a := Advice{Text: text, Fingerprint: fp, GeneratedAt: s.now().UTC()}
		if text == gateway.AdviceFallback || text == gateway.AdvicePlaceholder {
			a.Fallback = true
			return a, nil
		}

		s.cache.Set(fp, a)
		if s.store != nil {
			rec := storage.AdviceRecord{Fingerprint: fp, Text: text, GeneratedAt: a.GeneratedAt}
			if err := s.store.SaveAdvice(ctx, rec); err != nil {
				s.logger.Op(ctx, slog.LevelWarn, log.OpSave, "Advice not persisted",
					log.FieldFingerprint, fp, log.FieldError, err)
			}
		}
		s.logger.Op(ctx, slog.LevelInfo, log.OpAdvise, "Advice generated",
			log.FieldFingerprint, fp, log.FieldCount, len(txs))
		return a, nil
	})
	a := v.(Advice)
	if shared {
		s.logger.Op(ctx, slog.LevelDebug, log.OpAdvise, "Advice request coalesced", log.FieldFingerprint, fp)
	}
	return a
}
