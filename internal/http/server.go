package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"ledgerly/internal/advisor"
	"ledgerly/internal/analytics"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	"ledgerly/internal/log"
	"ledgerly/internal/middleware/ratelimit"
	"ledgerly/internal/middleware/security"
	"ledgerly/internal/middleware/trace"
	"ledgerly/internal/services"
	appweb "ledgerly/web"
)

// Ledger is what the handlers need from the service layer.
// *services.LedgerService satisfies it.
type Ledger interface {
	AddTransaction(ctx context.Context, d core.Draft) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) (bool, error)
	Transactions(order services.Order) []core.Transaction
	Summary() analytics.Summary
	Breakdown() []analytics.CategoryShare
	Advice(ctx context.Context, refresh bool) advisor.Advice
	SuggestCategory(ctx context.Context, description string) (gateway.Suggestion, error)
}

// ReadyFunc reports whether the backing store can serve requests.
type ReadyFunc func(ctx context.Context) error

type Server struct {
	http.Server
	ledger    Ledger
	templates *template.Template
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	ready     ReadyFunc
	started   time.Time

	rateLimitPerMinute int
	blockSuspicious    bool

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRateLimit sets the per-client budget for /api requests.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimitPerMinute = perMinute }
}

func WithReadiness(fn ReadyFunc) Option {
	return func(s *Server) { s.ready = fn }
}

// WithBlockSuspicious rejects scanner traffic instead of only logging it.
func WithBlockSuspicious(block bool) Option {
	return func(s *Server) { s.blockSuspicious = block }
}

// NewServer configures routes and templates, returning a ready-to-run
// server. Call Shutdown to stop it and its background goroutines.
func NewServer(addr string, ledger Ledger, opts ...Option) *Server {
	s := &Server{
		ledger:  ledger,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentHTTP)
	}

	s.detector = security.NewDetector(s.blockSuspicious)
	s.tracer = trace.NewMiddleware(s.logger.WithComponent(log.ComponentTrace), s.detector.ClientIP)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: s.rateLimitPerMinute,
		Logger:            s.logger.WithComponent(log.ComponentRateLimit),
	})

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Advice requests wait on the model for up to the AI timeout.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.tracer.Handler, security.Headers(security.DefaultHeadersConfig()), s.detector.Middleware)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssets(3600)(static)).Methods(http.MethodGet)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	// Subrouters do not inherit these; without them a method mismatch is a 404.
	api.NotFoundHandler = http.HandlerFunc(notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.Use(security.NoStore, s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}))
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/transactions/{id}/delete", s.handleDeleteTransaction).Methods(http.MethodPost)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/breakdown", s.handleBreakdown).Methods(http.MethodGet)
	api.HandleFunc("/advice", s.handleAdvice).Methods(http.MethodGet)
	api.HandleFunc("/categorize", s.handleCategorize).Methods(http.MethodPost)

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	NotFoundError("Not found").Write(w)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
}

// Shutdown stops the rate limiter and then the HTTP server. Only the first
// call does anything.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

var templateFuncs = template.FuncMap{
	"inr": core.FormatINR,
	"day": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("02 Jan")
	},
	"isCredit": func(t core.TransactionType) bool { return t == core.Credit },
	"pct": func(d decimal.Decimal) string { return d.StringFixed(2) },
}
