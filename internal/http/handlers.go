package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"ledgerly/internal/analytics"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	"ledgerly/internal/log"
	"ledgerly/internal/services"
)

type transactionsResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
	Order        services.Order     `json:"order"`
}

type breakdownResponse struct {
	Categories []analytics.CategoryShare `json:"categories"`
}

// isFormPost reports whether r came from a plain HTML form, which expects a
// redirect back to the dashboard instead of JSON.
func isFormPost(r *http.Request) bool {
	return r.Method == http.MethodPost &&
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	order, err := services.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		BadRequestError("order must be recent or insertion").Write(w)
		return
	}
	txs := s.ledger.Transactions(order)
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewResponse().JSON(transactionsResponse{Transactions: txs, Count: len(txs), Order: order}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	form := isFormPost(r)

	p := NewRequestBodyParser(r)
	draft, err := ParseDraft(p)
	if err != nil {
		var ie *inputError
		if !errors.As(err, &ie) {
			ie = &inputError{message: err.Error()}
		}
		logger.Op(ctx, slog.LevelDebug, log.OpValidate, "Transaction rejected",
			"field", ie.field, log.FieldError, ie.message)
		if form {
			s.renderDashboard(w, r, http.StatusUnprocessableEntity, dashboardForm{
				Error:       ie.message,
				Amount:      p.Get("amount"),
				Description: p.Get("description"),
				Type:        p.Get("type"),
				Category:    p.Get("category"),
			})
			return
		}
		ValidationError(ie).Write(w)
		return
	}

	tx, err := s.ledger.AddTransaction(ctx, draft)
	if err != nil {
		logger.Op(ctx, slog.LevelError, log.OpCreate, "Transaction not saved", log.FieldError, err)
		InternalServerError("Could not save the transaction").Write(w)
		return
	}

	if form {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewResponse().Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		JSON(tx).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	id := mux.Vars(r)["id"]

	removed, err := s.ledger.DeleteTransaction(ctx, id)
	if err != nil {
		logger.Op(ctx, slog.LevelError, log.OpDelete, "Transaction not deleted",
			log.FieldTransactionID, id, log.FieldError, err)
		InternalServerError("Could not save the ledger").Write(w)
		return
	}

	switch {
	case isFormPost(r):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case !removed:
		NotFoundError("Transaction not found").Write(w)
	default:
		NewResponse().Status(http.StatusNoContent).Write(w)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.Summary()).Write(w)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(breakdownResponse{Categories: s.ledger.Breakdown()}).Write(w)
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	refresh := false
	switch strings.ToLower(r.URL.Query().Get("refresh")) {
	case "1", "true", "yes":
		refresh = true
	}
	NewResponse().JSON(s.ledger.Advice(r.Context(), refresh)).Write(w)
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Malformed request body").Write(w)
		return
	}

	suggestion, err := s.ledger.SuggestCategory(r.Context(), p.Get("description"))
	if errors.Is(err, services.ErrDescriptionTooShort) {
		ValidationError(&inputError{field: "description", message: "Description needs at least 3 characters"}).Write(w)
		return
	}
	if err != nil {
		InternalServerError("Could not categorize").Write(w)
		return
	}
	if suggestion.Source != gateway.SourceModel {
		log.FromContext(r.Context()).Op(r.Context(), slog.LevelDebug, log.OpCategorize, "No usable category suggestion",
			log.FieldSource, suggestion.Source.String())
	}
	NewResponse().JSON(suggestion).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
