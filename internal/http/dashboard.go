package http

import (
	"bytes"
	"net/http"

	"ledgerly/internal/analytics"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	"ledgerly/internal/log"
	"ledgerly/internal/services"
)

// dashboardForm carries the entry form state back to the page after a
// rejected submission.
type dashboardForm struct {
	Error       string
	Amount      string
	Description string
	Type        string
	Category    string
}

type dashboardData struct {
	Summary      analytics.Summary
	Breakdown    []analytics.CategoryShare
	Transactions []core.Transaction
	Categories   []core.Category
	Form         dashboardForm
	// Placeholder is shown instead of fetching advice for an empty ledger.
	Placeholder string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderDashboard(w, r, http.StatusOK, dashboardForm{Type: string(core.Debit), Category: string(core.CategoryOther)})
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, form dashboardForm) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.Error("Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	txs := s.ledger.Transactions(services.OrderRecent)
	data := dashboardData{
		Summary:      s.ledger.Summary(),
		Breakdown:    s.ledger.Breakdown(),
		Transactions: txs,
		Categories:   core.SchemaV1.Categories,
		Form:         form,
	}
	if len(txs) == 0 {
		data.Placeholder = gateway.AdvicePlaceholder
	}

	// Render to a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		logger.Error("Dashboard template execution failed", log.FieldError, err, "template", "dashboard.html")
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
