package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ledgerly/internal/core"
)

func newParser(contentType, body string) *RequestBodyParser {
	r := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return NewRequestBodyParser(r)
}

func TestParseDraft(t *testing.T) {
	const form = "application/x-www-form-urlencoded"
	const js = "application/json"

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     string // field name of the expected inputError
		check       func(t *testing.T, d core.Draft)
	}{
		{
			name:        "json with numeric amount keeps exact decimal",
			contentType: js,
			body:        `{"amount": 1234.10, "type": "debit", "category": "Food & Drinks", "description": "Dosa"}`,
			check: func(t *testing.T, d core.Draft) {
				if !d.Amount.Equal(decimal.RequireFromString("1234.10")) || d.Category != core.CategoryFood || d.Type != core.Debit {
					t.Fatalf("unexpected draft %+v", d)
				}
			},
		},
		{
			name:        "form defaults to debit and Other",
			contentType: form,
			body:        "amount=500&description=Auto+fare",
			check: func(t *testing.T, d core.Draft) {
				if d.Type != core.Debit || d.Category != core.CategoryOther || d.Description != "Auto fare" {
					t.Fatalf("unexpected draft %+v", d)
				}
			},
		},
		{
			name:        "form income label and lowercase category",
			contentType: form,
			body:        "amount=2000&type=income&category=income&description=Salary",
			check: func(t *testing.T, d core.Draft) {
				if d.Type != core.Credit || d.Category != core.CategoryIncome {
					t.Fatalf("unexpected draft %+v", d)
				}
			},
		},
		{
			name:        "submitted date is not an error",
			contentType: js,
			body:        `{"amount": "10", "description": "Tea", "date": "yesterday"}`,
			check: func(t *testing.T, d core.Draft) {
				if d.Description != "Tea" {
					t.Fatalf("unexpected draft %+v", d)
				}
			},
		},
		{
			name:        "control characters stripped",
			contentType: js,
			body:        `{"amount": "10", "description": "  Chai\u0000 stall "}`,
			check: func(t *testing.T, d core.Draft) {
				if d.Description != "Chai stall" {
					t.Fatalf("description = %q", d.Description)
				}
			},
		},
		{name: "missing amount", contentType: form, body: "description=Lunch", wantErr: "amount"},
		{name: "zero amount", contentType: js, body: `{"amount": 0, "description": "Lunch"}`, wantErr: "amount"},
		{name: "negative amount", contentType: form, body: "amount=-5&description=Lunch", wantErr: "amount"},
		{name: "missing description", contentType: form, body: "amount=5", wantErr: "description"},
		{name: "blank description", contentType: js, body: `{"amount": 5, "description": "   "}`, wantErr: "description"},
		{name: "long description", contentType: form, body: "amount=5&description=" + strings.Repeat("x", 201), wantErr: "description"},
		{name: "bad type", contentType: form, body: "amount=5&description=x&type=loan", wantErr: "type"},
		{name: "unknown category", contentType: form, body: "amount=5&description=x&category=Crypto", wantErr: "category"},
		{name: "malformed json", contentType: js, body: `{"amount": `, wantErr: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDraft(newParser(tt.contentType, tt.body))
			if tt.wantErr != "" {
				var ie *inputError
				if !errors.As(err, &ie) {
					t.Fatalf("expected inputError, got %v", err)
				}
				if ie.field != tt.wantErr {
					t.Fatalf("field = %q, want %q (%s)", ie.field, tt.wantErr, ie.message)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			tt.check(t, d)
		})
	}
}

func TestRequestBodyParserTooLarge(t *testing.T) {
	p := newParser("application/x-www-form-urlencoded", "description="+strings.Repeat("a", maxBodyBytes))
	if err := p.Parse(); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestRequestBodyParserEmpty(t *testing.T) {
	p := newParser("", "")
	if err := p.Parse(); err != nil {
		t.Fatal(err)
	}
	if p.Get("amount") != "" || p.IsJSON() {
		t.Fatal("empty body should yield no values")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  plain  ", "plain"},
		{"tab\there", "tab\there"},
		{"bell\a", "bell"},
		{"line\nbreak", "line\nbreak"},
		{"\x1b[31mred\x1b[0m", "[31mred[0m"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
