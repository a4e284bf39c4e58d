// Package http provides HTTP server and handler implementations.
//
// This file turns request bodies into ledger drafts. Validation happens here
// so that the repository only ever sees well-formed input.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledgerly/internal/core"
)

// maxBodyBytes bounds request bodies; a draft is a handful of short fields.
const maxBodyBytes = 16 << 10

// inputError is a rejection of user input, reported as 422.
type inputError struct {
	field   string
	message string
}

func (e *inputError) Error() string { return e.message }

func invalid(field, message string) error {
	return &inputError{field: field, message: message}
}

// RequestBodyParser handles both JSON and form-encoded bodies. It reads the
// body once; Get works the same for either.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of r's body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if p.err == nil && len(p.body) > maxBodyBytes {
			p.err = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
		}
	}
	return p
}

// Parse decodes the body. Numbers in JSON bodies are kept as their literal
// text so amounts never pass through float64.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("decode json body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = fmt.Errorf("decode form body: %w", p.err)
	}
	return p.err
}

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters other than tab and newlines and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// ParseDraft validates the fields of a new transaction. Type defaults to
// debit and category to Other, like the entry form.
func ParseDraft(p *RequestBodyParser) (core.Draft, error) {
	if err := p.Parse(); err != nil {
		return core.Draft{}, invalid("body", "Malformed request body")
	}

	var d core.Draft

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Draft{}, invalid("amount", "Enter an amount greater than zero")
	}
	d.Amount = amount

	d.Type = core.Debit
	if v := p.Get("type"); v != "" {
		if d.Type, err = core.ParseType(v); err != nil {
			return core.Draft{}, invalid("type", "Type must be credit or debit")
		}
	}

	d.Category = core.CategoryOther
	if v := p.Get("category"); v != "" {
		c, ok := core.ParseCategory(v)
		if !ok {
			return core.Draft{}, invalid("category", fmt.Sprintf("Unknown category %q", v))
		}
		d.Category = c
	}

	// A submitted date is ignored: entries are dated when they are stored.
	d.Description = p.Get("description")

	if err := d.Validate(); err != nil {
		return core.Draft{}, draftError(err)
	}
	return d, nil
}

func draftError(err error) error {
	switch {
	case errors.Is(err, core.ErrEmptyDescription):
		return invalid("description", "Description is required")
	case errors.Is(err, core.ErrDescriptionLong):
		return invalid("description", "Description must be at most 200 characters")
	case errors.Is(err, core.ErrInvalidAmount):
		return invalid("amount", "Enter an amount greater than zero")
	case errors.Is(err, core.ErrInvalidType):
		return invalid("type", "Type must be credit or debit")
	case errors.Is(err, core.ErrInvalidCategory):
		return invalid("category", "Unknown category")
	default:
		return invalid("", err.Error())
	}
}
