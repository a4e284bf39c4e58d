package gateway

import "ledgerly/internal/core"

// Source says where a suggested category came from.
type Source int

const (
	// SourceModel: the generator replied with a category from the set.
	SourceModel Source = iota
	// SourceFallback: the generator failed; the category is Other.
	SourceFallback
	// SourceRejected: the reply named no known category and carries none.
	SourceRejected
)

func (s Source) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceFallback:
		return "fallback"
	case SourceRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Suggestion struct {
	Category core.Category `json:"category,omitempty"`
	Source   Source        `json:"source"`
	// Raw is the unparsed reply, kept for logging.
	Raw string `json:"-"`
}

// OK reports whether the suggestion carries a usable category.
func (s Suggestion) OK() bool {
	return s.Source != SourceRejected && s.Category != ""
}

// Apply returns the category to use given the one currently selected.
func (s Suggestion) Apply(current core.Category) core.Category {
	if !s.OK() {
		return current
	}
	return s.Category
}
