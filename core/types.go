package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MaxPageSize bounds how many scores a single listing may return.
const MaxPageSize = 500

// Canonical maps a free-form board or player name onto the canonical key space:
// ASCII letters are lowercased and every character outside [A-Za-z0-9-] becomes a dash.
// Names differing only by case or punctuation therefore collide on purpose.
func Canonical(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 'a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// SortingOrder decides whether lower or higher scores rank better on a board.
type SortingOrder int

const (
	// Ascending boards treat lower scores as better.
	Ascending SortingOrder = iota + 1
	// Descending boards treat higher scores as better.
	Descending
)

// Stored codes. Existing boards carry these exact strings, do not change them.
const (
	codeAscending  = "ASC"
	codeDescending = "DSC"
)

// UpdateMode is the comparison a conditional score write applies against the
// current value.
type UpdateMode int

const (
	// OnlyLess replaces the stored score only with a strictly smaller one.
	OnlyLess UpdateMode = iota + 1
	// OnlyGreater replaces the stored score only with a strictly greater one.
	OnlyGreater
)

// Improves reports whether candidate replaces current under m. Stores
// without a native conditional write apply it under their own lock.
func (m UpdateMode) Improves(candidate, current float64) bool {
	switch m {
	case OnlyGreater:
		return candidate > current
	case OnlyLess:
		return candidate < current
	}
	return false
}

// ParseSortingOrder converts a stored or serialized code into a SortingOrder.
func ParseSortingOrder(code string) (SortingOrder, error) {
	switch code {
	case codeAscending:
		return Ascending, nil
	case codeDescending:
		return Descending, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrder, code)
	}
}

// Code returns the short code used both on the wire and in the store.
func (o SortingOrder) Code() string {
	switch o {
	case Ascending:
		return codeAscending
	case Descending:
		return codeDescending
	default:
		return ""
	}
}

func (o SortingOrder) String() string {
	if c := o.Code(); c != "" {
		return c
	}
	return fmt.Sprintf("SortingOrder(%d)", int(o))
}

// Valid reports whether o is one of the two known orders.
func (o SortingOrder) Valid() bool { return o == Ascending || o == Descending }

// UpdateMode returns the conditional-write comparison for this order.
func (o SortingOrder) UpdateMode() UpdateMode {
	if o == Descending {
		return OnlyGreater
	}
	return OnlyLess
}

// Reverse reports whether ranks are counted from the highest score down.
func (o SortingOrder) Reverse() bool { return o == Descending }

// Better reports whether candidate strictly improves on current.
func (o SortingOrder) Better(candidate, current float64) bool {
	return o.UpdateMode().Improves(candidate, current)
}

func (o SortingOrder) MarshalJSON() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOrder, int(o))
	}
	return json.Marshal(o.Code())
}

func (o *SortingOrder) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOrder, string(data))
	}
	parsed, err := ParseSortingOrder(code)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ValidScore rejects values the ordered set cannot rank.
func ValidScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: score must be a finite number", ErrInvalidArgument)
	}
	return nil
}

// Entry is a single (player, score) pair as returned by listings.
type Entry struct {
	Player string  `json:"name"`
	Score  float64 `json:"score"`
}

// Standing is a player's current best score and zero-based rank on a board.
type Standing struct {
	Score float64 `json:"score"`
	Rank  int64   `json:"rank"`
}

// Submission is the outcome of a score submission. Improved is false when the
// submitted value did not beat the stored best, which then stands unchanged.
type Submission struct {
	Board    string `json:"-"`
	Player   string `json:"-"`
	Standing
	Improved bool `json:"-"`
}

// Page is one slice of a board listing. Offset is where the next page starts,
// or 0 once the end of the board has been reached.
type Page struct {
	Offset int     `json:"offset"`
	Scores []Entry `json:"scores"`
}

// Created describes a newly created board. The token is only ever handed out here.
type Created struct {
	Board string       `json:"board"`
	Order SortingOrder `json:"order"`
	Token string       `json:"token"`
}
