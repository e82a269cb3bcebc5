package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// ErrInvalid is matched by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Error describes a structurally invalid configuration value.
type Error struct {
	Field      string
	Value      any
	Reason     string
	Suggestion string // Closest valid value, if one is close enough
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("config: %s: %s (got %v)", e.Field, e.Reason, e.Value)
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; did you mean %q?", e.Suggestion)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

func invalid(field string, value any, format string, args ...any) *Error {
	return &Error{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// suggestionThreshold is the minimum similarity for a suggestion.
const suggestionThreshold = 0.5

// suggest returns the option most similar to input, or "" if none is close.
func suggest(input string, options []string) string {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return ""
	}
	metric := metrics.NewLevenshtein()
	best, bestScore := "", 0.0
	for _, opt := range options {
		if s := strutil.Similarity(in, strings.ToLower(opt), metric); s > bestScore {
			best, bestScore = opt, s
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}
