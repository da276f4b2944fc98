// Package archerr implements the tagged error-kind taxonomy of §7: a
// small enum carried alongside the usual Go error chain so the worker
// pool can decide retryable vs. permanent without re-parsing strings at
// every layer, while still falling back to the permanent-failure
// substring predicate for errors that cross a subprocess boundary as
// plain text.
package archerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the taxonomy of §7.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindRateLimited        Kind = "rate_limited"
	KindTimeout            Kind = "timeout"
	KindNetwork            Kind = "network"
	KindExternalTool       Kind = "external_tool"
	KindParseError         Kind = "parse_error"
	KindStorageError       Kind = "storage_error"
	KindInvariantViolation Kind = "invariant_violation"
)

// Error wraps an underlying cause with a Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Msg: msg, Err: err} }

// permanentSubstrings are matched case-insensitively against an error's
// rendered message when no typed Kind is available (e.g. a subprocess's
// stderr, or an error surfaced from deep inside a third-party client).
var permanentSubstrings = []string{
	"404",
	"not found",
	"deleted",
	"removed",
	"unavailable",
	"private",
	"401",
	"403",
	"unauthorized",
	"forbidden",
}

// IsPermanent implements the permanent-failure predicate used by the
// worker pool to choose `failed` vs `skipped` (§4.2 failure policy, §7
// propagation policy).
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var ae *Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindNotFound, KindUnauthorized:
			return true
		case KindRateLimited, KindTimeout, KindNetwork, KindStorageError:
			return false
		case KindExternalTool, KindParseError:
			return matchesPermanentSubstring(err.Error())
		case KindInvariantViolation:
			// Fatal at the job level, but not the "skip forever" permanent
			// classification -- it still counts against the retry budget.
			return false
		}
	}

	return matchesPermanentSubstring(err.Error())
}

func matchesPermanentSubstring(msg string) bool {
	lower := strings.ToLower(msg)
	for _, s := range permanentSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
