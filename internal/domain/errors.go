package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure coming back from the remote API or produced
// locally by a guard.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindValidation
	KindNotFound
	KindServerError
	KindNetworkError
	KindAlreadyInProgress
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindServerError:
		return "server_error"
	case KindNetworkError:
		return "network_error"
	case KindAlreadyInProgress:
		return "already_in_progress"
	default:
		return "unknown"
	}
}

var (
	// ErrNoCredential is returned when no bearer credential is available.
	ErrNoCredential = &Error{Kind: KindUnauthenticated, Message: "no credential available"}

	// ErrFirstPageFailed is returned by the listings aggregator when the
	// page that carries the page count could not be fetched.
	ErrFirstPageFailed = errors.New("first page fetch failed")

	// ErrNotFound is returned when a local lookup misses.
	ErrNotFound = errors.New("not found")
)

// Error is a classified failure. Fields carries per-field validation
// messages when Kind is KindValidation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values of the same kind, so that errors.Is works
// against sentinels such as ErrNoCredential.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// FieldMessages joins the validation messages, ordered by field name.
func (e *Error) FieldMessages(sep string) string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, m := range e.Fields[k] {
			if m = strings.TrimSpace(m); m != "" {
				msgs = append(msgs, m)
			}
		}
	}
	return strings.Join(msgs, sep)
}

// NewError builds a classified error.
func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf classifies err. Context cancellation and deadlines count as
// network failures; unclassified errors are KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetworkError
	}
	return KindUnknown
}

// AsError returns err as *Error, wrapping unclassified errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindOf(err), Err: fmt.Errorf("unclassified: %w", err)}
}
