package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindNoData           Kind = "no_data"
	KindArtifactNotFound Kind = "artifact_not_found"
	KindNotFitted        Kind = "not_fitted"
	KindInvalidConfig    Kind = "invalid_config"
	KindUpstreamFetch    Kind = "upstream_fetch"
	KindSchemaMismatch   Kind = "schema_mismatch"
	KindUnknown          Kind = "unknown"
)

// Error is a typed failure surfaced to callers (kind + message)
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNoData           = &Error{Kind: KindNoData}
	ErrArtifactNotFound = &Error{Kind: KindArtifactNotFound}
	ErrNotFitted        = &Error{Kind: KindNotFitted}
	ErrInvalidConfig    = &Error{Kind: KindInvalidConfig}
	ErrUpstreamFetch    = &Error{Kind: KindUpstreamFetch}
	ErrSchemaMismatch   = &Error{Kind: KindSchemaMismatch}
)

// New creates an error of the given kind
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// Wrap creates an error of the given kind around an underlying cause
func Wrap(kind Kind, err error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
