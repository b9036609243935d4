package core

import "fmt"

// AguidError wraps domain-specific errors with a kind tag.
type AguidError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

type ErrorKind int

const (
	ErrKindConfig ErrorKind = iota
	ErrKindDatabase
	ErrKindRuntime
	ErrKindHTTP
	ErrKindIO
)

func (e *AguidError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AguidError) Unwrap() error { return e.Cause }

func NewConfigError(msg string) error {
	return &AguidError{Kind: ErrKindConfig, Message: msg}
}

func NewRuntimeErrorf(format string, args ...any) error {
	return &AguidError{Kind: ErrKindRuntime, Message: fmt.Sprintf(format, args...)}
}

func WrapDBError(err error) error {
	return &AguidError{Kind: ErrKindDatabase, Message: "database error", Cause: err}
}

func WrapIOError(err error) error {
	return &AguidError{Kind: ErrKindIO, Message: "io error", Cause: err}
}
