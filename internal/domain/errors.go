package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrExecution           = errors.New("execution error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrCancelled           = errors.New("cancelled")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnknownEndpointType = errors.New("unknown endpoint type")
	ErrUnsupportedTransfer = errors.New("unsupported transfer direction")
	ErrMissingInstanceID   = errors.New("submission has no instance id")
)

// ErrorKind is a coarse-grained categorization for errors.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindInvalidConfig  ErrorKind = "invalid_config"
	KindExecution      ErrorKind = "execution"
	KindAuthentication ErrorKind = "authentication"
	KindNetwork        ErrorKind = "network"
	KindProtocol       ErrorKind = "protocol"
	KindValidation     ErrorKind = "validation"
	KindCancelled      ErrorKind = "cancelled"
	KindAlreadyExists  ErrorKind = "already_exists"
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind ErrorKind
	Path string // Optional: relevant file path or URL
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind helps callers classify errors without depending on infra packages.
// ErrCancelled is reported as KindCancelled even when it is not wrapped.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return kind == KindCancelled && errors.Is(err, ErrCancelled)
}

// KindOf returns the kind of the outermost OpError in the chain, or
// KindExecution when err carries none.
func KindOf(err error) ErrorKind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	return KindExecution
}

func AuthError(op, path string, err error) error {
	if err == nil {
		err = ErrUnauthorized
	}
	return &OpError{Op: op, Kind: KindAuthentication, Path: path, Err: err}
}

func NetworkError(op, path string, err error) error {
	return &OpError{Op: op, Kind: KindNetwork, Path: path, Err: err}
}

func ProtocolError(op, path string, err error) error {
	return &OpError{Op: op, Kind: KindProtocol, Path: path, Err: err}
}

func ValidationError(op, path string, err error) error {
	return &OpError{Op: op, Kind: KindValidation, Path: path, Err: err}
}

// CancelledError marks a cooperative stop observed at op. It is not a failure.
func CancelledError(op string) error {
	return &OpError{Op: op, Kind: KindCancelled, Err: ErrCancelled}
}
