package common_errors

import (
	"golang.org/x/xerrors"
)

var (
	ErrTransientNetwork        = xerrors.New("transient network error")
	ErrContinuityViolation     = xerrors.New("continuity violation")
	ErrRetryableProcessing     = xerrors.New("retryable processing error")
	ErrFatalProcessing         = xerrors.New("fatal processing error")
	ErrUnauthenticated         = xerrors.New("stream rejected credentials")
	ErrReconnectExhausted      = xerrors.New("reconnect retries exhausted")
	ErrChainIDMismatch         = xerrors.New("chain id mismatch")
	ErrStreamEnded             = xerrors.New("stream reached ending version")
	ErrStreamTimeout           = xerrors.New("stream item timeout")
	ErrEmptyBatch              = xerrors.New("batch cannot be empty")
	ErrOverlappingRange        = xerrors.New("completion range overlaps committed or pending work")
	ErrInvalidStateTransition  = xerrors.New("invalid state transition")
	ErrUnrecognizedSerdeFormat = xerrors.New("Unrecognized serde format")
	ErrInvalidConfig           = xerrors.New("invalid config")
	ErrUnknownProcessor        = xerrors.New("unknown processor")
)

type classifiedError struct {
	class error
	err   error
}

func (e *classifiedError) Error() string {
	return e.class.Error() + ": " + e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func (e *classifiedError) Is(target error) bool {
	return target == e.class
}

// Retryable marks err as a processing failure that a worker may retry.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrRetryableProcessing, err: err}
}

// Fatal marks err as a processing failure that must halt the job.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrFatalProcessing, err: err}
}

// Transient marks err as a network failure absorbed by reconnecting.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrTransientNetwork, err: err}
}

func IsRetryable(err error) bool {
	return xerrors.Is(err, ErrRetryableProcessing)
}

func IsTransientNetwork(err error) bool {
	return xerrors.Is(err, ErrTransientNetwork)
}

func IsStreamEnded(err error) bool {
	return xerrors.Is(err, ErrStreamEnded)
}

// IsFatal reports errors that halt the job instead of being retried.
func IsFatal(err error) bool {
	return xerrors.Is(err, ErrFatalProcessing) ||
		xerrors.Is(err, ErrContinuityViolation) ||
		xerrors.Is(err, ErrUnauthenticated) ||
		xerrors.Is(err, ErrReconnectExhausted) ||
		xerrors.Is(err, ErrChainIDMismatch) ||
		xerrors.Is(err, ErrOverlappingRange)
}
