package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/feedstore/internal/state"
)

// TxError reports an update that did not commit.
//
// In every case the committed snapshot and the durable log are unchanged.
type TxError struct {
	// Code identifies the error category.
	Code TxErrorCode

	// Kind is the command that failed, when known.
	Kind state.Kind

	// Err is the underlying cause.
	Err error
}

// TxErrorCode categorizes transaction errors.
type TxErrorCode string

const (
	// ErrCodeAborted indicates the update's computation failed: an invariant
	// or referential check rejected it, or it panicked.
	ErrCodeAborted TxErrorCode = "ABORTED"

	// ErrCodeLogWrite indicates the durable append failed.
	ErrCodeLogWrite TxErrorCode = "LOG_WRITE"

	// ErrCodeClosed indicates the engine has been closed.
	ErrCodeClosed TxErrorCode = "CLOSED"
)

// Error implements the error interface.
func (e *TxError) Error() string {
	switch {
	case e.Kind != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

// Unwrap returns the underlying cause.
func (e *TxError) Unwrap() error {
	return e.Err
}

// IsAbort returns true if the error is an aborted transaction.
// Uses errors.As to handle wrapped errors.
func IsAbort(err error) bool {
	return hasCode(err, ErrCodeAborted)
}

// IsLogWrite returns true if the error is a failed durable append.
func IsLogWrite(err error) bool {
	return hasCode(err, ErrCodeLogWrite)
}

// IsClosed returns true if the error came from a closed engine.
func IsClosed(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

func hasCode(err error, code TxErrorCode) bool {
	var te *TxError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// CorruptLogError reports a log that cannot be recovered without losing
// every committed update: there is no usable checkpoint and the first
// entry is damaged. Open with WithForceRecover to start empty instead.
type CorruptLogError struct {
	// Seq is the first damaged entry or checkpoint.
	Seq int64

	// Err describes the damage.
	Err error
}

// Error implements the error interface.
func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt log at seq %d: %v", e.Seq, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CorruptLogError) Unwrap() error {
	return e.Err
}

// IsCorruptLog returns true if the error is a CorruptLogError.
func IsCorruptLog(err error) bool {
	var ce *CorruptLogError
	return errors.As(err, &ce)
}

var errClosed = &TxError{Code: ErrCodeClosed, Err: errors.New("engine closed")}
