package ulog

import (
	"errors"
	"fmt"
)

// ErrorCode classifies the errors the log surfaces, per spec section 6/7.
type ErrorCode int

const (
	// Success indicates the operation completed without error.
	Success ErrorCode = 0

	// ErrLogError is the generic error: programming preconditions (nil
	// update, capacity < 2, record too large, invalid state transition).
	ErrLogError ErrorCode = iota
	// ErrLogCorrupt means the header or a slot failed validation; the
	// header has been persisted in state Corrupt and recovery is out
	// of band.
	ErrLogCorrupt
	// ErrLogConv means an update failed to decode or encode.
	ErrLogConv
)

// Error wraps an ErrorCode with a message and an optional cause, in the
// same shape the teacher's mdbx-compatible error type uses.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ulog: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("ulog: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error with a fixed message for the given code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError builds an *Error wrapping a lower-level cause.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinel errors for the transient/protocol states that are not true
// errors (section 7): busy, nil (current), and full-resync-needed carry
// no payload of their own beyond the PullResponse.Status they set, but
// ErrBusy is also returned directly by Lock() on non-blocking contention.
var (
	// ErrBusy means a non-blocking lock acquisition would have blocked.
	// Never mutates state; safe to retry later.
	ErrBusy = errors.New("ulog: busy")

	// ErrCorrupt is returned by operations that observe a corrupt
	// header. Operator intervention is required; see IsCorrupt.
	ErrCorrupt = NewError(ErrLogCorrupt, "log is corrupt")
)

// IsCorrupt reports whether err indicates on-disk log corruption.
func IsCorrupt(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrLogCorrupt
	}
	return false
}

// IsBusy reports whether err is the transient "would block" condition.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
