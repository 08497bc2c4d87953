package models

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures for callers.
type Kind string

const (
	InvalidRequest         Kind = "InvalidRequest"
	SignatureRejected      Kind = "SignatureRejected"
	UnknownAccount         Kind = "UnknownAccount"
	InviterNotFound        Kind = "InviterNotFound"
	AlreadyBound           Kind = "AlreadyBound"
	InsufficientBalance    Kind = "InsufficientBalance"
	ExternalTransferFailed Kind = "ExternalTransferFailed"
	AlreadyCompensated     Kind = "AlreadyCompensated"
	InternalError          Kind = "InternalError"
)

// LedgerError is a typed business failure. Err keeps the underlying cause
// for logging and is never shown to callers.
type LedgerError struct {
	Kind Kind
	Msg  string
	Err  error
}

func NewError(kind Kind, msg string) *LedgerError {
	return &LedgerError{Kind: kind, Msg: msg}
}

func WrapError(kind Kind, msg string, err error) *LedgerError {
	return &LedgerError{Kind: kind, Msg: msg, Err: err}
}

// Internal hides err behind a generic message.
func Internal(err error) *LedgerError {
	return &LedgerError{Kind: InternalError, Msg: "internal error", Err: err}
}

func (e *LedgerError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is matches any LedgerError of the same kind, so sentinels below work
// with errors.Is.
func (e *LedgerError) Is(target error) bool {
	var t *LedgerError
	if !errors.As(target, &t) {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInvalidRequest         = &LedgerError{Kind: InvalidRequest}
	ErrSignatureRejected      = &LedgerError{Kind: SignatureRejected}
	ErrUnknownAccount         = &LedgerError{Kind: UnknownAccount}
	ErrInviterNotFound        = &LedgerError{Kind: InviterNotFound}
	ErrAlreadyBound           = &LedgerError{Kind: AlreadyBound}
	ErrInsufficientBalance    = &LedgerError{Kind: InsufficientBalance}
	ErrExternalTransferFailed = &LedgerError{Kind: ExternalTransferFailed}
	ErrAlreadyCompensated     = &LedgerError{Kind: AlreadyCompensated}
	ErrInternal               = &LedgerError{Kind: InternalError}
)

// KindOf reports the kind of err; anything that is not a LedgerError
// counts as InternalError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return InternalError
}

// AsLedgerError converts err into a LedgerError, hiding unknown causes.
func AsLedgerError(err error) *LedgerError {
	if err == nil {
		return nil
	}
	var le *LedgerError
	if errors.As(err, &le) {
		return le
	}
	return Internal(err)
}
