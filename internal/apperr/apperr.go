// Package apperr classifies the failures the bot can reply with.
//
// Validation and not-found errors are shown to the user as-is. Upstream
// errors come from the CRM or the ledger backend and are logged; whether they
// reach the user depends on the caller.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: malformed message, phone or command.
	KindValidation
	// KindNotFound: no CRM contact matches.
	KindNotFound
	// KindUpstream: CRM or ledger request failed, timed out or returned an unexpected shape.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error carries a Kind plus a message safe to show in chat.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Err     error
	// Usage is an optional example appended to validation replies.
	Usage string
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithOp sets the failing operation.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithUsage attaches a usage example for the reply.
func (e *Error) WithUsage(usage string) *Error {
	e.Usage = usage
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsUpstream(err error) bool { return KindOf(err) == KindUpstream }

// UserMessage returns the chat-safe text for err: the message (and usage
// example) for a classified error, a generic line otherwise.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong, please try again later."
	}
	if e.Usage != "" {
		return e.Message + "\n" + e.Usage
	}
	return e.Message
}
