// Package mgmterror builds NETCONF rpc-error values per RFC 6241 §4.3 and
// Appendix A. Dispatcher-facing code constructs one of these whenever an
// operation cannot complete, and the transport adapter marshals them
// straight into an rpc-reply's error-info.
package mgmterror

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorType is the RFC 6241 error-type enumeration (§4.3).
type ErrorType string

const (
	TypeTransport  ErrorType = "transport"
	TypeRPC        ErrorType = "rpc"
	TypeProtocol   ErrorType = "protocol"
	TypeApplication ErrorType = "application"
)

// ErrorTag is the RFC 6241 Appendix A error-tag enumeration.
type ErrorTag string

const (
	TagInUse               ErrorTag = "in-use"
	TagInvalidValue        ErrorTag = "invalid-value"
	TagTooBig              ErrorTag = "too-big"
	TagMissingAttribute    ErrorTag = "missing-attribute"
	TagBadAttribute        ErrorTag = "bad-attribute"
	TagUnknownAttribute    ErrorTag = "unknown-attribute"
	TagMissingElement      ErrorTag = "missing-element"
	TagBadElement          ErrorTag = "bad-element"
	TagUnknownElement      ErrorTag = "unknown-element"
	TagUnknownNamespace    ErrorTag = "unknown-namespace"
	TagAccessDenied        ErrorTag = "access-denied"
	TagLockDenied          ErrorTag = "lock-denied"
	TagResourceDenied      ErrorTag = "resource-denied"
	TagRollbackFailed      ErrorTag = "rollback-failed"
	TagDataExists          ErrorTag = "data-exists"
	TagDataMissing         ErrorTag = "data-missing"
	TagOperationNotSupported ErrorTag = "operation-not-supported"
	TagOperationFailed     ErrorTag = "operation-failed"
	TagPartialOperation    ErrorTag = "partial-operation"
	TagMalformedMessage    ErrorTag = "malformed-message"
)

// Severity is always "error" per RFC 6241; the field is carried for
// completeness since the wire format requires it.
type Severity string

const SeverityError Severity = "error"

// Info is a free-form name/value pair placed inside error-info.
type Info struct {
	Name  string
	Value string
}

// Error is a single NETCONF rpc-error element.
type Error struct {
	Type     ErrorType
	Tag      ErrorTag
	Severity Severity
	AppTag   string
	Path     string
	Message  string
	Info     []Info
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s (%s): %s [%s]", e.Tag, e.Type, e.Message, e.Path)
	}
	return fmt.Sprintf("%s (%s): %s", e.Tag, e.Type, e.Message)
}

func newError(typ ErrorType, tag ErrorTag, msg string) *Error {
	return &Error{Type: typ, Tag: tag, Severity: SeverityError, Message: msg}
}

// WithPath attaches an instance-identifier error-path and returns e.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithInfo appends a name/value pair to error-info and returns e.
func (e *Error) WithInfo(name, value string) *Error {
	e.Info = append(e.Info, Info{Name: name, Value: value})
	return e
}

// Constructors below mirror the operations that spec §7 names explicitly;
// each fixes the error-type required by RFC 6241 for that tag so callers
// cannot accidentally pair a tag with the wrong type.

func NewInvalidValue(msg string) *Error {
	return newError(TypeApplication, TagInvalidValue, msg)
}

func NewMissingElement(element string) *Error {
	return newError(TypeProtocol, TagMissingElement, fmt.Sprintf("missing element: %s", element)).
		WithInfo("bad-element", element)
}

func NewBadElement(element string) *Error {
	return newError(TypeProtocol, TagBadElement, fmt.Sprintf("bad element: %s", element)).
		WithInfo("bad-element", element)
}

func NewUnknownElement(element string) *Error {
	return newError(TypeProtocol, TagUnknownElement, fmt.Sprintf("unknown element: %s", element)).
		WithInfo("bad-element", element)
}

func NewUnknownNamespace(ns string) *Error {
	return newError(TypeProtocol, TagUnknownNamespace, fmt.Sprintf("unknown namespace: %s", ns)).
		WithInfo("bad-namespace", ns)
}

func NewOperationNotSupported(op string) *Error {
	return newError(TypeApplication, TagOperationNotSupported, fmt.Sprintf("operation not supported: %s", op))
}

func NewOperationFailed(msg string) *Error {
	return newError(TypeApplication, TagOperationFailed, msg)
}

func NewAccessDenied(path string) *Error {
	return newError(TypeApplication, TagAccessDenied, "access denied").WithPath(path)
}

func NewLockDenied(sessionID uint64) *Error {
	return newError(TypeProtocol, TagLockDenied, fmt.Sprintf("lock held by session %d", sessionID)).
		WithInfo("session-id", fmt.Sprintf("%d", sessionID))
}

func NewResourceDenied(msg string) *Error {
	return newError(TypeApplication, TagResourceDenied, msg)
}

func NewDataExists(path string) *Error {
	return newError(TypeApplication, TagDataExists, "data already exists").WithPath(path)
}

func NewDataMissing(path string) *Error {
	return newError(TypeApplication, TagDataMissing, "data does not exist").WithPath(path)
}

func NewRollbackFailed(msg string) *Error {
	return newError(TypeApplication, TagRollbackFailed, msg)
}

func NewMalformedMessage(msg string) *Error {
	return newError(TypeRPC, TagMalformedMessage, msg)
}

func NewInUse(msg string) *Error {
	return newError(TypeProtocol, TagInUse, msg)
}

// As extracts the *Error carried by err, unwrapping any pkg/errors
// annotation added as the error crossed into dispatcher code.
func As(err error) (*Error, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// Wrap annotates err with msg, preserving it so As/mgmterror.As can still
// recover a wrapped *Error at the dispatcher boundary. Wrap does not change
// the error's kind; ToRPCError maps non-mgmterror errors to operation-failed.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// ToRPCError converts any error into an *Error, defaulting to
// operation-failed for errors that did not originate in this package
// (e.g. a plain error returned by a back end).
func ToRPCError(err error) *Error {
	if err == nil {
		return nil
	}
	if me, ok := As(err); ok {
		return me
	}
	return NewOperationFailed(err.Error())
}
