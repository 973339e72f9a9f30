// Package errs defines the closed set of failure kinds shared by every domain package.
// Transport layers translate a Kind into a status code; domain code never does.
package errs

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
	KindNotSupported
	KindTimeout
	KindUnauthorized
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream_error"
	case KindNotSupported:
		return "not_supported"
	case KindTimeout:
		return "timeout"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal_error"
	}
}

// Error is a coded failure. Package-level sentinels are built with New and
// compared with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code, Message: code}
}

func Newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" && e.Message != e.Code {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// Is matches any *Error with the same kind and code, so errors built with
// Newf still satisfy errors.Is against the package sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Kinded is implemented by errors that carry their own kind without being an *Error.
type Kinded interface {
	error
	ErrorKind() Kind
}

// KindOf walks the wrap chain and reports the first kind it finds.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	var coded *Error
	if errors.As(err, &coded) && coded != nil {
		return coded.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in the chain.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) && coded != nil {
		return coded.Code
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
