package domain

import (
	"fmt"
	"net/http"

	"github.com/smallbiznis/recurra/pkg/errs"
)

var (
	ErrProviderNotFound = errs.New(errs.KindValidation, "provider_not_found")
	ErrNotSupported     = errs.New(errs.KindNotSupported, "provider_not_supported")
	ErrTimeout          = errs.New(errs.KindTimeout, "gateway_timeout")
)

// UpstreamError is a provider rejection or malformed reply. StatusCode follows
// HTTP semantics: 400 missing credentials, 422 method not allowed for the
// account, 502 malformed or 5xx replies.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func NewUpstreamError(provider string, status int, format string, args ...any) *UpstreamError {
	return &UpstreamError{Provider: provider, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s upstream error (%d): %s", e.Provider, e.StatusCode, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) ErrorKind() errs.Kind {
	return errs.KindUpstream
}

// HTTPStatus clamps the carried code to an error status.
func (e *UpstreamError) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode <= 599 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}
