package services

import (
	"errors"
	"fmt"

	"github.com/desertthunder/isoca/internal/shared"
)

// Failure kinds shared by [ExchangeError] and [FetchError].
var (
	ErrNetwork           = errors.New("network error")
	ErrServer            = errors.New("server error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ExchangeError reports a failed authorization-code exchange.
//
// It matches [shared.ErrExchangeFailed], its Kind, and the underlying error with [errors.Is].
type ExchangeError struct {
	Kind       error
	StatusCode int
	Err        error
}

func (e *ExchangeError) Error() string {
	return describe(shared.ErrExchangeFailed, e.Kind, e.StatusCode, e.Err)
}

func (e *ExchangeError) Unwrap() []error {
	return unwrap(shared.ErrExchangeFailed, e.Kind, e.Err)
}

// FetchError reports a failed data fetch.
//
// Callers treat Kind [ErrUnauthorized] as "token rejected"; every other kind is transient.
type FetchError struct {
	Kind       error
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return describe(shared.ErrFetchFailed, e.Kind, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return unwrap(shared.ErrFetchFailed, e.Kind, e.Err)
}

func describe(op, kind error, status int, err error) string {
	msg := fmt.Sprintf("%v: %v", op, kind)
	if status != 0 {
		msg += fmt.Sprintf(": status %d", status)
	}
	if err != nil {
		msg += fmt.Sprintf(": %v", err)
	}
	return msg
}

func unwrap(errs ...error) []error {
	out := errs[:0:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
