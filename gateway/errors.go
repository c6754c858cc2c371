package gateway

import (
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-admin-session/internal/errors"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindTransport covers network failures, timeouts and unreadable responses.
	KindTransport Kind = iota + 1
	// KindHTTP is a non-2xx response without a decodable envelope.
	KindHTTP
	// KindBusiness is an envelope whose code is not the success code.
	KindBusiness
	// KindUnauthorized is a 401 that will not be recovered by a refresh.
	KindUnauthorized
	// KindRefreshRejected means the session could not be refreshed and has been expired.
	KindRefreshRejected
	// KindStorage is a credential store failure.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindBusiness:
		return "business"
	case KindUnauthorized:
		return "unauthorized"
	case KindRefreshRejected:
		return "refresh_rejected"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return apperrors.ErrTransport
	case KindHTTP:
		return apperrors.ErrHTTP
	case KindBusiness:
		return apperrors.ErrBusiness
	case KindUnauthorized:
		return apperrors.ErrAuthExpired
	case KindRefreshRejected:
		return apperrors.ErrRefreshRejected
	case KindStorage:
		return apperrors.ErrCredentialStorage
	}
	return apperrors.ErrInternal
}

// Error is returned for every failed call. It matches the sentinel of its Kind
// and the underlying cause with errors.Is.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Code    int    // envelope code, 0 when no envelope was decoded
	Message string // user-facing message
	TraceID string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or 0 when err did not come from a Gateway.
func KindOf(err error) Kind {
	if gwErr, ok := AsError(err); ok {
		return gwErr.Kind
	}
	return 0
}
