package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRateLimited      = errors.New("too many requests")
	ErrInternal         = errors.New("internal error")

	// Lifecycle errors. An inactive product is NotFound to callers; the rest
	// are InvalidRequest.
	ErrProductInactive       = fmt.Errorf("%w: product is not active", ErrNotFound)
	ErrInstallmentNotOffered = fmt.Errorf("%w: product has no installment price configured", ErrInvalidArgument)
	ErrOrderSettled          = fmt.Errorf("%w: order has no outstanding amount", ErrInvalidArgument)
	ErrIllegalTransition     = fmt.Errorf("%w: illegal status transition", ErrInvalidArgument)
	ErrUnsupportedProvider   = fmt.Errorf("%w: unsupported payment provider", ErrInvalidArgument)

	// Persistence plumbing
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// GatewayError carries the raw provider response for diagnostics.
type GatewayError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Kind is the error tag exposed to API clients.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidRequest   Kind = "invalid_request"
	KindInvalidSignature Kind = "invalid_signature"
	KindGateway          Kind = "gateway_error"
	KindUnauthorized     Kind = "unauthorized"
	KindRateLimited      Kind = "rate_limited"
	KindInternal         Kind = "internal_error"
)

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) Kind {
	var gw *GatewayError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &gw):
		return KindGateway
	case errors.Is(err, ErrInvalidSignature):
		return KindInvalidSignature
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrAlreadyExists):
		return KindInvalidRequest
	default:
		return KindInternal
	}
}
