package domain

import "errors"

var (
	ErrTransport         = errors.New("transport error")
	ErrRateLimited       = errors.New("upstream rate limited")
	ErrUpstreamRejected  = errors.New("upstream rejected request")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrValidation        = errors.New("payload rejected")
	ErrInvalidSymbol     = errors.New("invalid symbol format")
	ErrStorageConstraint = errors.New("storage constraint violation")
	ErrStorage           = errors.New("storage error")
	ErrNoSymbols         = errors.New("no symbols provided")
	ErrAllSymbolsFailed  = errors.New("all symbols failed")
)

// FailureKind is the stable name of a per-symbol failure category.
type FailureKind string

const (
	FailureTransport         FailureKind = "transport"
	FailureRateLimited       FailureKind = "rate_limited"
	FailureUpstreamRejected  FailureKind = "upstream_rejected"
	FailureMalformedPayload  FailureKind = "malformed_payload"
	FailureValidation        FailureKind = "validation"
	FailureInvalidSymbol     FailureKind = "invalid_symbol"
	FailureStorageConstraint FailureKind = "storage_constraint"
	FailureStorage           FailureKind = "storage"
	FailureUnknown           FailureKind = "unknown"
)

var failureKinds = []struct {
	err  error
	kind FailureKind
}{
	{ErrRateLimited, FailureRateLimited},
	{ErrUpstreamRejected, FailureUpstreamRejected},
	{ErrMalformedPayload, FailureMalformedPayload},
	{ErrTransport, FailureTransport},
	{ErrValidation, FailureValidation},
	{ErrInvalidSymbol, FailureInvalidSymbol},
	{ErrStorageConstraint, FailureStorageConstraint},
	{ErrStorage, FailureStorage},
}

// FailureKindOf classifies err against the sentinel errors above.
func FailureKindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	for _, fk := range failureKinds {
		if errors.Is(err, fk.err) {
			return fk.kind
		}
	}
	return FailureUnknown
}

// IsRetryable reports whether another fetch attempt may succeed.
// Upstream rejections are terminal.
func IsRetryable(err error) bool {
	switch FailureKindOf(err) {
	case FailureTransport, FailureRateLimited, FailureMalformedPayload:
		return true
	default:
		return false
	}
}
