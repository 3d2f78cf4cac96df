package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint or duplicate registration
// - ErrInvalidState: entity in wrong state for requested transition
// - ErrNotAuthorized: principal lacks ledger write permission
// - ErrUnavailable: remote service or resource unreachable
// - ErrTimeout: remote confirmation deadline exceeded
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotAuthorized = errors.New("not authorized")
	ErrUnavailable   = errors.New("unavailable")
	ErrTimeout       = errors.New("timeout")
)
