package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: a concurrent write already claimed the record
//   - ErrInvalidState: conditional update matched no row (the record is not in
//     the expected status)
//   - ErrQuotaExhausted: increment-with-ceiling matched no row (free allotment
//     already consumed)
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidState   = errors.New("invalid state")
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrUnavailable    = errors.New("unavailable")
)
