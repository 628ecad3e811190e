package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into coded domain
// errors without string matching.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row or registry object does not exist
// - ErrConflict: unique constraint or concurrent create collided
// - ErrInvalidState: entity observed in a state the operation does not
//   expect; the order state machine relies on this to turn re-delivered
//   work into a no-op instead of a double execution
// - ErrUnavailable: upstream service temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
