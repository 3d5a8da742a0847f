package graph

import "errors"

// Sentinel errors a caller can match with errors.Is.
var (
	// ErrQuadExists is returned by Insert when asked to reject duplicates
	// explicitly (Insert itself is idempotent and does not return this;
	// it is exposed for callers that want strict semantics).
	ErrQuadExists = errors.New("graph: quad already exists")
	// ErrQuadNotExist reports that a quad is absent. Remove does not
	// return it (removing an absent quad is a no-op); it is exposed for
	// callers that want strict semantics.
	ErrQuadNotExist = errors.New("graph: quad does not exist")
)
