package lsmtree

import "errors"

// Sentinel errors surfaced by the core. A lookup miss is never an error —
// Get and Range report absence through their bool/slice results. These
// sentinels cover configuration failures, capacity exhaustion, and
// out-of-bounds level positions; I/O failures surface as wrapped os
// errors. The caller (the Tree facade, and above it the CLI dispatcher)
// must treat all of them as fatal for the operation in flight.
var (
	// ErrBadConfig is returned by Init when level counts or capacities
	// violate the tree's configuration invariants (1 <= M <= N, so level 0
	// is MAIN; exactly one capacity per level). Capacities are not checked
	// for monotonicity.
	ErrBadConfig = errors.New("lsmtree: invalid tree configuration")

	// ErrCapacityExhausted is returned when migration reaches the
	// terminal level and finds it full with nowhere left to cascade.
	// The core offers no recovery; the tree is left readable but
	// write-unsafe until Destroy.
	ErrCapacityExhausted = errors.New("lsmtree: store full, terminal level overflow")

	// ErrOutOfBounds is the Level precondition violation: pos >= capacity.
	ErrOutOfBounds = errors.New("lsmtree: position out of bounds")
)
