package core

import "errors"

// Failure kinds surfaced by the planner. Callers match with errors.Is; the
// wrapped message carries the human-readable reason.
var (
	// ErrMapOutOfBounds indicates a pose outside the MLS grid.
	ErrMapOutOfBounds = errors.New("pose outside map")
	// ErrStateCreation indicates no patch could be created or expanded at a pose.
	ErrStateCreation = errors.New("state creation failed")
	// ErrOrientationNotAllowed indicates a heading disallowed by terrain slope.
	ErrOrientationNotAllowed = errors.New("orientation not allowed")
	// ErrObstacleCheck indicates a footprint intersecting an obstacle or frontier.
	ErrObstacleCheck = errors.New("obstacle check failed")
	// ErrInternalInvariant indicates successor bookkeeping corruption. Fatal:
	// the planning run must be aborted.
	ErrInternalInvariant = errors.New("internal invariant violated")
	// ErrNoEscape indicates that no escape primitive leaves the obstacle.
	ErrNoEscape = errors.New("no escape trajectory")
)
