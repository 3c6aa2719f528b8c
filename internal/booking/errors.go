package booking

import "errors"

// ErrConflict is returned when the requested room/date range is taken:
// either the pre-check found an overlap or a concurrent transaction
// committed one first.  Callers should re-query availability and retry.
var ErrConflict = errors.New("room no longer available for these dates")

// ErrValidation is returned for malformed booking input: bad date
// range, missing guest identity, unknown enum value.  Not retryable.
var ErrValidation = errors.New("invalid booking request")

// ErrInvalidTransition is returned when a status change is not
// permitted by the state machine, including any transition out of a
// terminal state.
var ErrInvalidTransition = errors.New("status transition not allowed")

// ErrIntegrity is returned when the no-overlap invariant is found
// already broken on read.  The request fails and the room is flagged
// for operator investigation; nothing is auto-corrected.
var ErrIntegrity = errors.New("overlapping bookings detected for room")
