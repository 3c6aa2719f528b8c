package booking

import "github.com/marvinagmata/tourism-room-booking/internal/model"

// transitions is the booking state machine.  PENDING -> RESERVED is
// driven by reconciliation once enough of the price is paid; the
// front-desk transitions RESERVED -> CHECKED_IN -> CHECKED_OUT have no
// payment dependency; PENDING and RESERVED may be canceled.  CANCELED
// and CHECKED_OUT are terminal.
var transitions = map[string]map[string]bool{
	model.BookingPending: {
		model.BookingReserved: true,
		model.BookingCanceled: true,
	},
	model.BookingReserved: {
		model.BookingCheckedIn: true,
		model.BookingCanceled:  true,
	},
	model.BookingCheckedIn: {
		model.BookingCheckedOut: true,
	},
	model.BookingCheckedOut: {},
	model.BookingCanceled:   {},
}

// ValidStatus reports whether s is one of the five booking statuses.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a booking may move from one status to
// another.  Same-status "transitions" are not listed here; callers
// treat them as idempotent no-ops before consulting the table.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// Terminal reports whether a status admits no further transition.
func Terminal(s string) bool {
	return len(transitions[s]) == 0 && ValidStatus(s)
}
