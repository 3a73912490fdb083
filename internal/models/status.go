package models

// RideStatus is the ride-level state machine. open and full flip
// automatically as the seat count crosses zero; the rest are driver
// transitions. completed and cancelled are terminal.
type RideStatus string

const (
	RideOpen       RideStatus = "open"
	RideFull       RideStatus = "full"
	RideInProgress RideStatus = "in_progress"
	RideCompleted  RideStatus = "completed"
	RideCancelled  RideStatus = "cancelled"
)

func (s RideStatus) Valid() bool {
	switch s {
	case RideOpen, RideFull, RideInProgress, RideCompleted, RideCancelled:
		return true
	}
	return false
}

func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

// Bookable reports whether a ride can still receive booking requests.
// A full ride keeps accumulating pending demand the driver may prefer
// over an already confirmed booking.
func (s RideStatus) Bookable() bool {
	return s == RideOpen || s == RideFull
}

// BookingStatus is the per-passenger booking state machine.
// rejected, cancelled and dropped_off are terminal.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingRejected   BookingStatus = "rejected"
	BookingCancelled  BookingStatus = "cancelled"
	BookingPickedUp   BookingStatus = "picked_up"
	BookingDroppedOff BookingStatus = "dropped_off"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingRejected, BookingCancelled, BookingPickedUp, BookingDroppedOff:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingRejected, BookingCancelled, BookingDroppedOff:
		return true
	}
	return false
}

// Seated reports whether the booking holds seats against the ride's
// capacity: confirmed and onward, until the seats are restored by a
// reject or cancel.
func (s BookingStatus) Seated() bool {
	switch s {
	case BookingConfirmed, BookingPickedUp, BookingDroppedOff:
		return true
	}
	return false
}

// Resolvable reports whether a driver reject or a cancellation is still
// legal: only pending and confirmed bookings can be resolved, a passenger
// already in the car cannot be cancelled away.
func (s BookingStatus) Resolvable() bool {
	return s == BookingPending || s == BookingConfirmed
}
