// Package events carries committed state changes out of the booking
// engine. Delivery is fire-and-forget: a slow or failed notification
// never rolls back or delays the mutation that produced it.
package events

import "time"

type EventType string

const (
	BookingRequested    EventType = "booking_requested"
	BookingAccepted     EventType = "booking_accepted"
	BookingRejected     EventType = "booking_rejected"
	BookingCancelled    EventType = "booking_cancelled"
	RideStarted         EventType = "ride_started"
	RideCompleted       EventType = "ride_completed"
	RideCancelled       EventType = "ride_cancelled"
	PassengerPickedUp   EventType = "passenger_picked_up"
	PassengerDroppedOff EventType = "passenger_dropped_off"
	DriverEarning       EventType = "driver_earning"
)

// RideEvent is the wire shape published after each committed mutation.
// RideStatus and AvailableSeats let downstream consumers refresh ride
// snapshots without a read back to the store.
type RideEvent struct {
	Type           EventType `json:"event_type"`
	RideID         string    `json:"ride_id"`
	BookingID      string    `json:"booking_id,omitempty"`
	DriverID       string    `json:"driver_id"`
	PassengerID    string    `json:"passenger_id,omitempty"`
	RideStatus     string    `json:"ride_status"`
	AvailableSeats int       `json:"available_seats"`
	TotalSeats     int       `json:"total_seats"`
	Amount         string    `json:"amount,omitempty"`
	At             time.Time `json:"at"`
}

// Dispatcher delivers a committed event. Implementations must not block
// the caller beyond a short bounded timeout and must swallow their own
// delivery failures.
type Dispatcher interface {
	Publish(ev RideEvent) error
}

// Fanout delivers to every child dispatcher, best-effort.
type Fanout []Dispatcher

func (f Fanout) Publish(ev RideEvent) error {
	for _, d := range f {
		_ = d.Publish(ev)
	}
	return nil
}
