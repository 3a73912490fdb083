package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Stop is a named point on a ride's route. Bookings may override the
// ride's default stops with their own pickup/drop locations.
type Stop struct {
	Address string `json:"address"`
	Coord   Coord  `json:"coord"`
}

type Route struct {
	Origin      Stop `json:"origin"`
	Destination Stop `json:"destination"`
}

type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Color string `json:"color"`
	Plate string `json:"plate"`
}

type Preferences struct {
	WomenOnly bool `json:"women_only"`
	AC        bool `json:"ac"`
	Luggage   bool `json:"luggage"`
	Smoking   bool `json:"smoking"`
	Pets      bool `json:"pets"`
}

// Ride is a driver-posted shared trip with fixed seat capacity.
// AvailableSeats is written only by the booking engine under the ride's
// lock; Version guards the row against concurrent writers.
type Ride struct {
	ID             string          `json:"id"`
	DriverID       string          `json:"driver_id"`
	Route          Route           `json:"route"`
	DepartureTime  time.Time       `json:"departure_time"`
	TotalSeats     int             `json:"total_seats"`
	AvailableSeats int             `json:"available_seats"`
	PricePerSeat   decimal.Decimal `json:"price_per_seat"`
	Vehicle        Vehicle         `json:"vehicle"`
	Preferences    Preferences     `json:"preferences"`
	Status         RideStatus      `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	Version        int64           `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Booking is one passenger's request for seats on a ride.
type Booking struct {
	ID             string          `json:"id"`
	RideID         string          `json:"ride_id"`
	PassengerID    string          `json:"passenger_id"`
	SeatsRequested int             `json:"seats_requested"`
	Status         BookingStatus   `json:"status"`
	Pickup         *Stop           `json:"pickup,omitempty"`
	Dropoff        *Stop           `json:"dropoff,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentHoldID  string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	PickupAt       *time.Time      `json:"pickup_at,omitempty"`
	DropoffAt      *time.Time      `json:"dropoff_at,omitempty"`
}

// SeatedSeats returns the number of seats currently held against a ride's
// capacity: every booking whose seats have been deducted and not restored.
func SeatedSeats(bookings []*Booking) int {
	n := 0
	for _, b := range bookings {
		if b.Status.Seated() {
			n += b.SeatsRequested
		}
	}
	return n
}
