package storage

import (
	"context"
	"errors"

	"github.com/example/carpool/internal/models"
)

var (
	// ErrNotFound is returned for unknown ride or booking ids.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned by Commit when the ride row changed
	// under us; the engine reloads and retries a bounded number of times.
	ErrVersionConflict = errors.New("ride version conflict")
)

// Store persists rides and their bookings. Reads are lock-free and may be
// slightly stale; Commit is the single write path for capacity and status
// mutations and applies the ride row plus any dependent booking rows as
// one atomic batch guarded by the ride's version.
type Store interface {
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	// ListRides returns a driver's rides ordered by departure time
	// ascending, optionally restricted to one status.
	ListRides(ctx context.Context, driverID string, status *models.RideStatus) ([]*models.Ride, error)

	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListRideBookings(ctx context.Context, rideID string) ([]*models.Booking, error)
	// ListPendingForDriver returns pending bookings across all of a
	// driver's non-terminal rides, oldest first.
	ListPendingForDriver(ctx context.Context, driverID string) ([]*models.Booking, error)

	// Commit persists a mutated ride and the given bookings atomically.
	// The ride's stored version must still equal ride.Version, otherwise
	// ErrVersionConflict; on success the version is incremented.
	Commit(ctx context.Context, ride *models.Ride, bookings ...*models.Booking) error

	// SetBookingHold records the payment hold id for a booking. It is a
	// narrow side-channel write and does not touch capacity.
	SetBookingHold(ctx context.Context, bookingID, holdID string) error
}
