package carpool

import (
	"context"
	"time"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
)

// MarkPickedUp records that a confirmed passenger boarded an in-progress
// ride. Pickups and drop-offs of different bookings on the same ride
// happen in any order; the route serves stops in whatever sequence suits
// the driver.
func (s *Service) MarkPickedUp(ctx context.Context, driverID, bookingID string) (*models.Booking, error) {
	return s.sequence(ctx, driverID, bookingID, "pickup", func(b *models.Booking, now time.Time) error {
		if b.Status != models.BookingConfirmed {
			return &apperrors.InvalidStateError{Kind: "booking", ID: b.ID, Status: string(b.Status), Op: "pickup"}
		}
		b.Status = models.BookingPickedUp
		b.PickupAt = &now
		return nil
	})
}

// MarkDroppedOff records that a picked-up passenger left the car. The
// ride never auto-completes when the last passenger is dropped;
// completion stays an explicit driver action.
func (s *Service) MarkDroppedOff(ctx context.Context, driverID, bookingID string) (*models.Booking, error) {
	return s.sequence(ctx, driverID, bookingID, "dropoff", func(b *models.Booking, now time.Time) error {
		if b.Status != models.BookingPickedUp {
			return &apperrors.InvalidStateError{Kind: "booking", ID: b.ID, Status: string(b.Status), Op: "dropoff"}
		}
		b.Status = models.BookingDroppedOff
		b.DropoffAt = &now
		return nil
	})
}

func (s *Service) sequence(ctx context.Context, driverID, bookingID, op string, step func(*models.Booking, time.Time) error) (*models.Booking, error) {
	rideID, err := s.rideIDForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	var moved *models.Booking
	ride, err := s.mutateRide(ctx, rideID, func(ride *models.Ride) ([]*models.Booking, error) {
		if ride.DriverID != driverID {
			return nil, &apperrors.UnauthorizedError{Reason: "ride belongs to another driver"}
		}
		if ride.Status != models.RideInProgress {
			return nil, &apperrors.InvalidStateError{Kind: "ride", ID: rideID, Status: string(ride.Status), Op: op}
		}
		b, err := s.Store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, mapStoreErr(err, "booking", bookingID)
		}
		if err := step(b, time.Now()); err != nil {
			return nil, err
		}
		moved = b
		return []*models.Booking{b}, nil
	})
	if err != nil {
		return nil, err
	}
	typ := events.PassengerPickedUp
	if op == "dropoff" {
		typ = events.PassengerDroppedOff
	}
	s.emit(ride, moved, typ)
	return moved, nil
}
