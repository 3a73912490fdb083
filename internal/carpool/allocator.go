package carpool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
)

// RequestBooking files a passenger's request for seats. No seats are
// deducted here: a ride can carry more pending demand than supply, and
// even a full ride keeps accepting requests the driver may later prefer
// over a confirmed one. Seats are consumed only by AcceptBooking, and
// the amount recorded here is a quote; the final amount is fixed at
// acceptance from the then-current price.
func (s *Service) RequestBooking(ctx context.Context, passengerID, rideID string, seats int, pickup, dropoff *models.Stop) (*models.Booking, error) {
	if passengerID == "" {
		return nil, apperrors.NewValidation("passenger_id", "must not be empty")
	}
	if seats < 1 {
		return nil, apperrors.NewValidation("seats_requested", "must be at least 1")
	}
	// the status check and the create run under the ride's lock so they
	// cannot interleave with a cancel cascade, which would strand a
	// pending booking on a terminal ride
	ride, b, err := func() (*models.Ride, *models.Booking, error) {
		unlock := s.Locks.Lock(rideID)
		defer unlock()
		ride, err := s.Store.GetRide(ctx, rideID)
		if err != nil {
			return nil, nil, mapStoreErr(err, "ride", rideID)
		}
		if !ride.Status.Bookable() {
			return nil, nil, &apperrors.InvalidStateError{Kind: "ride", ID: rideID, Status: string(ride.Status), Op: "request booking"}
		}
		b := &models.Booking{
			ID:             uuid.NewString(),
			RideID:         rideID,
			PassengerID:    passengerID,
			SeatsRequested: seats,
			Status:         models.BookingPending,
			Pickup:         pickup,
			Dropoff:        dropoff,
			Amount:         ride.PricePerSeat.Mul(decimalFromInt(seats)),
			CreatedAt:      time.Now(),
		}
		if err := s.Store.CreateBooking(ctx, b); err != nil {
			return nil, nil, err
		}
		return ride, b, nil
	}()
	if err != nil {
		return nil, err
	}
	observability.BookingsRequested.Inc()
	s.emit(ride, b, events.BookingRequested)
	return b, nil
}

// AcceptBooking is the single seat-consuming operation. The capacity
// check and the seat deduction run as one indivisible step under the
// ride's lock: re-read available_seats, fail with InsufficientSeats if
// the request no longer fits (the booking stays pending), otherwise
// confirm and deduct, flipping the ride to full when seats hit zero.
func (s *Service) AcceptBooking(ctx context.Context, driverID, bookingID string) (*models.Booking, error) {
	rideID, err := s.rideIDForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	var accepted *models.Booking
	ride, err := s.mutateRide(ctx, rideID, func(ride *models.Ride) ([]*models.Booking, error) {
		b, err := s.Store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, mapStoreErr(err, "booking", bookingID)
		}
		if ride.DriverID != driverID {
			return nil, &apperrors.UnauthorizedError{Reason: "ride belongs to another driver"}
		}
		if b.Status != models.BookingPending {
			return nil, &apperrors.InvalidStateError{Kind: "booking", ID: bookingID, Status: string(b.Status), Op: "accept"}
		}
		if !ride.Status.Bookable() {
			return nil, &apperrors.InvalidStateError{Kind: "ride", ID: rideID, Status: string(ride.Status), Op: "accept booking"}
		}
		if ride.AvailableSeats < b.SeatsRequested {
			observability.SeatConflicts.Inc()
			return nil, &apperrors.InsufficientSeatsError{RideID: rideID, Available: ride.AvailableSeats, Requested: b.SeatsRequested}
		}
		b.Status = models.BookingConfirmed
		// the amount owed is fixed here from the ride's current price, so
		// a price edit made after the request applies
		b.Amount = ride.PricePerSeat.Mul(decimalFromInt(b.SeatsRequested))
		ride.AvailableSeats -= b.SeatsRequested
		recomputeOpenFull(ride)
		accepted = b
		return []*models.Booking{b}, nil
	})
	if err != nil {
		return nil, err
	}
	observability.BookingsAccepted.Inc()
	s.Logger.Info("booking accepted", "booking_id", bookingID, "ride_id", rideID, "seats_left", ride.AvailableSeats)
	s.emit(ride, accepted, events.BookingAccepted)
	s.holdFunds(accepted)
	return accepted, nil
}

// RejectBooking is the driver's refusal of a request. Rejecting a
// confirmed booking restores its seats and may flip the ride back from
// full to open. Rejecting a terminal booking fails loudly so stale
// driver UIs learn they are out of date.
func (s *Service) RejectBooking(ctx context.Context, driverID, bookingID string) (*models.Booking, error) {
	return s.resolveBooking(ctx, bookingID, models.BookingRejected, func(ride *models.Ride, b *models.Booking) error {
		if ride.DriverID != driverID {
			return &apperrors.UnauthorizedError{Reason: "ride belongs to another driver"}
		}
		return nil
	})
}

// CancelBooking withdraws a pending or confirmed booking. The owning
// passenger or the ride's driver may cancel; seats held by a confirmed
// booking are restored.
func (s *Service) CancelBooking(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	return s.resolveBooking(ctx, bookingID, models.BookingCancelled, func(ride *models.Ride, b *models.Booking) error {
		if actorID != b.PassengerID && actorID != ride.DriverID {
			return &apperrors.UnauthorizedError{Reason: "booking belongs to another passenger"}
		}
		return nil
	})
}

// resolveBooking implements the shared reject/cancel path: legal only
// from pending or confirmed, restores seats when the booking was seated,
// and never mutates capacity twice for the same booking.
func (s *Service) resolveBooking(ctx context.Context, bookingID string, final models.BookingStatus, authorize func(*models.Ride, *models.Booking) error) (*models.Booking, error) {
	rideID, err := s.rideIDForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	var (
		resolved     *models.Booking
		wasConfirmed bool
	)
	ride, err := s.mutateRide(ctx, rideID, func(ride *models.Ride) ([]*models.Booking, error) {
		b, err := s.Store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, mapStoreErr(err, "booking", bookingID)
		}
		if err := authorize(ride, b); err != nil {
			return nil, err
		}
		if !b.Status.Resolvable() {
			op := "cancel"
			if final == models.BookingRejected {
				op = "reject"
			}
			return nil, &apperrors.InvalidStateError{Kind: "booking", ID: bookingID, Status: string(b.Status), Op: op}
		}
		wasConfirmed = b.Status == models.BookingConfirmed
		if wasConfirmed {
			ride.AvailableSeats += b.SeatsRequested
			recomputeOpenFull(ride)
		}
		b.Status = final
		resolved = b
		return []*models.Booking{b}, nil
	})
	if err != nil {
		return nil, err
	}
	typ := events.BookingCancelled
	if final == models.BookingRejected {
		typ = events.BookingRejected
		observability.BookingsRejected.Inc()
	} else {
		observability.BookingsCancelled.Inc()
	}
	s.emit(ride, resolved, typ)
	if wasConfirmed {
		s.releaseFunds(resolved)
	}
	return resolved, nil
}

// PendingRequests returns the pending bookings across all of a driver's
// active rides, oldest first.
func (s *Service) PendingRequests(ctx context.Context, driverID string) ([]*models.Booking, error) {
	return s.Store.ListPendingForDriver(ctx, driverID)
}

func decimalFromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

func (s *Service) rideIDForBooking(ctx context.Context, bookingID string) (string, error) {
	b, err := s.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return "", mapStoreErr(err, "booking", bookingID)
	}
	return b.RideID, nil
}
