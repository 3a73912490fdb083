package carpool

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
)

// StartRide moves an open or full ride to in_progress. It requires at
// least one confirmed booking and force-rejects every still-pending
// request in the same batch: a ride under way no longer accepts
// passengers, and the requesters get a definitive answer.
func (s *Service) StartRide(ctx context.Context, driverID, rideID string) (*models.Ride, error) {
	var rejected []*models.Booking
	ride, err := s.mutateRide(ctx, rideID, func(ride *models.Ride) ([]*models.Booking, error) {
		if ride.DriverID != driverID {
			return nil, &apperrors.UnauthorizedError{Reason: "ride belongs to another driver"}
		}
		if !ride.Status.Bookable() {
			return nil, &apperrors.InvalidStateError{Kind: "ride", ID: rideID, Status: string(ride.Status), Op: "start"}
		}
		bookings, err := s.Store.ListRideBookings(ctx, rideID)
		if err != nil {
			return nil, err
		}
		confirmed := 0
		rejected = rejected[:0]
		for _, b := range bookings {
			switch b.Status {
			case models.BookingConfirmed:
				confirmed++
			case models.BookingPending:
				b.Status = models.BookingRejected
				rejected = append(rejected, b)
			}
		}
		if confirmed == 0 {
			return nil, &apperrors.NoPassengersError{RideID: rideID}
		}
		ride.Status = models.RideInProgress
		return rejected, nil
	})
	if err != nil {
		return nil, err
	}
	observability.RidesStarted.Inc()
	s.Logger.Info("ride started", "ride_id", rideID, "rejected_pending", len(rejected))
	s.emit(ride, nil, events.RideStarted)
	for _, b := range rejected {
		observability.BookingsRejected.Inc()
		s.emit(ride, b, events.BookingRejected)
	}
	return ride, nil
}

// CompletionResult reports what CompleteRide did: bookings force-moved
// to dropped_off, the no-shows left in confirmed, and the total credited
// to the driver.
type CompletionResult struct {
	Ride          *models.Ride      `json:"ride"`
	DroppedOff    []*models.Booking `json:"dropped_off"`
	NoShows       []*models.Booking `json:"no_shows"`
	DriverEarning decimal.Decimal   `json:"driver_earning"`
}

// CompleteRide ends an in-progress ride. Passengers still on board are
// force-transitioned to dropped_off; a confirmed booking that was never
// picked up is a no-show, surfaced but never blocking. The driver's
// earning covers every booking that reached dropped_off, and every such
// booking's payment hold is captured.
func (s *Service) CompleteRide(ctx context.Context, driverID, rideID string) (*CompletionResult, error) {
	res := &CompletionResult{DriverEarning: decimal.Zero}
	var settled []*models.Booking
	ride, err := s.mutateRide(ctx, rideID, func(ride *models.Ride) ([]*models.Booking, error) {
		if ride.DriverID != driverID {
			return nil, &apperrors.UnauthorizedError{Reason: "ride belongs to another driver"}
		}
		if ride.Status != models.RideInProgress {
			return nil, &apperrors.InvalidStateError{Kind: "ride", ID: rideID, Status: string(ride.Status), Op: "complete"}
		}
		bookings, err := s.Store.ListRideBookings(ctx, rideID)
		if err != nil {
			return nil, err
		}
		res.DroppedOff = res.DroppedOff[:0]
		res.NoShows = res.NoShows[:0]
		res.DriverEarning = decimal.Zero
		settled = settled[:0]
		changed := make([]*models.Booking, 0, len(bookings))
		now := time.Now()
		for _, b := range bookings {
			switch b.Status {
			case models.BookingPickedUp:
				b.Status = models.BookingDroppedOff
				b.DropoffAt = &now
				changed = append(changed, b)
				res.DroppedOff = append(res.DroppedOff, b)
				res.DriverEarning = res.DriverEarning.Add(b.Amount)
				settled = append(settled, b)
			case models.BookingDroppedOff:
				res.DriverEarning = res.DriverEarning.Add(b.Amount)
				settled = append(settled, b)
			case models.BookingConfirmed:
				res.NoShows = append(res.NoShows, b)
			}
		}
		ride.Status = models.RideCompleted
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	res.Ride = ride
	observability.RidesCompleted.Inc()
	s.Logger.Info("ride completed", "ride_id", rideID,
		"dropped_off", len(res.DroppedOff), "no_shows", len(res.NoShows),
		"driver_earning", res.DriverEarning.String())
	s.emit(ride, nil, events.RideCompleted)
	for _, b := range res.DroppedOff {
		s.emit(ride, b, events.PassengerDroppedOff)
	}
	// settlement covers passengers dropped before completion too, not
	// just the ones force-transitioned here
	for _, b := range settled {
		s.captureFunds(b)
	}
	for range res.NoShows {
		observability.NoShows.Inc()
	}
	if s.Dispatch != nil {
		_ = s.Dispatch.Publish(events.RideEvent{
			Type:           events.DriverEarning,
			RideID:         ride.ID,
			DriverID:       ride.DriverID,
			RideStatus:     string(ride.Status),
			AvailableSeats: ride.AvailableSeats,
			TotalSeats:     ride.TotalSeats,
			Amount:         res.DriverEarning.String(),
			At:             time.Now(),
		})
	}
	return res, nil
}

// CancelRide cancels a ride that has not started. Every pending and
// confirmed booking cascades to cancelled in the same batch; seats are
// not restored since the ride itself is terminal. In-progress and
// terminal rides cannot be cancelled.
func (s *Service) CancelRide(ctx context.Context, driverID, rideID string) (*models.Ride, error) {
	var cascaded []*models.Booking
	ride, err := s.mutateRide(ctx, rideID, func(ride *models.Ride) ([]*models.Booking, error) {
		if ride.DriverID != driverID {
			return nil, &apperrors.UnauthorizedError{Reason: "ride belongs to another driver"}
		}
		if !ride.Status.Bookable() {
			return nil, &apperrors.InvalidStateError{Kind: "ride", ID: rideID, Status: string(ride.Status), Op: "cancel"}
		}
		bookings, err := s.Store.ListRideBookings(ctx, rideID)
		if err != nil {
			return nil, err
		}
		cascaded = cascaded[:0]
		for _, b := range bookings {
			if b.Status.Resolvable() {
				b.Status = models.BookingCancelled
				cascaded = append(cascaded, b)
			}
		}
		ride.Status = models.RideCancelled
		return cascaded, nil
	})
	if err != nil {
		return nil, err
	}
	observability.RidesCancelled.Inc()
	s.Logger.Info("ride cancelled", "ride_id", rideID, "cascaded", len(cascaded))
	s.emit(ride, nil, events.RideCancelled)
	for _, b := range cascaded {
		observability.BookingsCancelled.Inc()
		s.emit(ride, b, events.BookingCancelled)
		s.releaseFunds(b)
	}
	return ride, nil
}
