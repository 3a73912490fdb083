// Package carpool implements the shared-ride booking engine: the ride
// catalog, the seat-capacity allocator, the ride lifecycle state machine
// and the per-passenger pickup sequencer.
package carpool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/ridelock"
	"github.com/example/carpool/internal/snapshot"
	"github.com/example/carpool/internal/storage"
	"github.com/example/carpool/internal/wallet"
)

const defaultCommitRetries = 3

// Service wires the stores, the per-ride lock registry and the outbound
// collaborators. Dispatch, Wallet and Snapshots are optional; the engine
// degrades to pure store mutations when they are absent.
type Service struct {
	Store     storage.Store
	Locks     *ridelock.Registry
	Dispatch  events.Dispatcher
	Wallet    wallet.Ledger
	Snapshots *snapshot.Cache
	Logger    *slog.Logger

	// CommitRetries bounds the reload-and-retry loop on version
	// conflicts before surfacing ConcurrencyConflictError.
	CommitRetries int
}

func NewService(store storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:         store,
		Locks:         ridelock.NewRegistry(),
		Logger:        logger,
		CommitRetries: defaultCommitRetries,
	}
}

// mutateRide runs fn under the ride's lock and commits the result.
// fn receives a fresh copy of the ride, mutates it, and returns the
// booking rows that must land in the same batch. The whole check-then-act
// is indivisible per ride; a stale version from an external writer is
// retried with a reload up to CommitRetries times.
func (s *Service) mutateRide(ctx context.Context, rideID string, fn func(*models.Ride) ([]*models.Booking, error)) (*models.Ride, error) {
	unlock := s.Locks.Lock(rideID)
	defer unlock()

	retries := s.CommitRetries
	if retries <= 0 {
		retries = defaultCommitRetries
	}
	for attempt := 0; attempt < retries; attempt++ {
		ride, err := s.Store.GetRide(ctx, rideID)
		if err != nil {
			return nil, mapStoreErr(err, "ride", rideID)
		}
		bookings, err := fn(ride)
		if err != nil {
			return nil, err
		}
		err = s.Store.Commit(ctx, ride, bookings...)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return ride, nil
	}
	return nil, &apperrors.ConcurrencyConflictError{RideID: rideID}
}

func mapStoreErr(err error, kind, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &apperrors.NotFoundError{Kind: kind, ID: id}
	}
	return err
}

// emit publishes a committed event and refreshes the ride snapshot.
// Both are best-effort side effects outside the critical section.
func (s *Service) emit(ride *models.Ride, booking *models.Booking, typ events.EventType) {
	ev := events.RideEvent{
		Type:           typ,
		RideID:         ride.ID,
		DriverID:       ride.DriverID,
		RideStatus:     string(ride.Status),
		AvailableSeats: ride.AvailableSeats,
		TotalSeats:     ride.TotalSeats,
		At:             time.Now(),
	}
	if booking != nil {
		ev.BookingID = booking.ID
		ev.PassengerID = booking.PassengerID
		ev.Amount = booking.Amount.String()
	}
	if s.Dispatch != nil {
		if err := s.Dispatch.Publish(ev); err != nil {
			s.Logger.Error("event publish failed", "type", typ, "ride_id", ride.ID, "error", err)
		}
	}
	if s.Snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.Snapshots.Put(ctx, ride); err != nil {
			s.Logger.Warn("snapshot refresh failed", "ride_id", ride.ID, "error", err)
		}
	}
}

// holdFunds asks the wallet to hold a confirmed booking's amount.
// Runs in the background; a failure is logged, never propagated.
func (s *Service) holdFunds(b *models.Booking) {
	if s.Wallet == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		holdID, err := s.Wallet.Hold(ctx, b)
		if err != nil {
			s.Logger.Error("wallet hold failed", "booking_id", b.ID, "error", err)
			return
		}
		if err := s.Store.SetBookingHold(ctx, b.ID, holdID); err != nil {
			s.Logger.Error("recording wallet hold failed", "booking_id", b.ID, "error", err)
		}
	}()
}

// captureFunds finalizes the hold of a dropped-off booking.
func (s *Service) captureFunds(b *models.Booking) {
	if s.Wallet == nil || b.PaymentHoldID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Wallet.Capture(ctx, b.PaymentHoldID); err != nil {
			s.Logger.Error("wallet capture failed", "booking_id", b.ID, "error", err)
		}
	}()
}

// releaseFunds frees the hold of a booking that lost its seats.
func (s *Service) releaseFunds(b *models.Booking) {
	if s.Wallet == nil || b.PaymentHoldID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Wallet.Release(ctx, b.PaymentHoldID); err != nil {
			s.Logger.Error("wallet release failed", "booking_id", b.ID, "error", err)
		}
	}()
}

// recomputeOpenFull flips a ride between open and full as its seat count
// crosses zero. Only those two states are derived from capacity.
func recomputeOpenFull(r *models.Ride) {
	if r.Status != models.RideOpen && r.Status != models.RideFull {
		return
	}
	if r.AvailableSeats == 0 {
		r.Status = models.RideFull
	} else {
		r.Status = models.RideOpen
	}
}
