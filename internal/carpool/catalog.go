package carpool

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
)

// RideSpec is the driver's input for posting a shared ride.
type RideSpec struct {
	Route         models.Route       `json:"route"`
	DepartureTime time.Time          `json:"departure_time"`
	TotalSeats    int                `json:"total_seats"`
	PricePerSeat  decimal.Decimal    `json:"price_per_seat"`
	Vehicle       models.Vehicle     `json:"vehicle"`
	Preferences   models.Preferences `json:"preferences"`
	Notes         string             `json:"notes"`
}

func (spec *RideSpec) validate() error {
	if spec.TotalSeats < 1 {
		return apperrors.NewValidation("total_seats", "must be at least 1")
	}
	if !spec.PricePerSeat.IsPositive() {
		return apperrors.NewValidation("price_per_seat", "must be positive")
	}
	if !spec.DepartureTime.After(time.Now()) {
		return apperrors.NewValidation("departure_time", "must be in the future")
	}
	if strings.TrimSpace(spec.Route.Origin.Address) == "" {
		return apperrors.NewValidation("route.origin", "address must not be empty")
	}
	if strings.TrimSpace(spec.Route.Destination.Address) == "" {
		return apperrors.NewValidation("route.destination", "address must not be empty")
	}
	return nil
}

// CreateRide posts a new shared ride for the driver: status open, all
// seats available.
func (s *Service) CreateRide(ctx context.Context, driverID string, spec RideSpec) (*models.Ride, error) {
	if driverID == "" {
		return nil, apperrors.NewValidation("driver_id", "must not be empty")
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	ride := &models.Ride{
		ID:             uuid.NewString(),
		DriverID:       driverID,
		Route:          spec.Route,
		DepartureTime:  spec.DepartureTime,
		TotalSeats:     spec.TotalSeats,
		AvailableSeats: spec.TotalSeats,
		PricePerSeat:   spec.PricePerSeat,
		Vehicle:        spec.Vehicle,
		Preferences:    spec.Preferences,
		Status:         models.RideOpen,
		Notes:          spec.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.CreateRide(ctx, ride); err != nil {
		return nil, err
	}
	observability.RidesCreated.Inc()
	s.Logger.Info("ride created", "ride_id", ride.ID, "driver_id", driverID, "seats", ride.TotalSeats)
	return ride, nil
}

// RideDetail is a ride with all of its bookings.
type RideDetail struct {
	Ride     *models.Ride      `json:"ride"`
	Bookings []*models.Booking `json:"bookings"`
}

func (s *Service) GetRide(ctx context.Context, rideID string) (*RideDetail, error) {
	ride, err := s.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, mapStoreErr(err, "ride", rideID)
	}
	bookings, err := s.Store.ListRideBookings(ctx, rideID)
	if err != nil {
		return nil, err
	}
	return &RideDetail{Ride: ride, Bookings: bookings}, nil
}

// ListRides returns a driver's rides ordered by departure time. A nil
// filter means all statuses.
func (s *Service) ListRides(ctx context.Context, driverID string, status *models.RideStatus) ([]*models.Ride, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.NewValidation("status", "unknown ride status")
	}
	return s.Store.ListRides(ctx, driverID, status)
}

// RidePatch carries the fields a driver may edit while a ride is open.
// Nil fields are left untouched.
type RidePatch struct {
	DepartureTime *time.Time       `json:"departure_time,omitempty"`
	TotalSeats    *int             `json:"total_seats,omitempty"`
	PricePerSeat  *decimal.Decimal `json:"price_per_seat,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

// EditRide applies a patch to an open ride. Shrinking total_seats below
// the seats already confirmed is refused; capacity and the open/full
// state are recomputed when total_seats changes.
func (s *Service) EditRide(ctx context.Context, driverID, rideID string, patch RidePatch) (*models.Ride, error) {
	return s.mutateRide(ctx, rideID, func(ride *models.Ride) ([]*models.Booking, error) {
		if ride.DriverID != driverID {
			return nil, &apperrors.UnauthorizedError{Reason: "ride belongs to another driver"}
		}
		if ride.Status != models.RideOpen {
			return nil, &apperrors.InvalidStateError{Kind: "ride", ID: rideID, Status: string(ride.Status), Op: "edit"}
		}
		if patch.DepartureTime != nil {
			if !patch.DepartureTime.After(time.Now()) {
				return nil, apperrors.NewValidation("departure_time", "must be in the future")
			}
			ride.DepartureTime = *patch.DepartureTime
		}
		if patch.PricePerSeat != nil {
			if !patch.PricePerSeat.IsPositive() {
				return nil, apperrors.NewValidation("price_per_seat", "must be positive")
			}
			ride.PricePerSeat = *patch.PricePerSeat
		}
		if patch.Notes != nil {
			ride.Notes = *patch.Notes
		}
		if patch.TotalSeats != nil {
			if *patch.TotalSeats < 1 {
				return nil, apperrors.NewValidation("total_seats", "must be at least 1")
			}
			confirmed := ride.TotalSeats - ride.AvailableSeats
			if *patch.TotalSeats < confirmed {
				return nil, &apperrors.InvalidStateError{
					Kind: "ride", ID: rideID, Status: string(ride.Status),
					Op: "shrink seats below confirmed",
				}
			}
			ride.TotalSeats = *patch.TotalSeats
			ride.AvailableSeats = *patch.TotalSeats - confirmed
			recomputeOpenFull(ride)
		}
		return nil, nil
	})
}
