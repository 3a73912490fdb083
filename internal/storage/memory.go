package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/carpool/internal/models"
)

// MemoryStore is the in-process fallback used when no PG_DSN is
// configured, and the workhorse of the test suite.
type MemoryStore struct {
	mu       sync.RWMutex
	rides    map[string]*models.Ride
	bookings map[string]*models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:    make(map[string]*models.Ride),
		bookings: make(map[string]*models.Booking),
	}
}

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListRides(ctx context.Context, driverID string, status *models.RideStatus) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Ride, 0)
	for _, r := range m.rides {
		if r.DriverID != driverID {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (m *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) ListRideBookings(ctx context.Context, rideID string) ([]*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Booking, 0)
	for _, b := range m.bookings {
		if b.RideID == rideID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListPendingForDriver(ctx context.Context, driverID string) ([]*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Booking, 0)
	for _, b := range m.bookings {
		if b.Status != models.BookingPending {
			continue
		}
		r, ok := m.rides[b.RideID]
		if !ok || r.DriverID != driverID || r.Status.Terminal() {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Commit(ctx context.Context, ride *models.Ride, bookings ...*models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rides[ride.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != ride.Version {
		return ErrVersionConflict
	}
	rcp := *ride
	rcp.Version++
	rcp.UpdatedAt = time.Now()
	m.rides[ride.ID] = &rcp
	ride.Version = rcp.Version
	for _, b := range bookings {
		bcp := *b
		m.bookings[b.ID] = &bcp
	}
	return nil
}

func (m *MemoryStore) SetBookingHold(ctx context.Context, bookingID, holdID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	b.PaymentHoldID = holdID
	return nil
}
