package carpool

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/storage"
)

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu  sync.Mutex
	evs []events.RideEvent
}

func (d *recordingDispatcher) Publish(ev events.RideEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evs = append(d.evs, ev)
	return nil
}

func (d *recordingDispatcher) ofType(t events.EventType) []events.RideEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []events.RideEvent{}
	for _, ev := range d.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *recordingDispatcher) {
	t.Helper()
	disp := &recordingDispatcher{}
	s := NewService(storage.NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Dispatch = disp
	return s, disp
}

func testSpec(seats int) RideSpec {
	return RideSpec{
		Route: models.Route{
			Origin:      models.Stop{Address: "Central Station", Coord: models.Coord{Lat: 41.0, Lon: 28.9}},
			Destination: models.Stop{Address: "Airport T2", Coord: models.Coord{Lat: 40.9, Lon: 29.3}},
		},
		DepartureTime: time.Now().Add(24 * time.Hour),
		TotalSeats:    seats,
		PricePerSeat:  decimal.NewFromInt(10),
		Vehicle:       models.Vehicle{Make: "Toyota", Model: "Corolla", Color: "grey", Plate: "34ABC123"},
	}
}

func mustCreateRide(t *testing.T, s *Service, driverID string, seats int) *models.Ride {
	t.Helper()
	ride, err := s.CreateRide(context.Background(), driverID, testSpec(seats))
	require.NoError(t, err)
	return ride
}

func mustRequest(t *testing.T, s *Service, passengerID, rideID string, seats int) *models.Booking {
	t.Helper()
	b, err := s.RequestBooking(context.Background(), passengerID, rideID, seats, nil, nil)
	require.NoError(t, err)
	return b
}

// assertInvariant checks the seat-accounting invariant for a ride:
// available = total - seats held by confirmed/picked_up/dropped_off.
func assertInvariant(t *testing.T, s *Service, rideID string) {
	t.Helper()
	detail, err := s.GetRide(context.Background(), rideID)
	require.NoError(t, err)
	held := models.SeatedSeats(detail.Bookings)
	require.LessOrEqual(t, held, detail.Ride.TotalSeats, "confirmed seats exceed capacity")
	require.Equal(t, detail.Ride.TotalSeats-held, detail.Ride.AvailableSeats, "available_seats out of sync")
}
