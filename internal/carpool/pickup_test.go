package carpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/models"
)

func startedRide(t *testing.T, s *Service, passengers int) (*models.Ride, []*models.Booking) {
	t.Helper()
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", passengers)
	bookings := make([]*models.Booking, 0, passengers)
	for i := 0; i < passengers; i++ {
		b := mustRequest(t, s, string(rune('a'+i))+"-pass", ride.ID, 1)
		_, err := s.AcceptBooking(ctx, "driver-1", b.ID)
		require.NoError(t, err)
		bookings = append(bookings, b)
	}
	_, err := s.StartRide(ctx, "driver-1", ride.ID)
	require.NoError(t, err)
	return ride, bookings
}

func TestPickupRequiresInProgress(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 2)
	b := mustRequest(t, s, "pass-1", ride.ID, 1)
	_, err := s.AcceptBooking(ctx, "driver-1", b.ID)
	require.NoError(t, err)

	_, err = s.MarkPickedUp(ctx, "driver-1", b.ID)
	var is *apperrors.InvalidStateError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, "ride", is.Kind)
}

func TestPickupAndDropoff(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	_, bookings := startedRide(t, s, 1)
	b := bookings[0]

	picked, err := s.MarkPickedUp(ctx, "driver-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPickedUp, picked.Status)
	require.NotNil(t, picked.PickupAt)

	// double pickup is a state error
	_, err = s.MarkPickedUp(ctx, "driver-1", b.ID)
	var is *apperrors.InvalidStateError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, string(models.BookingPickedUp), is.Status)

	dropped, err := s.MarkDroppedOff(ctx, "driver-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingDroppedOff, dropped.Status)
	require.NotNil(t, dropped.DropoffAt)

	_, err = s.MarkDroppedOff(ctx, "driver-1", b.ID)
	require.ErrorAs(t, err, &is)
}

func TestDropoffBeforePickupFails(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	_, bookings := startedRide(t, s, 1)

	_, err := s.MarkDroppedOff(ctx, "driver-1", bookings[0].ID)
	var is *apperrors.InvalidStateError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, string(models.BookingConfirmed), is.Status)
}

// Stops can be served in any sequence: drop one passenger before the
// other is even picked up.
func TestNoOrderingAcrossBookings(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride, bookings := startedRide(t, s, 3)

	_, err := s.MarkPickedUp(ctx, "driver-1", bookings[0].ID)
	require.NoError(t, err)
	_, err = s.MarkDroppedOff(ctx, "driver-1", bookings[0].ID)
	require.NoError(t, err)
	_, err = s.MarkPickedUp(ctx, "driver-1", bookings[2].ID)
	require.NoError(t, err)
	_, err = s.MarkPickedUp(ctx, "driver-1", bookings[1].ID)
	require.NoError(t, err)
	_, err = s.MarkDroppedOff(ctx, "driver-1", bookings[2].ID)
	require.NoError(t, err)

	// every passenger dropped does not complete the ride by itself
	_, err = s.MarkDroppedOff(ctx, "driver-1", bookings[1].ID)
	require.NoError(t, err)
	detail, err := s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideInProgress, detail.Ride.Status)
	assertInvariant(t, s, ride.ID)
}

func TestPickupAuthorization(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	_, bookings := startedRide(t, s, 1)

	var ua *apperrors.UnauthorizedError
	_, err := s.MarkPickedUp(ctx, "driver-2", bookings[0].ID)
	require.ErrorAs(t, err, &ua)
}
