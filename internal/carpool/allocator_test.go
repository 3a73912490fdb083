package carpool

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
)

func TestRequestBooking(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 4)

	b := mustRequest(t, s, "pass-1", ride.ID, 2)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.True(t, b.Amount.Equal(ride.PricePerSeat.Mul(decimalFromInt(2))))

	// no seats consumed until acceptance
	got, err := s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Ride.AvailableSeats)
	assert.Equal(t, models.RideOpen, got.Ride.Status)

	_, err = s.RequestBooking(ctx, "pass-2", ride.ID, 0, nil, nil)
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "seats_requested", ve.Field)

	_, err = s.RequestBooking(ctx, "pass-2", "missing", 1, nil, nil)
	var nf *apperrors.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRequestBookingOnFullRideStaysAllowed(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 2)
	b := mustRequest(t, s, "pass-1", ride.ID, 2)
	_, err := s.AcceptBooking(ctx, "driver-1", b.ID)
	require.NoError(t, err)

	// ride is full now, pending demand still accumulates
	got, err := s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, models.RideFull, got.Ride.Status)

	b2 := mustRequest(t, s, "pass-2", ride.ID, 1)
	assert.Equal(t, models.BookingPending, b2.Status)
}

// Scenario: total_seats=4, booking1 wants 2, booking2 wants 3. Accepting
// booking1 leaves 2 seats, so accepting booking2 must fail and leave it
// pending until the driver rejects it.
func TestOverbookingRejected(t *testing.T) {
	s, disp := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 4)
	b1 := mustRequest(t, s, "pass-1", ride.ID, 2)
	b2 := mustRequest(t, s, "pass-2", ride.ID, 3)

	acc, err := s.AcceptBooking(ctx, "driver-1", b1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, acc.Status)

	_, err = s.AcceptBooking(ctx, "driver-1", b2.ID)
	var ns *apperrors.InsufficientSeatsError
	require.ErrorAs(t, err, &ns)
	assert.Equal(t, 2, ns.Available)
	assert.Equal(t, 3, ns.Requested)

	got, err := s.Store.GetBooking(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, got.Status)

	detail, err := s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Ride.AvailableSeats)
	assertInvariant(t, s, ride.ID)

	rej, err := s.RejectBooking(ctx, "driver-1", b2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRejected, rej.Status)
	assert.Len(t, disp.ofType(events.BookingRejected), 1)
}

// Round trip: 3 seats, 2+1 accepted fills the ride, rejecting one
// reopens it with the seats restored.
func TestAcceptFillAndRejectReopens(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 3)
	b1 := mustRequest(t, s, "pass-1", ride.ID, 2)
	b2 := mustRequest(t, s, "pass-2", ride.ID, 1)

	_, err := s.AcceptBooking(ctx, "driver-1", b1.ID)
	require.NoError(t, err)
	_, err = s.AcceptBooking(ctx, "driver-1", b2.ID)
	require.NoError(t, err)

	detail, err := s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.Ride.AvailableSeats)
	assert.Equal(t, models.RideFull, detail.Ride.Status)
	assertInvariant(t, s, ride.ID)

	_, err = s.RejectBooking(ctx, "driver-1", b1.ID)
	require.NoError(t, err)

	detail, err = s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Ride.AvailableSeats)
	assert.Equal(t, models.RideOpen, detail.Ride.Status)
	assertInvariant(t, s, ride.ID)
}

// Rejecting or cancelling a terminal booking must fail loudly and never
// restore seats a second time.
func TestNoDoubleRestore(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 4)
	b := mustRequest(t, s, "pass-1", ride.ID, 2)
	_, err := s.AcceptBooking(ctx, "driver-1", b.ID)
	require.NoError(t, err)

	_, err = s.CancelBooking(ctx, "pass-1", b.ID)
	require.NoError(t, err)

	detail, err := s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 4, detail.Ride.AvailableSeats)

	_, err = s.CancelBooking(ctx, "pass-1", b.ID)
	var is *apperrors.InvalidStateError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, string(models.BookingCancelled), is.Status)

	_, err = s.RejectBooking(ctx, "driver-1", b.ID)
	require.ErrorAs(t, err, &is)

	detail, err = s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, detail.Ride.AvailableSeats)
	assertInvariant(t, s, ride.ID)
}

func TestBookingAuthorization(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 4)
	b := mustRequest(t, s, "pass-1", ride.ID, 1)

	var ua *apperrors.UnauthorizedError
	_, err := s.AcceptBooking(ctx, "driver-2", b.ID)
	require.ErrorAs(t, err, &ua)
	_, err = s.RejectBooking(ctx, "pass-1", b.ID)
	require.ErrorAs(t, err, &ua)
	_, err = s.CancelBooking(ctx, "pass-2", b.ID)
	require.ErrorAs(t, err, &ua)

	// the owning passenger and the driver may both cancel
	_, err = s.CancelBooking(ctx, "pass-1", b.ID)
	require.NoError(t, err)
	b2 := mustRequest(t, s, "pass-1", ride.ID, 1)
	_, err = s.CancelBooking(ctx, "driver-1", b2.ID)
	require.NoError(t, err)
}

// Many goroutines race to accept bookings whose total demand exceeds
// capacity; the per-ride lock must keep the invariant intact and refuse
// the overflow with InsufficientSeatsError.
func TestConcurrentAcceptsNeverOverbook(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	const seats = 5
	const requests = 20
	ride := mustCreateRide(t, s, "driver-1", seats)

	ids := make([]string, requests)
	for i := range ids {
		ids[i] = mustRequest(t, s, fmt.Sprintf("pass-%d", i), ride.ID, 1).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = s.AcceptBooking(ctx, "driver-1", id)
		}(i, id)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		var ns *apperrors.InsufficientSeatsError
		assert.ErrorAs(t, err, &ns, "unexpected error: %v", err)
	}
	assert.Equal(t, seats, accepted)

	detail, err := s.GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.Ride.AvailableSeats)
	assert.Equal(t, models.RideFull, detail.Ride.Status)
	assertInvariant(t, s, ride.ID)
}

// A request racing the ride's cancellation must never strand a pending
// booking on the terminal ride: it either lands before the cancel and is
// swept by the cascade, or it fails with an InvalidStateError.
func TestRequestRacingCancelStrandsNoPending(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	ride := mustCreateRide(t, s, "driver-1", 4)

	const requesters = 8
	var wg sync.WaitGroup
	errs := make([]error, requesters)
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.RequestBooking(ctx, fmt.Sprintf("pass-%d", i), ride.ID, 1, nil, nil)
		}(i)
	}
	_, err := s.CancelRide(ctx, "driver-1", ride.ID)
	require.NoError(t, err)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			var is *apperrors.InvalidStateError
			assert.ErrorAs(t, err, &is, "unexpected error: %v", err)
		}
	}
	bookings, err := s.Store.ListRideBookings(ctx, ride.ID)
	require.NoError(t, err)
	for _, b := range bookings {
		assert.Equal(t, models.BookingCancelled, b.Status, "booking %s", b.ID)
	}
}

func TestPendingRequestsFeed(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	r1 := mustCreateRide(t, s, "driver-1", 4)
	r2 := mustCreateRide(t, s, "driver-1", 2)
	other := mustCreateRide(t, s, "driver-2", 2)

	b1 := mustRequest(t, s, "pass-1", r1.ID, 1)
	b2 := mustRequest(t, s, "pass-2", r2.ID, 2)
	mustRequest(t, s, "pass-3", other.ID, 1)

	_, err := s.AcceptBooking(ctx, "driver-1", b1.ID)
	require.NoError(t, err)

	pending, err := s.PendingRequests(ctx, "driver-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b2.ID, pending[0].ID)
}
