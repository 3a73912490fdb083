package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/carpool/internal/events"
)

// fakeUpdater implements SnapshotUpdater for tests
type fakeUpdater struct {
	fail  int // number of times to fail before succeeding
	calls int
	last  struct {
		rideID    string
		status    string
		available int
	}
}

func (f *fakeUpdater) Set(ctx context.Context, rideID, status string, available, total int) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("snapshot fail")
	}
	f.last.rideID = rideID
	f.last.status = status
	f.last.available = available
	return nil
}

func TestUpdateSnapshotWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{fail: 2}
	ev := events.RideEvent{Type: events.BookingAccepted, RideID: "r1", RideStatus: "full", AvailableSeats: 0, TotalSeats: 4}
	ctx := context.Background()
	start := time.Now()
	if err := updateSnapshotWithRetry(ctx, f, ev, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.last.rideID != "r1" || f.last.status != "full" || f.last.available != 0 {
		t.Fatalf("unexpected snapshot payload: %+v", f.last)
	}
}

func TestUpdateSnapshotWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{fail: 5}
	ev := events.RideEvent{Type: events.RideStarted, RideID: "r1", RideStatus: "in_progress"}
	ctx := context.Background()
	if err := updateSnapshotWithRetry(ctx, f, ev, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
