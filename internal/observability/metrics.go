package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "bookings_requested_total", Help: "Booking requests created"})
	BookingsAccepted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "bookings_accepted_total", Help: "Bookings confirmed by drivers"})
	BookingsRejected  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "bookings_rejected_total", Help: "Bookings rejected by drivers"})
	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "bookings_cancelled_total", Help: "Bookings cancelled"})
	SeatConflicts     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "seat_conflicts_total", Help: "Accepts refused for insufficient seats"})

	RidesCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "rides_created_total", Help: "Rides posted"})
	RidesStarted   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "rides_started_total", Help: "Rides started"})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "rides_completed_total", Help: "Rides completed"})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "rides_cancelled_total", Help: "Rides cancelled"})
	NoShows        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "no_shows_total", Help: "Confirmed bookings never picked up before completion"})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "events_published_total", Help: "Ride events published"})
	EventErrors     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "event_errors_total", Help: "Ride event publish failures"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
