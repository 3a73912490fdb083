package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/carpool/internal/apperrors"
	"github.com/example/carpool/internal/carpool"
	"github.com/example/carpool/internal/directory"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/snapshot"
)

// Server is the driver/passenger-facing API over the booking engine.
// Identity arrives via the X-User-ID header; the gateway in front
// authenticates.
type Server struct {
	Engine    *carpool.Service
	Directory *directory.Client
	Snapshots *snapshot.Cache
	WSReg     *events.WSRegistry
	mux       *mux.Router
	logger    *slog.Logger
}

func NewServer(engine *carpool.Service, dir *directory.Client, snaps *snapshot.Cache, wsreg *events.WSRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Engine:    engine,
		Directory: dir,
		Snapshots: snaps,
		WSReg:     wsreg,
		mux:       mux.NewRouter(),
		logger:    logger,
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/rides", s.handleCreateRide).Methods("POST")
	api.HandleFunc("/rides", s.handleListRides).Methods("GET")
	api.HandleFunc("/rides/{ride_id}", s.handleGetRide).Methods("GET")
	api.HandleFunc("/rides/{ride_id}", s.handleEditRide).Methods("PATCH")
	api.HandleFunc("/rides/{ride_id}/availability", s.handleAvailability).Methods("GET")
	api.HandleFunc("/rides/{ride_id}/bookings", s.handleRequestBooking).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/start", s.handleStartRide).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/complete", s.handleCompleteRide).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/cancel", s.handleCancelRide).Methods("POST")
	api.HandleFunc("/drivers/{driver_id}/requests", s.handlePendingRequests).Methods("GET")
	api.HandleFunc("/bookings/{booking_id}/accept", s.handleAcceptBooking).Methods("POST")
	api.HandleFunc("/bookings/{booking_id}/reject", s.handleRejectBooking).Methods("POST")
	api.HandleFunc("/bookings/{booking_id}/cancel", s.handleCancelBooking).Methods("POST")
	api.HandleFunc("/bookings/{booking_id}/pickup", s.handlePickup).Methods("POST")
	api.HandleFunc("/bookings/{booking_id}/dropoff", s.handleDropoff).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// actor extracts the acting user id, failing the request when absent.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing X-User-ID header"})
		return "", false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to HTTP statuses and attaches the resync
// detail clients use to refresh stale state.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var is *apperrors.InvalidStateError
	if errors.As(err, &is) {
		body["current_status"] = is.Status
	}
	var ns *apperrors.InsufficientSeatsError
	if errors.As(err, &ns) {
		body["available_seats"] = ns.Available
		body["seats_requested"] = ns.Requested
	}
	code := apperrors.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		body["error"] = "internal error"
	}
	s.writeJSON(w, code, body)
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	driverID, ok := s.actor(w, r)
	if !ok {
		return
	}
	var spec carpool.RideSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, apperrors.NewValidation("body", err.Error()))
		return
	}
	ride, err := s.Engine.CreateRide(r.Context(), driverID, spec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	driverID := r.URL.Query().Get("driver_id")
	if driverID == "" {
		if id, ok := s.actor(w, r); ok {
			driverID = id
		} else {
			return
		}
	}
	var status *models.RideStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := models.RideStatus(v)
		status = &st
	}
	rides, err := s.Engine.ListRides(r.Context(), driverID, status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

type rideDetailResponse struct {
	Ride       *models.Ride                 `json:"ride"`
	Bookings   []*models.Booking            `json:"bookings"`
	Driver     *directory.Profile           `json:"driver,omitempty"`
	Passengers map[string]directory.Profile `json:"passengers,omitempty"`
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	detail, err := s.Engine.GetRide(r.Context(), rideID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := rideDetailResponse{Ride: detail.Ride, Bookings: detail.Bookings}
	// enrichment is best-effort; a directory outage degrades to ids only
	if s.Directory != nil {
		if p, err := s.Directory.Driver(r.Context(), detail.Ride.DriverID); err == nil {
			resp.Driver = &p
		}
		resp.Passengers = make(map[string]directory.Profile)
		for _, b := range detail.Bookings {
			if _, seen := resp.Passengers[b.PassengerID]; seen {
				continue
			}
			if p, err := s.Directory.Passenger(r.Context(), b.PassengerID); err == nil {
				resp.Passengers[b.PassengerID] = p
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEditRide(w http.ResponseWriter, r *http.Request) {
	driverID, ok := s.actor(w, r)
	if !ok {
		return
	}
	var patch carpool.RidePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, apperrors.NewValidation("body", err.Error()))
		return
	}
	ride, err := s.Engine.EditRide(r.Context(), driverID, mux.Vars(r)["ride_id"], patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

// handleAvailability serves the polling path from the redis snapshot,
// falling back to the store when the cache is cold.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	if s.Snapshots != nil {
		if snap, ok := s.Snapshots.Get(r.Context(), rideID); ok {
			s.writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	detail, err := s.Engine.GetRide(r.Context(), rideID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot.Snapshot{
		RideID:         detail.Ride.ID,
		Status:         string(detail.Ride.Status),
		AvailableSeats: detail.Ride.AvailableSeats,
		TotalSeats:     detail.Ride.TotalSeats,
		Updated:        detail.Ride.UpdatedAt,
	})
}

type bookingRequest struct {
	SeatsRequested int          `json:"seats_requested"`
	Pickup         *models.Stop `json:"pickup,omitempty"`
	Dropoff        *models.Stop `json:"dropoff,omitempty"`
}

func (s *Server) handleRequestBooking(w http.ResponseWriter, r *http.Request) {
	passengerID, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewValidation("body", err.Error()))
		return
	}
	b, err := s.Engine.RequestBooking(r.Context(), passengerID, mux.Vars(r)["ride_id"], req.SeatsRequested, req.Pickup, req.Dropoff)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, b)
}

type pendingRequestItem struct {
	Booking   *models.Booking    `json:"booking"`
	Passenger *directory.Profile `json:"passenger,omitempty"`
}

func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	driverID, ok := s.actor(w, r)
	if !ok {
		return
	}
	if driverID != mux.Vars(r)["driver_id"] {
		s.writeError(w, &apperrors.UnauthorizedError{Reason: "cannot read another driver's requests"})
		return
	}
	bookings, err := s.Engine.PendingRequests(r.Context(), driverID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]pendingRequestItem, 0, len(bookings))
	for _, b := range bookings {
		item := pendingRequestItem{Booking: b}
		if s.Directory != nil {
			if p, err := s.Directory.Passenger(r.Context(), b.PassengerID); err == nil {
				item.Passenger = &p
			}
		}
		items = append(items, item)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"requests": items})
}

func (s *Server) handleAcceptBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.Engine.AcceptBooking)
}

func (s *Server) handleRejectBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.Engine.RejectBooking)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.Engine.CancelBooking)
}

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.Engine.MarkPickedUp)
}

func (s *Server) handleDropoff(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.Engine.MarkDroppedOff)
}

func (s *Server) bookingAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, bookingID string) (*models.Booking, error)) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	b, err := fn(r.Context(), actorID, mux.Vars(r)["booking_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleStartRide(w http.ResponseWriter, r *http.Request) {
	driverID, ok := s.actor(w, r)
	if !ok {
		return
	}
	ride, err := s.Engine.StartRide(r.Context(), driverID, mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	driverID, ok := s.actor(w, r)
	if !ok {
		return
	}
	res, err := s.Engine.CompleteRide(r.Context(), driverID, mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	driverID, ok := s.actor(w, r)
	if !ok {
		return
	}
	ride, err := s.Engine.CancelRide(r.Context(), driverID, mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Snapshots != nil {
		if err := s.Snapshots.Ping(r.Context()); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.WSReg == nil {
		http.Error(w, "websocket disabled", http.StatusNotImplemented)
		return
	}
	userID := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(userID, conn)
}
