package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/example/carpool/internal/models"
)

// PostgresStore keeps rides and bookings in postgres. The rides table
// carries a version column; Commit bumps it inside a transaction so two
// writers can never both apply a stale check-then-act.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

const rideColumns = `id, driver_id, origin_address, origin_lat, origin_lon,
	dest_address, dest_lat, dest_lon, departure_time, total_seats,
	available_seats, price_per_seat, vehicle_make, vehicle_model,
	vehicle_color, vehicle_plate, women_only, ac, luggage, smoking, pets,
	status, notes, version, created_at, updated_at`

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO rides(`+rideColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`,
		r.ID, r.DriverID,
		r.Route.Origin.Address, r.Route.Origin.Coord.Lat, r.Route.Origin.Coord.Lon,
		r.Route.Destination.Address, r.Route.Destination.Coord.Lat, r.Route.Destination.Coord.Lon,
		r.DepartureTime, r.TotalSeats, r.AvailableSeats, r.PricePerSeat.String(),
		r.Vehicle.Make, r.Vehicle.Model, r.Vehicle.Color, r.Vehicle.Plate,
		r.Preferences.WomenOnly, r.Preferences.AC, r.Preferences.Luggage,
		r.Preferences.Smoking, r.Preferences.Pets,
		string(r.Status), r.Notes, r.Version, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id=$1`, id)
	return scanRide(row)
}

func (p *PostgresStore) ListRides(ctx context.Context, driverID string, status *models.RideStatus) ([]*models.Ride, error) {
	q := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id=$1`
	args := []any{driverID}
	if status != nil {
		q += ` AND status=$2`
		args = append(args, string(*status))
	}
	q += ` ORDER BY departure_time ASC`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.Ride, 0)
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var (
		r      models.Ride
		price  string
		status string
	)
	err := row.Scan(&r.ID, &r.DriverID,
		&r.Route.Origin.Address, &r.Route.Origin.Coord.Lat, &r.Route.Origin.Coord.Lon,
		&r.Route.Destination.Address, &r.Route.Destination.Coord.Lat, &r.Route.Destination.Coord.Lon,
		&r.DepartureTime, &r.TotalSeats, &r.AvailableSeats, &price,
		&r.Vehicle.Make, &r.Vehicle.Model, &r.Vehicle.Color, &r.Vehicle.Plate,
		&r.Preferences.WomenOnly, &r.Preferences.AC, &r.Preferences.Luggage,
		&r.Preferences.Smoking, &r.Preferences.Pets,
		&status, &r.Notes, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.PricePerSeat, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	r.Status = models.RideStatus(status)
	return &r, nil
}

const bookingColumns = `id, ride_id, passenger_id, seats_requested, status,
	pickup_address, pickup_lat, pickup_lon, dropoff_address, dropoff_lat,
	dropoff_lon, amount, payment_hold_id, created_at, pickup_at, dropoff_at`

func (p *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	pickAddr, pickLat, pickLon := stopColumns(b.Pickup)
	dropAddr, dropLat, dropLon := stopColumns(b.Dropoff)
	_, err := p.db.ExecContext(ctx, `INSERT INTO bookings(`+bookingColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		b.ID, b.RideID, b.PassengerID, b.SeatsRequested, string(b.Status),
		pickAddr, pickLat, pickLon, dropAddr, dropLat, dropLon,
		b.Amount.String(), b.PaymentHoldID, b.CreatedAt, b.PickupAt, b.DropoffAt)
	return err
}

func (p *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	return scanBooking(row)
}

func (p *PostgresStore) ListRideBookings(ctx context.Context, rideID string) ([]*models.Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE ride_id=$1 ORDER BY created_at ASC`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (p *PostgresStore) ListPendingForDriver(ctx context.Context, driverID string) ([]*models.Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT b.id, b.ride_id, b.passenger_id, b.seats_requested, b.status,
			b.pickup_address, b.pickup_lat, b.pickup_lon, b.dropoff_address,
			b.dropoff_lat, b.dropoff_lon, b.amount, b.payment_hold_id,
			b.created_at, b.pickup_at, b.dropoff_at
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE r.driver_id=$1 AND b.status='pending'
			AND r.status NOT IN ('completed','cancelled')
		ORDER BY b.created_at ASC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	out := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                models.Booking
		status, amount   string
		pickAddr, dAddr  sql.NullString
		pickLat, pickLon sql.NullFloat64
		dLat, dLon       sql.NullFloat64
		pickupAt, dropAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.RideID, &b.PassengerID, &b.SeatsRequested, &status,
		&pickAddr, &pickLat, &pickLon, &dAddr, &dLat, &dLon,
		&amount, &b.PaymentHoldID, &b.CreatedAt, &pickupAt, &dropAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	b.Pickup = stopFromColumns(pickAddr, pickLat, pickLon)
	b.Dropoff = stopFromColumns(dAddr, dLat, dLon)
	if pickupAt.Valid {
		t := pickupAt.Time
		b.PickupAt = &t
	}
	if dropAt.Valid {
		t := dropAt.Time
		b.DropoffAt = &t
	}
	return &b, nil
}

func stopColumns(s *models.Stop) (addr sql.NullString, lat, lon sql.NullFloat64) {
	if s == nil {
		return
	}
	addr = sql.NullString{String: s.Address, Valid: true}
	lat = sql.NullFloat64{Float64: s.Coord.Lat, Valid: true}
	lon = sql.NullFloat64{Float64: s.Coord.Lon, Valid: true}
	return
}

func stopFromColumns(addr sql.NullString, lat, lon sql.NullFloat64) *models.Stop {
	if !addr.Valid {
		return nil
	}
	return &models.Stop{Address: addr.String, Coord: models.Coord{Lat: lat.Float64, Lon: lon.Float64}}
}

func (p *PostgresStore) Commit(ctx context.Context, ride *models.Ride, bookings ...*models.Booking) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE rides SET
			departure_time=$1, total_seats=$2, available_seats=$3,
			price_per_seat=$4, status=$5, notes=$6, version=version+1,
			updated_at=$7
		WHERE id=$8 AND version=$9`,
		ride.DepartureTime, ride.TotalSeats, ride.AvailableSeats,
		ride.PricePerSeat.String(), string(ride.Status), ride.Notes,
		time.Now(), ride.ID, ride.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}

	for _, b := range bookings {
		if _, err := tx.ExecContext(ctx, `UPDATE bookings SET
				status=$1, amount=$2, pickup_at=$3, dropoff_at=$4 WHERE id=$5`,
			string(b.Status), b.Amount.String(), b.PickupAt, b.DropoffAt, b.ID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ride.Version++
	return nil
}

func (p *PostgresStore) SetBookingHold(ctx context.Context, bookingID, holdID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE bookings SET payment_hold_id=$1 WHERE id=$2`, holdID, bookingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
