package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"skypost/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewFlightRepository(db *pgxpool.Pool) *FlightRepository {
	return &FlightRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Upsert inserts or replaces a flight by flight_number. A repeat upsert
// replaces the whole row, route included.
func (r *FlightRepository) Upsert(ctx context.Context, f *models.Flight) error {
	if f == nil {
		return fmt.Errorf("flight is nil")
	}
	if f.FlightNumber == "" {
		return fmt.Errorf("flight_number is empty")
	}
	if len(f.Route) < 2 {
		return fmt.Errorf("route needs at least 2 waypoints")
	}

	routeJSON, err := json.Marshal(f.Route)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}

	q := r.sb.
		Insert("flights").
		Columns("flight_number", "origin", "destination", "departure_at", "arrival_at", "route").
		Values(f.FlightNumber, f.Origin, f.Destination, f.DepartureAt, f.ArrivalAt, routeJSON).
		Suffix(`
ON CONFLICT (flight_number)
DO UPDATE SET
	origin = EXCLUDED.origin,
	destination = EXCLUDED.destination,
	departure_at = EXCLUDED.departure_at,
	arrival_at = EXCLUDED.arrival_at,
	route = EXCLUDED.route,
	updated_at = NOW()
`)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert flight sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert flight: %w", err)
	}
	return nil
}

func (r *FlightRepository) Get(ctx context.Context, flightNumber string) (*models.Flight, error) {
	if flightNumber == "" {
		return nil, fmt.Errorf("flight_number is empty")
	}

	q := r.sb.
		Select("flight_number", "origin", "destination", "departure_at", "arrival_at", "route", "updated_at").
		From("flights").
		Where(sq.Eq{"flight_number": flightNumber}).
		Limit(1)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get flight sql: %w", err)
	}

	var (
		f         models.Flight
		routeJSON []byte
	)
	err = r.db.QueryRow(ctx, sqlStr, args...).Scan(
		&f.FlightNumber,
		&f.Origin,
		&f.Destination,
		&f.DepartureAt,
		&f.ArrivalAt,
		&routeJSON,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get flight: %w", err)
	}

	if err := json.Unmarshal(routeJSON, &f.Route); err != nil {
		return nil, fmt.Errorf("unmarshal route: %w", err)
	}
	return &f, nil
}
