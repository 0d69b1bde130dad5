// Package trip persists the trip aggregate: the trip row itself plus its
// ordered city/place memberships and itinerary days. Association rows are
// only created, reordered and deleted through the change application engine.
package trip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wanderfolk/go-trip-assistant/internal/api"
	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

var _ Repository = (*PostgresRepository)(nil)

type Repository interface {
	GetTrip(ctx context.Context, q api.Querier, tripID uuid.UUID) (*types.Trip, error)
	ListTripCities(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripCity, error)
	ListTripPlaces(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripPlace, error)
	ListItinerary(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.ItineraryDayDetail, error)

	GetTripCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) (*types.TripCity, error)
	FindTripCityByName(ctx context.Context, q api.Querier, tripID uuid.UUID, cityName string) (*types.TripCity, error)
	NextCityOrder(ctx context.Context, q api.Querier, tripID uuid.UUID) (int, error)
	AddTripCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID, cityOrder int) error
	RemoveTripCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) error

	HasTripPlace(ctx context.Context, q api.Querier, tripID, placeID uuid.UUID) (bool, error)
	FindTripPlaceByName(ctx context.Context, q api.Querier, tripID uuid.UUID, placeName string) (*types.TripPlace, error)
	NextDisplayOrder(ctx context.Context, q api.Querier, tripID uuid.UUID) (int, error)
	AddTripPlace(ctx context.Context, q api.Querier, tp types.TripPlace) error
	RemoveTripPlace(ctx context.Context, q api.Querier, tripID, placeID uuid.UUID) error
	DeleteTripPlacesByCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) (int64, error)

	NextDayNumber(ctx context.Context, q api.Querier, tripID uuid.UUID) (int, error)
	AddItineraryDay(ctx context.Context, q api.Querier, day types.ItineraryDay) (uuid.UUID, error)
	AddItineraryActivity(ctx context.Context, q api.Querier, activity types.ItineraryActivity) (uuid.UUID, error)
	DeleteActivitiesByPlace(ctx context.Context, q api.Querier, tripID, placeID uuid.UUID) (int64, error)
	DeleteActivitiesByCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) (int64, error)
}

type PostgresRepository struct {
	logger *slog.Logger
}

func NewPostgresRepository(logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{logger: logger}
}

func (r *PostgresRepository) GetTrip(ctx context.Context, q api.Querier, tripID uuid.UUID) (*types.Trip, error) {
	query := `SELECT id, user_id, title FROM trips WHERE id = $1`
	var trip types.Trip
	err := q.QueryRow(ctx, query, tripID).Scan(&trip.ID, &trip.UserID, &trip.Title)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	return &trip, nil
}

func (r *PostgresRepository) ListTripCities(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripCity, error) {
	query := `
        SELECT tc.trip_id, tc.city_id, c.name, co.name, tc.city_order
        FROM trip_cities tc
        JOIN cities c ON c.id = tc.city_id
        JOIN countries co ON co.id = c.country_id
        WHERE tc.trip_id = $1
        ORDER BY tc.city_order
    `
	rows, err := q.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip cities: %w", err)
	}
	defer rows.Close()

	var cities []types.TripCity
	for rows.Next() {
		var tc types.TripCity
		if err := rows.Scan(&tc.TripID, &tc.CityID, &tc.CityName, &tc.CountryName, &tc.CityOrder); err != nil {
			return nil, fmt.Errorf("failed to scan trip city: %w", err)
		}
		cities = append(cities, tc)
	}
	return cities, rows.Err()
}

func (r *PostgresRepository) ListTripPlaces(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripPlace, error) {
	query := `
        SELECT tp.trip_id, tp.place_id, tp.name, tp.address, tp.rating, tp.types, p.city_id, COALESCE(c.name, ''), tp.display_order
        FROM trip_places tp
        JOIN places p ON p.id = tp.place_id
        LEFT JOIN cities c ON c.id = p.city_id
        WHERE tp.trip_id = $1
        ORDER BY tp.display_order
    `
	rows, err := q.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip places: %w", err)
	}
	defer rows.Close()

	var places []types.TripPlace
	for rows.Next() {
		var tp types.TripPlace
		if err := rows.Scan(&tp.TripID, &tp.PlaceID, &tp.Name, &tp.Address, &tp.Rating, &tp.Types, &tp.CityID, &tp.CityName, &tp.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan trip place: %w", err)
		}
		places = append(places, tp)
	}
	return places, rows.Err()
}

func (r *PostgresRepository) ListItinerary(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.ItineraryDayDetail, error) {
	dayQuery := `
        SELECT id, trip_id, day_number, title, city_id
        FROM itinerary_days
        WHERE trip_id = $1
        ORDER BY day_number
    `
	rows, err := q.Query(ctx, dayQuery, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list itinerary days: %w", err)
	}
	defer rows.Close()

	var days []types.ItineraryDayDetail
	dayIndex := make(map[uuid.UUID]int)
	for rows.Next() {
		var day types.ItineraryDay
		if err := rows.Scan(&day.ID, &day.TripID, &day.DayNumber, &day.Title, &day.CityID); err != nil {
			return nil, fmt.Errorf("failed to scan itinerary day: %w", err)
		}
		dayIndex[day.ID] = len(days)
		days = append(days, types.ItineraryDayDetail{ItineraryDay: day, Activities: []types.ItineraryActivity{}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(days) == 0 {
		return days, nil
	}

	activityQuery := `
        SELECT a.id, a.day_id, a.place_id, a.name, a.activity_time, a.location, a.description, a.activity_order
        FROM itinerary_activities a
        JOIN itinerary_days d ON d.id = a.day_id
        WHERE d.trip_id = $1
        ORDER BY d.day_number, a.activity_order
    `
	actRows, err := q.Query(ctx, activityQuery, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list itinerary activities: %w", err)
	}
	defer actRows.Close()

	for actRows.Next() {
		var act types.ItineraryActivity
		if err := actRows.Scan(&act.ID, &act.DayID, &act.PlaceID, &act.Name, &act.Time, &act.Location, &act.Description, &act.ActivityOrder); err != nil {
			return nil, fmt.Errorf("failed to scan itinerary activity: %w", err)
		}
		if i, ok := dayIndex[act.DayID]; ok {
			days[i].Activities = append(days[i].Activities, act)
		}
	}
	return days, actRows.Err()
}

func (r *PostgresRepository) GetTripCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) (*types.TripCity, error) {
	query := `
        SELECT tc.trip_id, tc.city_id, c.name, co.name, tc.city_order
        FROM trip_cities tc
        JOIN cities c ON c.id = tc.city_id
        JOIN countries co ON co.id = c.country_id
        WHERE tc.trip_id = $1 AND tc.city_id = $2
    `
	return scanTripCity(q.QueryRow(ctx, query, tripID, cityID))
}

func (r *PostgresRepository) FindTripCityByName(ctx context.Context, q api.Querier, tripID uuid.UUID, cityName string) (*types.TripCity, error) {
	query := `
        SELECT tc.trip_id, tc.city_id, c.name, co.name, tc.city_order
        FROM trip_cities tc
        JOIN cities c ON c.id = tc.city_id
        JOIN countries co ON co.id = c.country_id
        WHERE tc.trip_id = $1 AND LOWER(c.name) = LOWER($2)
    `
	return scanTripCity(q.QueryRow(ctx, query, tripID, cityName))
}

func scanTripCity(row pgx.Row) (*types.TripCity, error) {
	var tc types.TripCity
	err := row.Scan(&tc.TripID, &tc.CityID, &tc.CityName, &tc.CountryName, &tc.CityOrder)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find trip city: %w", err)
	}
	return &tc, nil
}

// NextCityOrder computes max(existing)+1 inside the caller's transaction.
// Gaps left by removals are tolerated, never compacted.
func (r *PostgresRepository) NextCityOrder(ctx context.Context, q api.Querier, tripID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(MAX(city_order) + 1, 0) FROM trip_cities WHERE trip_id = $1`
	var next int
	if err := q.QueryRow(ctx, query, tripID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next city order: %w", err)
	}
	return next, nil
}

func (r *PostgresRepository) AddTripCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID, cityOrder int) error {
	query := `INSERT INTO trip_cities (trip_id, city_id, city_order) VALUES ($1, $2, $3)`
	if _, err := q.Exec(ctx, query, tripID, cityID, cityOrder); err != nil {
		return fmt.Errorf("failed to add trip city: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveTripCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) error {
	query := `DELETE FROM trip_cities WHERE trip_id = $1 AND city_id = $2`
	if _, err := q.Exec(ctx, query, tripID, cityID); err != nil {
		return fmt.Errorf("failed to remove trip city: %w", err)
	}
	return nil
}

func (r *PostgresRepository) HasTripPlace(ctx context.Context, q api.Querier, tripID, placeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM trip_places WHERE trip_id = $1 AND place_id = $2)`
	var exists bool
	if err := q.QueryRow(ctx, query, tripID, placeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check trip place: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) FindTripPlaceByName(ctx context.Context, q api.Querier, tripID uuid.UUID, placeName string) (*types.TripPlace, error) {
	query := `
        SELECT tp.trip_id, tp.place_id, tp.name, tp.address, tp.rating, tp.types, p.city_id, COALESCE(c.name, ''), tp.display_order
        FROM trip_places tp
        JOIN places p ON p.id = tp.place_id
        LEFT JOIN cities c ON c.id = p.city_id
        WHERE tp.trip_id = $1 AND tp.name = $2
    `
	var tp types.TripPlace
	err := q.QueryRow(ctx, query, tripID, placeName).Scan(
		&tp.TripID, &tp.PlaceID, &tp.Name, &tp.Address, &tp.Rating, &tp.Types, &tp.CityID, &tp.CityName, &tp.DisplayOrder,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find trip place: %w", err)
	}
	return &tp, nil
}

func (r *PostgresRepository) NextDisplayOrder(ctx context.Context, q api.Querier, tripID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(MAX(display_order) + 1, 0) FROM trip_places WHERE trip_id = $1`
	var next int
	if err := q.QueryRow(ctx, query, tripID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next display order: %w", err)
	}
	return next, nil
}

func (r *PostgresRepository) AddTripPlace(ctx context.Context, q api.Querier, tp types.TripPlace) error {
	query := `
        INSERT INTO trip_places (trip_id, place_id, name, address, rating, types, display_order)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	if _, err := q.Exec(ctx, query, tp.TripID, tp.PlaceID, tp.Name, tp.Address, tp.Rating, tp.Types, tp.DisplayOrder); err != nil {
		return fmt.Errorf("failed to add trip place: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveTripPlace(ctx context.Context, q api.Querier, tripID, placeID uuid.UUID) error {
	query := `DELETE FROM trip_places WHERE trip_id = $1 AND place_id = $2`
	if _, err := q.Exec(ctx, query, tripID, placeID); err != nil {
		return fmt.Errorf("failed to remove trip place: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteTripPlacesByCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) (int64, error) {
	query := `
        DELETE FROM trip_places tp
        USING places p
        WHERE tp.place_id = p.id AND tp.trip_id = $1 AND p.city_id = $2
    `
	tag, err := q.Exec(ctx, query, tripID, cityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trip places for city: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) NextDayNumber(ctx context.Context, q api.Querier, tripID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(MAX(day_number) + 1, 1) FROM itinerary_days WHERE trip_id = $1`
	var next int
	if err := q.QueryRow(ctx, query, tripID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next day number: %w", err)
	}
	return next, nil
}

func (r *PostgresRepository) AddItineraryDay(ctx context.Context, q api.Querier, day types.ItineraryDay) (uuid.UUID, error) {
	query := `
        INSERT INTO itinerary_days (trip_id, day_number, title, city_id)
        VALUES ($1, $2, $3, $4) RETURNING id
    `
	var id uuid.UUID
	if err := q.QueryRow(ctx, query, day.TripID, day.DayNumber, day.Title, day.CityID).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to add itinerary day: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) AddItineraryActivity(ctx context.Context, q api.Querier, activity types.ItineraryActivity) (uuid.UUID, error) {
	query := `
        INSERT INTO itinerary_activities (day_id, place_id, name, activity_time, location, description, activity_order)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id
    `
	var id uuid.UUID
	if err := q.QueryRow(ctx, query,
		activity.DayID, activity.PlaceID, activity.Name, activity.Time,
		activity.Location, activity.Description, activity.ActivityOrder,
	).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to add itinerary activity: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) DeleteActivitiesByPlace(ctx context.Context, q api.Querier, tripID, placeID uuid.UUID) (int64, error) {
	query := `
        DELETE FROM itinerary_activities a
        USING itinerary_days d
        WHERE a.day_id = d.id AND d.trip_id = $1 AND a.place_id = $2
    `
	tag, err := q.Exec(ctx, query, tripID, placeID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete activities for place: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteActivitiesByCity removes every activity in this trip's itinerary that
// references a place belonging to the given city. Keeps the itinerary free of
// dangling place references after a city removal.
func (r *PostgresRepository) DeleteActivitiesByCity(ctx context.Context, q api.Querier, tripID, cityID uuid.UUID) (int64, error) {
	query := `
        DELETE FROM itinerary_activities a
        USING itinerary_days d, places p
        WHERE a.day_id = d.id AND a.place_id = p.id AND d.trip_id = $1 AND p.city_id = $2
    `
	tag, err := q.Exec(ctx, query, tripID, cityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete activities for city: %w", err)
	}
	return tag.RowsAffected(), nil
}
