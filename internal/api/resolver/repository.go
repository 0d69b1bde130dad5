package resolver

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

// Repository persists canonical cities, countries and places. All methods run
// against the supplied querier so resolution side effects inside an apply
// transaction roll back with it.
type Repository interface {
	FindCityByName(ctx context.Context, q api.Querier, name string) (*types.City, error)
	FindCityByNameAndCountry(ctx context.Context, q api.Querier, name, country string) (*types.City, error)
	CreateCity(ctx context.Context, q api.Querier, city types.City) (uuid.UUID, error)
	FindCountryByISO(ctx context.Context, q api.Querier, isoCode string) (*types.Country, error)
	CreateCountry(ctx context.Context, q api.Querier, name, isoCode string) (uuid.UUID, error)
	FindPlaceByExternalID(ctx context.Context, q api.Querier, externalID string) (*types.Place, error)
	CreatePlace(ctx context.Context, q api.Querier, place types.Place) (uuid.UUID, error)
}

type PostgresRepository struct {
	logger *slog.Logger
}

func NewPostgresRepository(logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{logger: logger}
}

func (r *PostgresRepository) FindCityByName(ctx context.Context, q api.Querier, name string) (*types.City, error) {
	query := `
        SELECT c.id, c.name, c.country_id, co.name, c.external_id
        FROM cities c
        JOIN countries co ON co.id = c.country_id
        WHERE LOWER(c.name) = LOWER($1)
        ORDER BY c.created_at
        LIMIT 1
    `
	return scanCity(q.QueryRow(ctx, query, name))
}

func (r *PostgresRepository) FindCityByNameAndCountry(ctx context.Context, q api.Querier, name, country string) (*types.City, error) {
	query := `
        SELECT c.id, c.name, c.country_id, co.name, c.external_id
        FROM cities c
        JOIN countries co ON co.id = c.country_id
        WHERE LOWER(c.name) = LOWER($1) AND LOWER(co.name) = LOWER($2)
        LIMIT 1
    `
	return scanCity(q.QueryRow(ctx, query, name, country))
}

func scanCity(row pgx.Row) (*types.City, error) {
	var city types.City
	err := row.Scan(&city.ID, &city.Name, &city.CountryID, &city.CountryName, &city.ExternalID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find city: %w", err)
	}
	return &city, nil
}

// CreateCity inserts a city. On a concurrent insert of the same
// (name, country) pair it returns uuid.Nil without error; conflicts must not
// abort the surrounding transaction, so the caller re-reads and adopts the
// winning row.
func (r *PostgresRepository) CreateCity(ctx context.Context, q api.Querier, city types.City) (uuid.UUID, error) {
	query := `
        INSERT INTO cities (name, country_id, external_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (name, country_id) DO NOTHING
        RETURNING id
    `
	var id uuid.UUID
	err := q.QueryRow(ctx, query, city.Name, city.CountryID, city.ExternalID).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to insert city: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) FindCountryByISO(ctx context.Context, q api.Querier, isoCode string) (*types.Country, error) {
	query := `SELECT id, name, iso_code FROM countries WHERE iso_code = $1`
	var country types.Country
	err := q.QueryRow(ctx, query, isoCode).Scan(&country.ID, &country.Name, &country.ISOCode)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find country: %w", err)
	}
	return &country, nil
}

// CreateCountry returns uuid.Nil without error when the ISO code already
// exists, same contract as CreateCity.
func (r *PostgresRepository) CreateCountry(ctx context.Context, q api.Querier, name, isoCode string) (uuid.UUID, error) {
	query := `
        INSERT INTO countries (name, iso_code)
        VALUES ($1, $2)
        ON CONFLICT (iso_code) DO NOTHING
        RETURNING id
    `
	var id uuid.UUID
	err := q.QueryRow(ctx, query, name, isoCode).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to insert country: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) FindPlaceByExternalID(ctx context.Context, q api.Querier, externalID string) (*types.Place, error) {
	query := `
        SELECT p.id, p.external_id, p.name, p.address, p.city_id, COALESCE(c.name, ''), p.rating, p.price_level, p.types
        FROM places p
        LEFT JOIN cities c ON c.id = p.city_id
        WHERE p.external_id = $1
    `
	var place types.Place
	err := q.QueryRow(ctx, query, externalID).Scan(
		&place.ID, &place.ExternalID, &place.Name, &place.Address,
		&place.CityID, &place.CityName, &place.Rating, &place.PriceLevel, &place.Types,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find place: %w", err)
	}
	return &place, nil
}

// CreatePlace returns uuid.Nil without error when the external id already
// exists, same contract as CreateCity.
func (r *PostgresRepository) CreatePlace(ctx context.Context, q api.Querier, place types.Place) (uuid.UUID, error) {
	query := `
        INSERT INTO places (external_id, name, address, city_id, rating, price_level, types)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (external_id) DO NOTHING
        RETURNING id
    `
	var id uuid.UUID
	err := q.QueryRow(ctx, query,
		place.ExternalID, place.Name, place.Address, place.CityID,
		place.Rating, place.PriceLevel, place.Types,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to insert place: %w", err)
	}
	return id, nil
}
