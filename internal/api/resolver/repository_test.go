package resolver

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

func newTestRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewPostgresRepository(logger), pool
}

func TestFindCityByNameAndCountry(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	cityID := uuid.New()
	countryID := uuid.New()
	externalID := "ext-lisbon"

	pool.ExpectQuery(regexp.QuoteMeta(`LOWER(c.name) = LOWER($1) AND LOWER(co.name) = LOWER($2)`)).
		WithArgs("lisbon", "portugal").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "country_id", "country", "external_id"}).
			AddRow(cityID, "Lisbon", countryID, "Portugal", &externalID))

	city, err := repo.FindCityByNameAndCountry(ctx, pool, "lisbon", "portugal")
	require.NoError(t, err)
	require.NotNil(t, city)
	assert.Equal(t, cityID, city.ID)
	assert.Equal(t, "Portugal", city.CountryName)
	require.NotNil(t, city.ExternalID)
	assert.Equal(t, "ext-lisbon", *city.ExternalID)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestFindCityByName_NotFound(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	pool.ExpectQuery(regexp.QuoteMeta(`LOWER(c.name) = LOWER($1)`)).
		WithArgs("Atlantis").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "country_id", "country", "external_id"}))

	city, err := repo.FindCityByName(ctx, pool, "Atlantis")
	require.NoError(t, err)
	assert.Nil(t, city)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestCreateCity(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	cityID := uuid.New()
	countryID := uuid.New()
	externalID := "ext-porto"

	pool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO cities (name, country_id, external_id)`)).
		WithArgs("Porto", countryID, &externalID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(cityID))

	id, err := repo.CreateCity(ctx, pool, types.City{
		Name:       "Porto",
		CountryID:  countryID,
		ExternalID: &externalID,
	})
	require.NoError(t, err)
	assert.Equal(t, cityID, id)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestCreateCity_ConflictYieldsNoRow(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	countryID := uuid.New()

	// A concurrent insert already holds (name, country_id); the statement
	// does nothing and returns no row, which must not surface as an error.
	pool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO cities (name, country_id, external_id)`)).
		WithArgs("Porto", countryID, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	id, err := repo.CreateCity(ctx, pool, types.City{
		Name:      "Porto",
		CountryID: countryID,
	})
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestFindCountryByISO(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	countryID := uuid.New()
	pool.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, iso_code FROM countries WHERE iso_code = $1`)).
		WithArgs("PT").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "iso_code"}).
			AddRow(countryID, "Portugal", "PT"))

	country, err := repo.FindCountryByISO(ctx, pool, "PT")
	require.NoError(t, err)
	require.NotNil(t, country)
	assert.Equal(t, "Portugal", country.Name)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestFindPlaceByExternalID(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	placeID := uuid.New()
	cityID := uuid.New()

	pool.ExpectQuery(regexp.QuoteMeta(`WHERE p.external_id = $1`)).
		WithArgs("ext-123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "external_id", "name", "address", "city_id", "city_name", "rating", "price_level", "types"}).
			AddRow(placeID, "ext-123", "Time Out Market", "Av. 24 de Julho", &cityID, "Lisbon", 4.6, 2, []string{"food_hall"}))

	place, err := repo.FindPlaceByExternalID(ctx, pool, "ext-123")
	require.NoError(t, err)
	require.NotNil(t, place)
	assert.Equal(t, placeID, place.ID)
	assert.Equal(t, "Lisbon", place.CityName)
	require.NotNil(t, place.CityID)
	assert.Equal(t, cityID, *place.CityID)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestFindPlaceByExternalID_NotFound(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	pool.ExpectQuery(regexp.QuoteMeta(`WHERE p.external_id = $1`)).
		WithArgs("ext-void").
		WillReturnRows(pgxmock.NewRows([]string{"id", "external_id", "name", "address", "city_id", "city_name", "rating", "price_level", "types"}))

	place, err := repo.FindPlaceByExternalID(ctx, pool, "ext-void")
	require.NoError(t, err)
	assert.Nil(t, place)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestCreatePlace(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	placeID := uuid.New()
	cityID := uuid.New()

	pool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO places (external_id, name, address, city_id, rating, price_level, types)`)).
		WithArgs("ext-123", "Time Out Market", "Av. 24 de Julho", &cityID, 4.6, 2, []string{"food_hall"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(placeID))

	id, err := repo.CreatePlace(ctx, pool, types.Place{
		ExternalID: "ext-123",
		Name:       "Time Out Market",
		Address:    "Av. 24 de Julho",
		CityID:     &cityID,
		Rating:     4.6,
		PriceLevel: 2,
		Types:      []string{"food_hall"},
	})
	require.NoError(t, err)
	assert.Equal(t, placeID, id)

	require.NoError(t, pool.ExpectationsWereMet())
}
