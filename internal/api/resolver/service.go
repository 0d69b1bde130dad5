// Package resolver turns human-readable or provider-specific references into
// canonical persisted City and Place rows, creating them on first use.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderfolk/go-trip-assistant/app/observability/metrics"
	"github.com/wanderfolk/go-trip-assistant/internal/api"
	"github.com/wanderfolk/go-trip-assistant/internal/api/mapping"
	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	ResolveCity(ctx context.Context, q api.Querier, name, countryHint string) (*types.City, error)
	ResolvePlace(ctx context.Context, q api.Querier, externalID, nameHint string) (*types.Place, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	maps   mapping.Client
	cache  *cache.Cache
}

func NewServiceImpl(repo Repository, maps mapping.Client, c *cache.Cache, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		maps:   maps,
		cache:  c,
	}
}

// ResolveCity returns the canonical city for a human-readable name, creating
// it from a provider lookup on local miss. Only lookups made outside a
// transaction are cached; rows read or created through the caller's
// transaction may still be rolled back with it.
func (s *ServiceImpl) ResolveCity(ctx context.Context, q api.Querier, name, countryHint string) (*types.City, error) {
	ctx, span := otel.Tracer("ResolverService").Start(ctx, "ResolveCity", trace.WithAttributes(
		attribute.String("city.name", name),
		attribute.String("city.country_hint", countryHint),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ResolveCity"), slog.String("cityName", name))

	if strings.TrimSpace(name) == "" {
		span.SetStatus(codes.Error, "Missing city name")
		return nil, fmt.Errorf("city name is required: %w", types.ErrValidation)
	}

	cacheKey := cityCacheKey(name, countryHint)
	if cached, found := s.cache.Get(cacheKey); found {
		if m := metrics.Get(); m != nil {
			m.ResolverCacheHits.Add(ctx, 1)
		}
		city := cached.(types.City)
		span.SetStatus(codes.Ok, "City served from cache")
		return &city, nil
	}

	city, err := s.lookupCity(ctx, q, name, countryHint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "City lookup failed")
		return nil, err
	}
	if city != nil {
		if !inTransaction(q) {
			s.cache.Set(cacheKey, *city, cache.DefaultExpiration)
		}
		span.SetStatus(codes.Ok, "City resolved locally")
		return city, nil
	}

	if m := metrics.Get(); m != nil {
		m.ResolverProviderCalls.Add(ctx, 1)
	}
	searchQuery := name
	if countryHint != "" {
		searchQuery = fmt.Sprintf("%s, %s", name, countryHint)
	}
	candidates, err := s.maps.SearchCities(ctx, searchQuery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Provider city search failed")
		return nil, fmt.Errorf("city search for %q failed: %w", name, err)
	}
	if len(candidates) == 0 {
		span.SetStatus(codes.Error, "No city candidates")
		return nil, fmt.Errorf("city %q: %w", name, types.ErrNotFound)
	}
	best := candidates[0]

	country, err := s.findOrCreateCountry(ctx, q, best.CountryName, best.CountryCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Country resolution failed")
		return nil, err
	}

	newCity := types.City{
		Name:        best.Name,
		CountryID:   country.ID,
		CountryName: country.Name,
	}
	if best.ID != "" {
		newCity.ExternalID = &best.ID
	}
	id, err := s.repo.CreateCity(ctx, q, newCity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "City creation failed")
		return nil, fmt.Errorf("failed to create city %q: %w", name, err)
	}
	if id == uuid.Nil {
		// A concurrent resolution won the insert race; adopt its row.
		l.WarnContext(ctx, "City insert lost uniqueness race, adopting existing row")
		existing, findErr := s.repo.FindCityByNameAndCountry(ctx, q, newCity.Name, country.Name)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("city %q vanished after insert race: %w", name, types.ErrNotFound)
		}
		span.SetStatus(codes.Ok, "City adopted after race")
		return existing, nil
	}
	newCity.ID = id

	l.InfoContext(ctx, "City created from provider lookup",
		slog.String("cityID", id.String()),
		slog.String("country", country.Name))
	span.SetStatus(codes.Ok, "City created")
	return &newCity, nil
}

// ResolvePlace returns the canonical place for an external provider id. A
// place cannot be resolved by name alone; a missing id fails straight away.
// City resolution during place creation is tolerated to fail: the place is
// kept with a nil city reference.
func (s *ServiceImpl) ResolvePlace(ctx context.Context, q api.Querier, externalID, nameHint string) (*types.Place, error) {
	ctx, span := otel.Tracer("ResolverService").Start(ctx, "ResolvePlace", trace.WithAttributes(
		attribute.String("place.external_id", externalID),
		attribute.String("place.name_hint", nameHint),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ResolvePlace"), slog.String("externalID", externalID))

	if strings.TrimSpace(externalID) == "" {
		span.SetStatus(codes.Error, "Missing external id")
		return nil, fmt.Errorf("place %q: %w", nameHint, types.ErrMissingIdentifier)
	}

	place, err := s.repo.FindPlaceByExternalID(ctx, q, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place lookup failed")
		return nil, err
	}
	if place != nil {
		span.SetStatus(codes.Ok, "Place resolved locally")
		return place, nil
	}

	if m := metrics.Get(); m != nil {
		m.ResolverProviderCalls.Add(ctx, 1)
	}
	details, err := s.maps.GetPlaceDetails(ctx, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Provider place details failed")
		return nil, fmt.Errorf("place details for %q failed: %w", externalID, err)
	}
	if details == nil && nameHint != "" {
		details, err = s.maps.SearchPlace(ctx, nameHint)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Provider place search failed")
			return nil, fmt.Errorf("place search for %q failed: %w", nameHint, err)
		}
	}
	if details == nil {
		span.SetStatus(codes.Error, "Place not found at provider")
		return nil, fmt.Errorf("place %q: %w", externalID, types.ErrNotFound)
	}

	newPlace := types.Place{
		ExternalID: externalID,
		Name:       details.Name,
		Address:    details.FormattedAddress,
		Rating:     details.Rating,
		PriceLevel: details.PriceLevel,
		Types:      details.Types,
	}
	if details.ID != "" {
		newPlace.ExternalID = details.ID
	}

	if details.City != "" {
		city, cityErr := s.ResolveCity(ctx, q, details.City, details.CountryName)
		if cityErr != nil {
			l.WarnContext(ctx, "City resolution for place failed, keeping place without city",
				slog.String("city", details.City), slog.Any("error", cityErr))
		} else {
			newPlace.CityID = &city.ID
			newPlace.CityName = city.Name
		}
	}

	id, err := s.repo.CreatePlace(ctx, q, newPlace)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place creation failed")
		return nil, fmt.Errorf("failed to create place %q: %w", details.Name, err)
	}
	if id == uuid.Nil {
		l.WarnContext(ctx, "Place insert lost uniqueness race, adopting existing row")
		existing, findErr := s.repo.FindPlaceByExternalID(ctx, q, newPlace.ExternalID)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("place %q vanished after insert race: %w", newPlace.ExternalID, types.ErrNotFound)
		}
		span.SetStatus(codes.Ok, "Place adopted after race")
		return existing, nil
	}
	newPlace.ID = id

	l.InfoContext(ctx, "Place created from provider lookup",
		slog.String("placeID", id.String()),
		slog.String("name", newPlace.Name))
	span.SetStatus(codes.Ok, "Place created")
	return &newPlace, nil
}

func (s *ServiceImpl) lookupCity(ctx context.Context, q api.Querier, name, countryHint string) (*types.City, error) {
	if countryHint != "" {
		return s.repo.FindCityByNameAndCountry(ctx, q, name, countryHint)
	}
	return s.repo.FindCityByName(ctx, q, name)
}

func (s *ServiceImpl) findOrCreateCountry(ctx context.Context, q api.Querier, name, isoCode string) (*types.Country, error) {
	country, err := s.repo.FindCountryByISO(ctx, q, isoCode)
	if err != nil {
		return nil, err
	}
	if country != nil {
		return country, nil
	}

	id, err := s.repo.CreateCountry(ctx, q, name, isoCode)
	if err != nil {
		return nil, fmt.Errorf("failed to create country %q: %w", name, err)
	}
	if id == uuid.Nil {
		existing, findErr := s.repo.FindCountryByISO(ctx, q, isoCode)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("country %q vanished after insert race: %w", name, types.ErrNotFound)
		}
		return existing, nil
	}
	return &types.Country{ID: id, Name: name, ISOCode: isoCode}, nil
}

func cityCacheKey(name, country string) string {
	return "city:" + strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(country))
}

func inTransaction(q api.Querier) bool {
	_, ok := q.(pgx.Tx)
	return ok
}
