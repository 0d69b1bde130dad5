// Package tripctx builds the serializable trip snapshot the proposal
// generator embeds in its prompt.
package tripctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderfolk/go-trip-assistant/internal/api"
	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	BuildContext(ctx context.Context, tripID, userID uuid.UUID) (*types.TripContext, error)
}

// TripReader is the read-only slice of the trip repository this builder
// needs. trip.Repository satisfies it.
type TripReader interface {
	GetTrip(ctx context.Context, q api.Querier, tripID uuid.UUID) (*types.Trip, error)
	ListTripCities(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripCity, error)
	ListTripPlaces(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripPlace, error)
	ListItinerary(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.ItineraryDayDetail, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	db       api.Querier
	tripRepo TripReader
}

func NewServiceImpl(db api.Querier, tripRepo TripReader, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		db:       db,
		tripRepo: tripRepo,
	}
}

// BuildContext assembles the current cities, places and itinerary of a trip
// into a plain snapshot. Pure projection, nothing is persisted. The snapshot
// is only handed to the trip's owner.
func (s *ServiceImpl) BuildContext(ctx context.Context, tripID, userID uuid.UUID) (*types.TripContext, error) {
	ctx, span := otel.Tracer("TripContextService").Start(ctx, "BuildContext", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "BuildContext"), slog.String("tripID", tripID.String()))

	t, err := s.tripRepo.GetTrip(ctx, s.db, tripID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip load failed")
		return nil, err
	}
	if t == nil {
		span.SetStatus(codes.Error, "Trip not found")
		return nil, fmt.Errorf("trip %s: %w", tripID, types.ErrNotFound)
	}
	if t.UserID != userID {
		l.WarnContext(ctx, "Trip not owned by caller", slog.String("userID", userID.String()))
		span.SetStatus(codes.Error, "Unauthorized")
		return nil, fmt.Errorf("trip %s: %w", tripID, types.ErrUnauthorized)
	}

	cities, err := s.tripRepo.ListTripCities(ctx, s.db, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "City listing failed")
		return nil, err
	}
	places, err := s.tripRepo.ListTripPlaces(ctx, s.db, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place listing failed")
		return nil, err
	}
	days, err := s.tripRepo.ListItinerary(ctx, s.db, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary listing failed")
		return nil, err
	}

	snapshot := &types.TripContext{
		ID:        t.ID,
		Title:     t.Title,
		Cities:    make([]types.ContextCity, 0, len(cities)),
		Places:    make([]types.ContextPlace, 0, len(places)),
		Itinerary: make([]types.ContextItineraryDay, 0, len(days)),
	}
	for _, c := range cities {
		snapshot.Cities = append(snapshot.Cities, types.ContextCity{
			ID:      c.CityID,
			Name:    c.CityName,
			Country: c.CountryName,
		})
	}
	for _, p := range places {
		snapshot.Places = append(snapshot.Places, types.ContextPlace{
			Name:    p.Name,
			Address: p.Address,
			City:    p.CityName,
		})
	}
	for _, d := range days {
		day := types.ContextItineraryDay{
			DayNumber:  d.DayNumber,
			Title:      d.Title,
			Activities: make([]types.ContextActivity, 0, len(d.Activities)),
		}
		for _, a := range d.Activities {
			day.Activities = append(day.Activities, types.ContextActivity{
				Name:     a.Name,
				Time:     a.Time,
				Location: a.Location,
			})
		}
		snapshot.Itinerary = append(snapshot.Itinerary, day)
	}

	l.DebugContext(ctx, "Trip context built",
		slog.Int("cities", len(snapshot.Cities)),
		slog.Int("places", len(snapshot.Places)),
		slog.Int("days", len(snapshot.Itinerary)))
	span.SetStatus(codes.Ok, "Context built")
	return snapshot, nil
}
