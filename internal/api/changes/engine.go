// Package changes validates and applies approved change operations to a trip
// inside a single transaction, reporting per-operation outcomes.
package changes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderfolk/go-trip-assistant/app/observability/metrics"
	"github.com/wanderfolk/go-trip-assistant/internal/api"
	"github.com/wanderfolk/go-trip-assistant/internal/api/resolver"
	"github.com/wanderfolk/go-trip-assistant/internal/api/trip"
	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

// DB is the engine's database dependency: plain queries for the ownership
// check plus transaction creation for the apply loop. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	api.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ Engine = (*EngineImpl)(nil)

type Engine interface {
	Apply(ctx context.Context, tripID, userID uuid.UUID, operations []types.ChangeOperation) (*types.ApplyReport, error)
}

type EngineImpl struct {
	logger   *slog.Logger
	db       DB
	tripRepo trip.Repository
	resolver resolver.Service
}

func NewEngineImpl(db DB, tripRepo trip.Repository, res resolver.Service, logger *slog.Logger) *EngineImpl {
	return &EngineImpl{
		logger:   logger,
		db:       db,
		tripRepo: tripRepo,
		resolver: res,
	}
}

// Apply validates ownership, then applies every approved operation in input
// order inside one transaction. The batch is all-or-nothing: the first
// failing operation aborts and rolls back everything, and the returned error
// names that operation's id. The accompanying report is only meaningful on
// full success; after a rollback its applied entries are void.
func (e *EngineImpl) Apply(ctx context.Context, tripID, userID uuid.UUID, operations []types.ChangeOperation) (*types.ApplyReport, error) {
	ctx, span := otel.Tracer("ChangeEngine").Start(ctx, "Apply", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.String("user.id", userID.String()),
		attribute.Int("operations.count", len(operations)),
	))
	defer span.End()

	l := e.logger.With(slog.String("method", "Apply"),
		slog.String("tripID", tripID.String()),
		slog.String("userID", userID.String()))

	start := time.Now()
	report := &types.ApplyReport{
		Applied: []types.OperationResult{},
		Failed:  []types.OperationResult{},
	}

	t, err := e.tripRepo.GetTrip(ctx, e.db, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip load failed")
		return nil, err
	}
	if t == nil || t.UserID != userID {
		l.WarnContext(ctx, "Trip missing or not owned by caller")
		span.SetStatus(codes.Error, "Unauthorized")
		return nil, fmt.Errorf("trip %s: %w", tripID, types.ErrUnauthorized)
	}

	approved := make([]types.ChangeOperation, 0, len(operations))
	for _, op := range operations {
		if op.Approved {
			approved = append(approved, op)
		}
	}
	if len(approved) == 0 {
		l.InfoContext(ctx, "No approved operations, nothing to apply")
		span.SetStatus(codes.Ok, "Nothing to apply")
		return report, nil
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to start transaction")
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range approved {
		if err := e.applyOperation(ctx, tx, tripID, op); err != nil {
			l.ErrorContext(ctx, "Operation failed, rolling back batch",
				slog.String("operationID", op.OperationID),
				slog.String("operation", string(op.Operation)),
				slog.Any("error", err))
			report.Failed = append(report.Failed, types.OperationResult{
				OperationID: op.OperationID,
				Status:      "failed",
				Error:       err.Error(),
			})
			e.recordApply(ctx, op.Operation, "failed", start)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Batch rolled back")
			return report, fmt.Errorf("operation %s failed: %w", op.OperationID, err)
		}
		report.Applied = append(report.Applied, types.OperationResult{
			OperationID: op.OperationID,
			Status:      "success",
		})
		if m := metrics.Get(); m != nil {
			m.OperationsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("kind", string(op.Operation)),
				attribute.String("outcome", "success"),
			))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Commit failed")
		return report, fmt.Errorf("failed to commit transaction: %w", err)
	}

	e.recordApply(ctx, "", "success", start)
	l.InfoContext(ctx, "Change batch applied", slog.Int("operations", len(report.Applied)))
	span.SetStatus(codes.Ok, "Batch applied")
	return report, nil
}

// applyOperation dispatches one approved operation by kind. The switch is
// exhaustive over types.OperationKind; an unknown tag is a validation error.
func (e *EngineImpl) applyOperation(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, op types.ChangeOperation) error {
	switch op.Operation {
	case types.OpAddCity:
		return e.applyAddCity(ctx, tx, tripID, op)
	case types.OpRemoveCity:
		return e.applyRemoveCity(ctx, tx, tripID, op)
	case types.OpAddPlace:
		return e.applyAddPlace(ctx, tx, tripID, op)
	case types.OpRemovePlace:
		return e.applyRemovePlace(ctx, tx, tripID, op)
	case types.OpAddItinerary:
		return e.applyAddItinerary(ctx, tx, tripID, op)
	default:
		return fmt.Errorf("unknown operation kind %q: %w", op.Operation, types.ErrValidation)
	}
}

func (e *EngineImpl) applyAddCity(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, op types.ChangeOperation) error {
	var data types.AddCityData
	if err := json.Unmarshal(op.Data, &data); err != nil {
		return fmt.Errorf("malformed ADD_CITY data: %w", types.ErrValidation)
	}
	if data.CityName == "" {
		return fmt.Errorf("ADD_CITY requires city_name: %w", types.ErrValidation)
	}

	city, err := e.resolver.ResolveCity(ctx, tx, data.CityName, data.Country)
	if err != nil {
		return err
	}

	existing, err := e.tripRepo.GetTripCity(ctx, tx, tripID, city.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("city %q is already part of the trip: %w", city.Name, types.ErrConflict)
	}

	order, err := e.tripRepo.NextCityOrder(ctx, tx, tripID)
	if err != nil {
		return err
	}
	return e.tripRepo.AddTripCity(ctx, tx, tripID, city.ID, order)
}

func (e *EngineImpl) applyRemoveCity(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, op types.ChangeOperation) error {
	var data types.RemoveCityData
	if err := json.Unmarshal(op.Data, &data); err != nil {
		return fmt.Errorf("malformed REMOVE_CITY data: %w", types.ErrValidation)
	}
	if data.CityID == "" && data.CityName == "" {
		return fmt.Errorf("REMOVE_CITY requires city_id or city_name: %w", types.ErrValidation)
	}

	member, err := e.findCityMember(ctx, tx, tripID, data.CityID, data.CityName)
	if err != nil {
		return err
	}
	if member == nil {
		return fmt.Errorf("city %q is not part of the trip: %w", data.CityName, types.ErrNotFound)
	}

	if err := e.tripRepo.RemoveTripCity(ctx, tx, tripID, member.CityID); err != nil {
		return err
	}
	placesRemoved, err := e.tripRepo.DeleteTripPlacesByCity(ctx, tx, tripID, member.CityID)
	if err != nil {
		return err
	}
	activitiesRemoved, err := e.tripRepo.DeleteActivitiesByCity(ctx, tx, tripID, member.CityID)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "City removed with cascade",
		slog.String("tripID", tripID.String()),
		slog.String("cityID", member.CityID.String()),
		slog.Int64("places_removed", placesRemoved),
		slog.Int64("activities_removed", activitiesRemoved))
	return nil
}

func (e *EngineImpl) applyAddPlace(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, op types.ChangeOperation) error {
	var data types.AddPlaceData
	if err := json.Unmarshal(op.Data, &data); err != nil {
		return fmt.Errorf("malformed ADD_PLACE data: %w", types.ErrValidation)
	}

	// The city name sharpens the provider's name-search fallback when the
	// external id yields nothing.
	nameHint := data.PlaceName
	if data.CityName != "" && data.PlaceName != "" {
		nameHint = fmt.Sprintf("%s, %s", data.PlaceName, data.CityName)
	}
	place, err := e.resolver.ResolvePlace(ctx, tx, data.PlaceID, nameHint)
	if err != nil {
		return err
	}

	exists, err := e.tripRepo.HasTripPlace(ctx, tx, tripID, place.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("place %q is already part of the trip: %w", place.Name, types.ErrConflict)
	}

	order, err := e.tripRepo.NextDisplayOrder(ctx, tx, tripID)
	if err != nil {
		return err
	}
	if err := e.tripRepo.AddTripPlace(ctx, tx, types.TripPlace{
		TripID:       tripID,
		PlaceID:      place.ID,
		Name:         place.Name,
		Address:      place.Address,
		Rating:       place.Rating,
		Types:        place.Types,
		DisplayOrder: order,
	}); err != nil {
		return err
	}

	// Auto-association: adding a place pulls its city into the trip. Failure
	// here is non-fatal; the place addition itself still succeeds.
	if place.CityID != nil {
		if err := e.autoAddCity(ctx, tx, tripID, *place.CityID); err != nil {
			e.logger.WarnContext(ctx, "Auto-adding place's city failed",
				slog.String("tripID", tripID.String()),
				slog.String("cityID", place.CityID.String()),
				slog.Any("error", err))
		}
	}
	return nil
}

func (e *EngineImpl) applyRemovePlace(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, op types.ChangeOperation) error {
	var data types.RemovePlaceData
	if err := json.Unmarshal(op.Data, &data); err != nil {
		return fmt.Errorf("malformed REMOVE_PLACE data: %w", types.ErrValidation)
	}
	if data.PlaceName == "" {
		return fmt.Errorf("REMOVE_PLACE requires place_name: %w", types.ErrValidation)
	}

	member, err := e.tripRepo.FindTripPlaceByName(ctx, tx, tripID, data.PlaceName)
	if err != nil {
		return err
	}
	if member == nil {
		return fmt.Errorf("place %q is not part of the trip: %w", data.PlaceName, types.ErrNotFound)
	}

	if err := e.tripRepo.RemoveTripPlace(ctx, tx, tripID, member.PlaceID); err != nil {
		return err
	}
	if _, err := e.tripRepo.DeleteActivitiesByPlace(ctx, tx, tripID, member.PlaceID); err != nil {
		return err
	}
	return nil
}

func (e *EngineImpl) applyAddItinerary(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, op types.ChangeOperation) error {
	var data types.AddItineraryData
	if err := json.Unmarshal(op.Data, &data); err != nil {
		return fmt.Errorf("malformed ADD_ITINERARY data: %w", types.ErrValidation)
	}
	if len(data.Days) == 0 {
		return fmt.Errorf("ADD_ITINERARY requires at least one day: %w", types.ErrValidation)
	}

	var cityID *uuid.UUID
	if data.CityName != "" {
		member, err := e.tripRepo.FindTripCityByName(ctx, tx, tripID, data.CityName)
		if err != nil {
			return err
		}
		if member != nil {
			cityID = &member.CityID
		}
	}

	next, err := e.tripRepo.NextDayNumber(ctx, tx, tripID)
	if err != nil {
		return err
	}

	for i, dayData := range data.Days {
		dayID, err := e.tripRepo.AddItineraryDay(ctx, tx, types.ItineraryDay{
			TripID:    tripID,
			DayNumber: next + i,
			Title:     dayData.Title,
			CityID:    cityID,
		})
		if err != nil {
			return err
		}

		for j, actData := range dayData.Activities {
			if actData.Name == "" {
				return fmt.Errorf("activity at day %d index %d has no name: %w", next+i, j, types.ErrValidation)
			}

			// Place resolution for an activity is best-effort: the activity
			// is created either way, with a nil place on failure.
			var placeID *uuid.UUID
			if actData.PlaceID != "" {
				place, resolveErr := e.resolver.ResolvePlace(ctx, tx, actData.PlaceID, actData.Name)
				if resolveErr != nil {
					e.logger.WarnContext(ctx, "Place resolution for activity failed",
						slog.String("placeID", actData.PlaceID),
						slog.String("activity", actData.Name),
						slog.Any("error", resolveErr))
				} else {
					placeID = &place.ID
				}
			}

			if _, err := e.tripRepo.AddItineraryActivity(ctx, tx, types.ItineraryActivity{
				DayID:         dayID,
				PlaceID:       placeID,
				Name:          actData.Name,
				Time:          actData.Time,
				Location:      actData.Location,
				Description:   actData.Description,
				ActivityOrder: j,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *EngineImpl) findCityMember(ctx context.Context, q api.Querier, tripID uuid.UUID, cityID, cityName string) (*types.TripCity, error) {
	if cityID != "" {
		if id, err := uuid.Parse(cityID); err == nil {
			member, err := e.tripRepo.GetTripCity(ctx, q, tripID, id)
			if err != nil || member != nil {
				return member, err
			}
		}
	}
	if cityName != "" {
		return e.tripRepo.FindTripCityByName(ctx, q, tripID, cityName)
	}
	return nil, nil
}

func (e *EngineImpl) autoAddCity(ctx context.Context, tx pgx.Tx, tripID, cityID uuid.UUID) error {
	existing, err := e.tripRepo.GetTripCity(ctx, tx, tripID, cityID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	order, err := e.tripRepo.NextCityOrder(ctx, tx, tripID)
	if err != nil {
		return err
	}
	return e.tripRepo.AddTripCity(ctx, tx, tripID, cityID, order)
}

func (e *EngineImpl) recordApply(ctx context.Context, kind types.OperationKind, outcome string, start time.Time) {
	m := metrics.Get()
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	m.ApplyRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ApplyDurationSeconds.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	if outcome == "failed" && kind != "" {
		m.OperationsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("outcome", "failed"),
		))
	}
}
