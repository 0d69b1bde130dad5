package tripctx

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderfolk/go-trip-assistant/internal/api"
	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

// MockTripReader is a mock implementation of TripReader
type MockTripReader struct {
	mock.Mock
}

func (m *MockTripReader) GetTrip(ctx context.Context, q api.Querier, tripID uuid.UUID) (*types.Trip, error) {
	args := m.Called(ctx, q, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripReader) ListTripCities(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripCity, error) {
	args := m.Called(ctx, q, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TripCity), args.Error(1)
}

func (m *MockTripReader) ListTripPlaces(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.TripPlace, error) {
	args := m.Called(ctx, q, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TripPlace), args.Error(1)
}

func (m *MockTripReader) ListItinerary(ctx context.Context, q api.Querier, tripID uuid.UUID) ([]types.ItineraryDayDetail, error) {
	args := m.Called(ctx, q, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ItineraryDayDetail), args.Error(1)
}

func TestBuildContext_Projection(t *testing.T) {
	ctx := context.Background()
	repo := new(MockTripReader)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := NewServiceImpl(nil, repo, logger)

	tripID := uuid.New()
	userID := uuid.New()
	cityID := uuid.New()

	repo.On("GetTrip", mock.Anything, nil, tripID).
		Return(&types.Trip{ID: tripID, UserID: userID, Title: "Iberia Loop"}, nil).Once()
	repo.On("ListTripCities", mock.Anything, nil, tripID).Return([]types.TripCity{
		{TripID: tripID, CityID: cityID, CityName: "Lisbon", CountryName: "Portugal", CityOrder: 0},
	}, nil).Once()
	repo.On("ListTripPlaces", mock.Anything, nil, tripID).Return([]types.TripPlace{
		{TripID: tripID, PlaceID: uuid.New(), Name: "Time Out Market", Address: "Av. 24 de Julho", CityName: "Lisbon"},
	}, nil).Once()
	repo.On("ListItinerary", mock.Anything, nil, tripID).Return([]types.ItineraryDayDetail{
		{
			ItineraryDay: types.ItineraryDay{DayNumber: 1, Title: "Alfama"},
			Activities: []types.ItineraryActivity{
				{Name: "Castle walk", Time: "morning", Location: "São Jorge"},
			},
		},
	}, nil).Once()

	snapshot, err := svc.BuildContext(ctx, tripID, userID)
	require.NoError(t, err)

	assert.Equal(t, tripID, snapshot.ID)
	assert.Equal(t, "Iberia Loop", snapshot.Title)
	require.Len(t, snapshot.Cities, 1)
	assert.Equal(t, "Lisbon", snapshot.Cities[0].Name)
	assert.Equal(t, "Portugal", snapshot.Cities[0].Country)
	require.Len(t, snapshot.Places, 1)
	assert.Equal(t, "Time Out Market", snapshot.Places[0].Name)
	assert.Equal(t, "Lisbon", snapshot.Places[0].City)
	require.Len(t, snapshot.Itinerary, 1)
	assert.Equal(t, 1, snapshot.Itinerary[0].DayNumber)
	require.Len(t, snapshot.Itinerary[0].Activities, 1)
	assert.Equal(t, "Castle walk", snapshot.Itinerary[0].Activities[0].Name)

	repo.AssertExpectations(t)
}

func TestBuildContext_EmptyTrip(t *testing.T) {
	ctx := context.Background()
	repo := new(MockTripReader)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := NewServiceImpl(nil, repo, logger)

	tripID := uuid.New()
	userID := uuid.New()
	repo.On("GetTrip", mock.Anything, nil, tripID).
		Return(&types.Trip{ID: tripID, UserID: userID, Title: "Blank Slate"}, nil).Once()
	repo.On("ListTripCities", mock.Anything, nil, tripID).Return([]types.TripCity{}, nil).Once()
	repo.On("ListTripPlaces", mock.Anything, nil, tripID).Return([]types.TripPlace{}, nil).Once()
	repo.On("ListItinerary", mock.Anything, nil, tripID).Return([]types.ItineraryDayDetail{}, nil).Once()

	snapshot, err := svc.BuildContext(ctx, tripID, userID)
	require.NoError(t, err)

	// Empty collections serialize as [] rather than null.
	assert.NotNil(t, snapshot.Cities)
	assert.NotNil(t, snapshot.Places)
	assert.NotNil(t, snapshot.Itinerary)
	assert.Empty(t, snapshot.Cities)
}

func TestBuildContext_TripNotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(MockTripReader)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := NewServiceImpl(nil, repo, logger)

	tripID := uuid.New()
	repo.On("GetTrip", mock.Anything, nil, tripID).Return(nil, nil).Once()

	snapshot, err := svc.BuildContext(ctx, tripID, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Nil(t, snapshot)
}

func TestBuildContext_ForeignTrip(t *testing.T) {
	ctx := context.Background()
	repo := new(MockTripReader)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := NewServiceImpl(nil, repo, logger)

	tripID := uuid.New()
	repo.On("GetTrip", mock.Anything, nil, tripID).
		Return(&types.Trip{ID: tripID, UserID: uuid.New(), Title: "Someone Else's Trip"}, nil).Once()

	snapshot, err := svc.BuildContext(ctx, tripID, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Nil(t, snapshot)
}
