package mapping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cities:search", r.URL.Path)
		assert.Equal(t, "Lisbon, Portugal", r.URL.Query().Get("query"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"id": "ext-lisbon", "name": "Lisbon", "country_code": "PT", "country_name": "Portugal", "latitude": 38.72, "longitude": -9.14}
		]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	candidates, err := client.SearchCities(context.Background(), "Lisbon, Portugal")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "ext-lisbon", candidates[0].ID)
	assert.Equal(t, "PT", candidates[0].CountryCode)
}

func TestSearchCities_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	candidates, err := client.SearchCities(context.Background(), "Lisbon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Nil(t, candidates)
}

func TestSearchCities_ProviderErrorWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	_, err := client.SearchCities(context.Background(), "Lisbon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping provider error")
}

func TestGetPlaceDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/ext-123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "ext-123", "name": "Time Out Market", "formatted_address": "Av. 24 de Julho", "city": "Lisbon", "country_name": "Portugal", "rating": 4.6, "types": ["food_hall"]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	details, err := client.GetPlaceDetails(context.Background(), "ext-123")
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "Time Out Market", details.Name)
	assert.Equal(t, "Lisbon", details.City)
}

func TestGetPlaceDetails_EmptyRecordMeansNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	details, err := client.GetPlaceDetails(context.Background(), "ext-void")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestGetPlaceDetails_HTTPNotFoundMeansNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"message": "no such place"}}`))
	}))
	defer server.Close()

	// A 404 says the record does not exist, which is an answer, not a failure.
	client := NewHTTPClient(server.URL, 5*time.Second)
	details, err := client.GetPlaceDetails(context.Background(), "ext-gone")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestSearchPlace_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	details, err := client.SearchPlace(context.Background(), "Ghost Bar")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestSearchPlace_FirstResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:search", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"id": "ext-1", "name": "Fado House"},
			{"id": "ext-2", "name": "Fado House Annex"}
		]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	details, err := client.SearchPlace(context.Background(), "Fado House")
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "ext-1", details.ID)
}
