// Package mapping wraps the external geocoding/places provider the entity
// resolver falls back to when a city or place is not cached locally.
package mapping

import "context"

// CityCandidate is one result of a city search.
type CityCandidate struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// PlaceDetails is the provider's full record for a place.
type PlaceDetails struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	City             string   `json:"city"`
	CountryCode      string   `json:"country_code"`
	CountryName      string   `json:"country_name"`
	Rating           float64  `json:"rating"`
	PriceLevel       int      `json:"price_level"`
	Types            []string `json:"types"`
}

// Client is the provider boundary. An empty result slice or nil details is a
// legitimate answer; the resolver decides whether that is an error.
type Client interface {
	SearchCities(ctx context.Context, query string) ([]CityCandidate, error)
	GetPlaceDetails(ctx context.Context, id string) (*PlaceDetails, error)
	SearchPlace(ctx context.Context, query string) (*PlaceDetails, error)
}
