package types

import "github.com/google/uuid"

// Trip is the user-owned aggregate root. Cities and places hang off it as
// ordered association rows; the itinerary hangs off it as ordered days.
type Trip struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Title  string    `json:"title"`
}

// TripCity is a (trip, city) membership row with the city columns joined in.
type TripCity struct {
	TripID      uuid.UUID `json:"trip_id"`
	CityID      uuid.UUID `json:"city_id"`
	CityName    string    `json:"city_name"`
	CountryName string    `json:"country_name"`
	CityOrder   int       `json:"city_order"`
}

// TripPlace is a (trip, place) association row. Name, address, rating and
// types are snapshots taken at association time, not live references to the
// places table.
type TripPlace struct {
	TripID       uuid.UUID  `json:"trip_id"`
	PlaceID      uuid.UUID  `json:"place_id"`
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	Rating       float64    `json:"rating"`
	Types        []string   `json:"types,omitempty"`
	CityID       *uuid.UUID `json:"city_id,omitempty"`
	CityName     string     `json:"city_name,omitempty"`
	DisplayOrder int        `json:"display_order"`
}

type ItineraryDay struct {
	ID        uuid.UUID  `json:"id"`
	TripID    uuid.UUID  `json:"trip_id"`
	DayNumber int        `json:"day_number"`
	Title     string     `json:"title"`
	CityID    *uuid.UUID `json:"city_id,omitempty"`
}

type ItineraryActivity struct {
	ID            uuid.UUID  `json:"id"`
	DayID         uuid.UUID  `json:"day_id"`
	PlaceID       *uuid.UUID `json:"place_id,omitempty"`
	Name          string     `json:"name"`
	Time          string     `json:"time,omitempty"`
	Location      string     `json:"location,omitempty"`
	Description   string     `json:"description,omitempty"`
	ActivityOrder int        `json:"activity_order"`
}

// ItineraryDayDetail is a day together with its ordered activities.
type ItineraryDayDetail struct {
	ItineraryDay
	Activities []ItineraryActivity `json:"activities"`
}
