package types

import "github.com/google/uuid"

// Place matches the places table structure. Looked up primarily by the
// external provider's id; CityID is nullable because city resolution during
// place creation is allowed to fail.
type Place struct {
	ID         uuid.UUID  `json:"id"`
	ExternalID string     `json:"external_id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	CityID     *uuid.UUID `json:"city_id,omitempty"`
	CityName   string     `json:"city_name,omitempty"`
	Rating     float64    `json:"rating"`
	PriceLevel int        `json:"price_level"`
	Types      []string   `json:"types,omitempty"`
}
