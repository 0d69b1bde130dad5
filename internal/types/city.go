package types

import "github.com/google/uuid"

// Country matches the countries table structure.
type Country struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	ISOCode string    `json:"iso_code"`
}

// City matches the cities table structure. Cities are shared reference data,
// deduplicated by (name, country) and never deleted by the change engine.
type City struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	CountryID   uuid.UUID `json:"country_id"`
	CountryName string    `json:"country_name,omitempty"`
	ExternalID  *string   `json:"external_id,omitempty"`
}
