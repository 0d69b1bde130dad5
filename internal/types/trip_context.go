package types

import "github.com/google/uuid"

// TripContext is the serializable snapshot of a trip fed to the proposal
// generator. It is a pure projection and is never persisted.
type TripContext struct {
	ID        uuid.UUID             `json:"id"`
	Title     string                `json:"title"`
	Cities    []ContextCity         `json:"cities"`
	Places    []ContextPlace        `json:"places"`
	Itinerary []ContextItineraryDay `json:"itinerary"`
}

type ContextCity struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Country string    `json:"country"`
}

type ContextPlace struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
}

type ContextItineraryDay struct {
	DayNumber  int               `json:"day_number"`
	Title      string            `json:"title,omitempty"`
	Activities []ContextActivity `json:"activities"`
}

type ContextActivity struct {
	Name     string `json:"name"`
	Time     string `json:"time,omitempty"`
	Location string `json:"location,omitempty"`
}

// ConversationTurn is one role/content pair of the assistant conversation
// history included in a proposal request.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
