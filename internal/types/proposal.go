package types

import "encoding/json"

// OperationKind is the closed set of structural trip mutations the assistant
// may propose. Adding a kind means touching the engine's dispatch switch.
type OperationKind string

const (
	OpAddCity      OperationKind = "ADD_CITY"
	OpRemoveCity   OperationKind = "REMOVE_CITY"
	OpAddPlace     OperationKind = "ADD_PLACE"
	OpRemovePlace  OperationKind = "REMOVE_PLACE"
	OpAddItinerary OperationKind = "ADD_ITINERARY"
)

const (
	ResponseTypeChanges       = "changes"
	ResponseTypeClarification = "clarification"
)

// ChangeOperation is one proposed (and later, possibly approved) mutation.
// Data is decoded into the kind-specific payload by the application engine;
// the generator never interprets it.
type ChangeOperation struct {
	Operation   OperationKind   `json:"operation"`
	OperationID string          `json:"operation_id"`
	Data        json.RawMessage `json:"data"`
	Reason      string          `json:"reason,omitempty"`
	Approved    bool            `json:"approved,omitempty"`
}

// Proposal is the generative service's structured output: either candidate
// change operations or clarification questions, never both.
type Proposal struct {
	ResponseType string                  `json:"response_type"`
	Message      string                  `json:"message"`
	Changes      []ChangeOperation       `json:"changes,omitempty"`
	Questions    []ClarificationQuestion `json:"questions,omitempty"`
}

type ClarificationQuestion struct {
	QuestionID    string                `json:"question_id"`
	QuestionText  string                `json:"question_text"`
	Options       []ClarificationOption `json:"options,omitempty"`
	AllowFreeform bool                  `json:"allow_freeform"`
}

type ClarificationOption struct {
	OptionID string `json:"option_id"`
	Label    string `json:"label"`
	Value    string `json:"value"`
}

// Kind-specific operation payloads.

type AddCityData struct {
	CityName string `json:"city_name"`
	Country  string `json:"country,omitempty"`
}

type RemoveCityData struct {
	CityID   string `json:"city_id,omitempty"`
	CityName string `json:"city_name"`
}

type AddPlaceData struct {
	PlaceID   string `json:"place_id"`
	PlaceName string `json:"place_name"`
	CityName  string `json:"city_name,omitempty"`
}

type RemovePlaceData struct {
	PlaceName string `json:"place_name"`
}

type AddItineraryData struct {
	CityName string             `json:"city_name,omitempty"`
	Days     []ItineraryDayData `json:"days"`
}

type ItineraryDayData struct {
	Title      string            `json:"title,omitempty"`
	Activities []DayActivityData `json:"activities"`
}

type DayActivityData struct {
	Name        string `json:"name"`
	Time        string `json:"time,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	PlaceID     string `json:"place_id,omitempty"`
}

// OperationResult correlates an apply outcome back to the proposed operation.
type OperationResult struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// ApplyReport is the per-operation outcome report of one apply call. The
// batch is all-or-nothing: when Apply also returns an error the transaction
// was rolled back and every entry in Applied is void.
type ApplyReport struct {
	Applied []OperationResult `json:"applied"`
	Failed  []OperationResult `json:"failed"`
}
