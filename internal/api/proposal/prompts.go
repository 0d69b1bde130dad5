package proposal

import (
	"fmt"
	"strings"

	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

const historyLimit = 20

func buildProposalPrompt(tripContextJSON string, userQuery string, history []types.ConversationTurn) string {
	var sb strings.Builder

	sb.WriteString(`You are a trip planning assistant. The user wants to change their existing trip.
Current trip state:
`)
	sb.WriteString(tripContextJSON)
	sb.WriteString(`

You may propose structural changes using ONLY these five operations:
- ADD_CITY: data = {"city_name": "...", "country": "optional country name"}
- REMOVE_CITY: data = {"city_name": "...", "city_id": "optional id from the trip state"}
- ADD_PLACE: data = {"place_id": "external provider place id", "place_name": "...", "city_name": "..."}
- REMOVE_PLACE: data = {"place_name": "exact name from the trip state"}
- ADD_ITINERARY: data = {"city_name": "...", "days": [{"title": "optional", "activities": [{"name": "...", "time": "optional", "location": "optional", "description": "optional", "place_id": "optional external id"}]}]}

Rules:
- If the trip has no cities yet, prefer ADD_CITY or ADD_PLACE operations.
- Assign every change a unique "operation_id" string so results can be correlated back.
- Give each change a short human-readable "reason".
- When the request is ambiguous, ask clarification questions instead of guessing.

Return the response STRICTLY as a JSON object in ONE of these two shapes:
{
  "response_type": "changes",
  "message": "short summary for the user",
  "changes": [
    {"operation": "ADD_CITY", "operation_id": "op-1", "data": {...}, "reason": "..."}
  ]
}
or
{
  "response_type": "clarification",
  "message": "short summary for the user",
  "questions": [
    {"question_id": "q-1", "question_text": "...", "options": [{"option_id": "o-1", "label": "...", "value": "..."}], "allow_freeform": true}
  ]
}
`)

	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, turn := range truncateHistory(history, historyLimit) {
			if turn.Content == "" {
				continue
			}
			role := turn.Role
			if role != "user" && role != "assistant" {
				continue
			}
			sb.WriteString(fmt.Sprintf("%s: %s\n", role, turn.Content))
		}
	}

	sb.WriteString("\nUser request: ")
	sb.WriteString(userQuery)
	sb.WriteString("\n")

	return sb.String()
}

func truncateHistory(history []types.ConversationTurn, limit int) []types.ConversationTurn {
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
