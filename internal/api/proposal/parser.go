package proposal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

// parseProposal validates the model's raw output against the fixed response
// schema. Any deviation is a generation error; nothing from a malformed
// response may be applied.
func parseProposal(raw string) (*types.Proposal, error) {
	cleaned := stripCodeFences(raw)

	var proposal types.Proposal
	if err := json.Unmarshal([]byte(cleaned), &proposal); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrGeneration, err)
	}

	switch proposal.ResponseType {
	case types.ResponseTypeChanges:
		if len(proposal.Changes) == 0 {
			return nil, fmt.Errorf("%w: changes response with no changes", types.ErrGeneration)
		}
		seen := make(map[string]struct{}, len(proposal.Changes))
		for i, change := range proposal.Changes {
			if !validOperationKind(change.Operation) {
				return nil, fmt.Errorf("%w: unknown operation %q at index %d", types.ErrGeneration, change.Operation, i)
			}
			if change.OperationID == "" {
				return nil, fmt.Errorf("%w: change at index %d has no operation_id", types.ErrGeneration, i)
			}
			if _, dup := seen[change.OperationID]; dup {
				return nil, fmt.Errorf("%w: duplicate operation_id %q", types.ErrGeneration, change.OperationID)
			}
			seen[change.OperationID] = struct{}{}
			if len(change.Data) == 0 {
				return nil, fmt.Errorf("%w: change %q has no data", types.ErrGeneration, change.OperationID)
			}
		}
	case types.ResponseTypeClarification:
		if len(proposal.Questions) == 0 {
			return nil, fmt.Errorf("%w: clarification response with no questions", types.ErrGeneration)
		}
	default:
		return nil, fmt.Errorf("%w: unknown response_type %q", types.ErrGeneration, proposal.ResponseType)
	}

	return &proposal, nil
}

func validOperationKind(kind types.OperationKind) bool {
	switch kind {
	case types.OpAddCity, types.OpRemoveCity, types.OpAddPlace, types.OpRemovePlace, types.OpAddItinerary:
		return true
	}
	return false
}

// stripCodeFences removes a surrounding markdown code fence when the model
// wraps its JSON despite the response MIME type.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
