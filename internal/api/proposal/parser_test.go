package proposal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

func TestParseProposal_Changes(t *testing.T) {
	raw := `{
		"response_type": "changes",
		"message": "Adding Lisbon to your trip",
		"changes": [
			{"operation": "ADD_CITY", "operation_id": "op-1", "data": {"city_name": "Lisbon"}, "reason": "User asked for Lisbon"}
		]
	}`

	proposal, err := parseProposal(raw)
	require.NoError(t, err)
	assert.Equal(t, types.ResponseTypeChanges, proposal.ResponseType)
	require.Len(t, proposal.Changes, 1)
	assert.Equal(t, types.OpAddCity, proposal.Changes[0].Operation)
	assert.Equal(t, "op-1", proposal.Changes[0].OperationID)
}

func TestParseProposal_FencedOutput(t *testing.T) {
	raw := "```json\n{\"response_type\": \"changes\", \"message\": \"ok\", \"changes\": [{\"operation\": \"REMOVE_PLACE\", \"operation_id\": \"op-1\", \"data\": {\"place_name\": \"Time Out Market\"}}]}\n```"

	proposal, err := parseProposal(raw)
	require.NoError(t, err)
	require.Len(t, proposal.Changes, 1)
	assert.Equal(t, types.OpRemovePlace, proposal.Changes[0].Operation)
}

func TestParseProposal_Clarification(t *testing.T) {
	raw := `{
		"response_type": "clarification",
		"message": "Which Paris?",
		"questions": [
			{"question_id": "q-1", "question_text": "Which Paris did you mean?", "options": [
				{"option_id": "o-1", "label": "Paris, France", "value": "Paris, France"},
				{"option_id": "o-2", "label": "Paris, Texas", "value": "Paris, Texas"}
			], "allow_freeform": true}
		]
	}`

	proposal, err := parseProposal(raw)
	require.NoError(t, err)
	assert.Equal(t, types.ResponseTypeClarification, proposal.ResponseType)
	require.Len(t, proposal.Questions, 1)
	assert.Len(t, proposal.Questions[0].Options, 2)
	assert.True(t, proposal.Questions[0].AllowFreeform)
}

func TestParseProposal_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "sure, I'll add Lisbon for you!"},
		{"unknown response type", `{"response_type": "plan", "changes": []}`},
		{"changes without changes", `{"response_type": "changes", "changes": []}`},
		{"unknown operation", `{"response_type": "changes", "changes": [{"operation": "RENAME_TRIP", "operation_id": "op-1", "data": {}}]}`},
		{"missing operation_id", `{"response_type": "changes", "changes": [{"operation": "ADD_CITY", "data": {"city_name": "Lisbon"}}]}`},
		{"duplicate operation_id", `{"response_type": "changes", "changes": [
			{"operation": "ADD_CITY", "operation_id": "op-1", "data": {"city_name": "Lisbon"}},
			{"operation": "ADD_CITY", "operation_id": "op-1", "data": {"city_name": "Porto"}}
		]}`},
		{"change without data", `{"response_type": "changes", "changes": [{"operation": "ADD_CITY", "operation_id": "op-1"}]}`},
		{"clarification without questions", `{"response_type": "clarification", "questions": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposal, err := parseProposal(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrGeneration)
			assert.Nil(t, proposal)
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`  {"a":1}  `))
}
