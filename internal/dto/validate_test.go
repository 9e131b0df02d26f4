package dto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBatchRequests(t *testing.T) {
	err := Validate(&BatchApproveRequest{})
	require.Error(t, err)
	assert.Equal(t, "ids is required", ValidationMessage(err))

	err = Validate(&BatchApproveRequest{IDs: []uuid.UUID{}})
	require.Error(t, err)
	assert.Equal(t, "ids must have at least 1 item(s)", ValidationMessage(err))

	assert.NoError(t, Validate(&BatchApproveRequest{IDs: []uuid.UUID{uuid.New()}}))
}

func TestValidateRejectAction(t *testing.T) {
	assert.NoError(t, Validate(&RejectRequest{}))
	assert.NoError(t, Validate(&RejectRequest{ActionTaken: "account_suspended"}))

	err := Validate(&RejectRequest{ActionTaken: "banned"})
	require.Error(t, err)
	assert.Equal(t, "actionTaken must be one of: none removed warned account_suspended", ValidationMessage(err))
}

func TestValidationMessageFallback(t *testing.T) {
	assert.Equal(t, "Invalid request body", ValidationMessage(assert.AnError))
}
