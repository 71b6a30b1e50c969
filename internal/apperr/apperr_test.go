package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindPredicates(t *testing.T) {
	validation := Validationf("insufficient credits: have %d, need %d", 10, 40)
	collaborator := Collaboratorf(errors.New("503"), "animating storyboard")
	persistence := Persistencef(errors.New("connection reset"), "loading user %d", 7)

	assert.True(t, IsValidation(validation))
	assert.False(t, IsCollaborator(validation))

	assert.True(t, IsCollaborator(collaborator))
	assert.False(t, IsValidation(collaborator))

	assert.True(t, IsPersistence(persistence))
	assert.False(t, IsCollaborator(persistence))

	assert.False(t, IsValidation(errors.New("plain")))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "insufficient credits: have 10, need 40",
		Reason(Validationf("insufficient credits: have %d, need %d", 10, 40)))

	// Errors outside the taxonomy fall back to their plain message.
	assert.Equal(t, "plain", Reason(errors.New("plain")))
	assert.Equal(t, "", Reason(nil))
}

func TestCollaboratorWrappingPreservesCause(t *testing.T) {
	err := Collaboratorf(context.DeadlineExceeded, "animating storyboard")

	// Timeout classification must survive the wrap.
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsCollaborator(err))
	assert.Equal(t, "animating storyboard", Reason(err))
}

func TestPredicatesTraverseWrapping(t *testing.T) {
	inner := Validationf("user %d not found", 9)
	outer := fmt.Errorf("handling webhook: %w", inner)

	assert.True(t, IsValidation(outer))
	assert.Equal(t, "user 9 not found", Reason(outer))
}
