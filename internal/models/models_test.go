package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityRef(t *testing.T) {
	id := uuid.New()

	ref, err := ParseEntityRef("", id.String())
	require.NoError(t, err)
	assert.Equal(t, BoardingHouseRef{ID: id}, ref)

	ref, err = ParseEntityRef("RoommatePost", id.String())
	require.NoError(t, err)
	assert.Equal(t, EntityRoommatePost, ref.Type())
	assert.Equal(t, id, ref.EntityID())

	_, err = ParseEntityRef("Castle", id.String())
	assert.ErrorIs(t, err, ErrUnknownEntityType)

	_, err = ParseEntityRef("Room", "not-a-uuid")
	assert.Error(t, err)
}

func TestFlaggedImageAgeInHours(t *testing.T) {
	flaggedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := FlaggedImage{FlaggedAt: flaggedAt}

	assert.Equal(t, 0, f.AgeInHours(flaggedAt.Add(59*time.Minute)))
	assert.Equal(t, 26, f.AgeInHours(flaggedAt.Add(26*time.Hour+30*time.Minute)))
}

func TestFlaggedImageEntity(t *testing.T) {
	id := uuid.New()
	f := FlaggedImage{EntityType: EntityUser, EntityID: id}

	ref, err := f.Entity()
	require.NoError(t, err)
	assert.Equal(t, UserRef{ID: id}, ref)
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, ReviewPending.Valid())
	assert.False(t, ReviewStatus("all").Valid())
	assert.True(t, ActionAccountSuspended.Valid())
	assert.False(t, ActionTaken("banned").Valid())
}
