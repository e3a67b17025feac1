package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "titleledger/pkg/domain-errors"
)

func TestParseUnitID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUnitID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUnitID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUnitID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseUnitID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, UnitID(valid), id)
	})
}

func TestParseOwnerID(t *testing.T) {
	valid := uuid.New()
	id, err := ParseOwnerID(valid.String())
	require.NoError(t, err)
	assert.Equal(t, OwnerID(valid), id)

	_, err = ParseOwnerID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

// Distinct ID types must not be interchangeable; conversions have to go
// through uuid.UUID explicitly.
func TestTypeDistinction(t *testing.T) {
	unitID := UnitID(uuid.New())
	ownerID := OwnerID(uuid.New())
	assert.NotEqual(t, uuid.UUID(unitID), uuid.UUID(ownerID))
}
