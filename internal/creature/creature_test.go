package creature

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	c := Creature{Name: "  Pikachu ", Type: "Fe\u0301e"}.Normalize()
	assert.Equal(t, "Pikachu", c.Name)
	assert.Equal(t, "F\u00e9e", c.Type)
	assert.Equal(t, "F\u00e9e", NormalizeType(" Fe\u0301e "))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		c     Creature
		field string
	}{
		{"missing name", Creature{Type: "Fire"}, "name"},
		{"missing type", Creature{Name: "Charmander"}, "type"},
		{"negative level", Creature{Name: "Charmander", Type: "Fire", Level: -1}, "level"},
		{"negative power", Creature{Name: "Charmander", Type: "Fire", Power: -5}, "power"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.True(t, IsValidation(err))
		})
	}

	assert.NoError(t, Creature{Name: "Charmander", Type: "Fire"}.Validate())
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("get details: %w", &NotFoundError{ID: 999})
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.EqualError(t, err, "get details: creature with id 999 not found")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int32(999), nf.ID)
}

func TestAddStat(t *testing.T) {
	n, err := AddStat("power", 50, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(60), n)

	n, err = AddStat("power", math.MaxInt32-1, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), n)

	_, err = AddStat("power", math.MaxInt32, 1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "power", ve.Field)
	assert.Contains(t, ve.Reason, "overflows")

	_, err = AddStat("power", 5, -6)
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "negative")
}
