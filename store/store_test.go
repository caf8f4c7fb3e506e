package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddQuantity(t *testing.T) {
	total, err := AddQuantity(0, 3)
	require.NoError(t, err)
	total, err = AddQuantity(total, MaxItemQuantity)
	require.NoError(t, err)
	assert.Equal(t, MaxItemQuantity+3, total)

	for _, quantity := range []int{0, -5, MaxItemQuantity + 1, math.MaxInt} {
		_, err := AddQuantity(0, quantity)
		assert.ErrorIs(t, err, ErrInvalidQuantity, quantity)
	}

	_, err = AddQuantity(math.MaxInt-1, 2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultListLimit, NormalizeLimit(-3))
	assert.Equal(t, 20, NormalizeLimit(20))
	assert.Equal(t, MaxListLimit, NormalizeLimit(1000))
}
