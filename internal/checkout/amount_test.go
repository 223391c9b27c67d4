package checkout

import (
	"math"
	"testing"

	"ms-booking/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{100, 10000},
		{199.999, 20000},
		{250, 25000},
		{1.005, 101},
		{0.015, 2},
		{12.34, 1234},
		{0.01, 1},
	}

	for _, tt := range tests {
		got, err := ToMinorUnits(tt.amount)
		require.NoError(t, err, "amount %v", tt.amount)
		assert.Equal(t, tt.want, got, "amount %v", tt.amount)
	}
}

func TestToMinorUnits_RejectsInvalid(t *testing.T) {
	for _, amount := range []float64{0, -1, 0.004, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ToMinorUnits(amount)
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount, "amount %v", amount)
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, 200.0, FromMinorUnits(20000))
	assert.Equal(t, 12.34, FromMinorUnits(1234))
}
