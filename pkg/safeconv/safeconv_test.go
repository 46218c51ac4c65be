package safeconv

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 42, 42},
		{"int64", int64(-7), -7},
		{"uint8", uint8(200), 200},
		{"uint64", uint64(12), 12},
		{"integral_float", 3.0, 3},
		{"float32", float32(5), 5},
		{"json_number", json.Number("17"), 17},
		{"string", " 9 ", 9},
		{"float_string", "10.0", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ToInt(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToInt_Errors(t *testing.T) {
	t.Parallel()

	t.Run("fractional", func(t *testing.T) {
		t.Parallel()

		_, err := ToInt(1.5)
		require.ErrorIs(t, err, ErrNotIntegral)
	})

	t.Run("nan", func(t *testing.T) {
		t.Parallel()

		_, err := ToInt(math.NaN())
		require.ErrorIs(t, err, ErrNotNumber)
	})

	t.Run("bool", func(t *testing.T) {
		t.Parallel()

		_, err := ToInt(true)
		require.ErrorIs(t, err, ErrNotNumber)
	})

	t.Run("garbage_string", func(t *testing.T) {
		t.Parallel()

		_, err := ToInt("twelve")
		require.ErrorIs(t, err, ErrNotNumber)
	})

	t.Run("uint64_overflow", func(t *testing.T) {
		t.Parallel()

		_, err := ToInt(uint64(math.MaxUint64))
		require.Error(t, err)
	})

	t.Run("float_overflow", func(t *testing.T) {
		t.Parallel()

		_, err := ToInt(1e300)
		require.Error(t, err)
	})
}

func TestToInt_LargeIntegralFloat(t *testing.T) {
	t.Parallel()

	got, err := ToInt(float64(1 << 40))
	require.NoError(t, err)
	assert.Equal(t, 1<<40, got)
}

func TestToFloat(t *testing.T) {
	t.Parallel()

	got, err := ToFloat(2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 0)

	got, err = ToFloat("0.25")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 0)

	got, err = ToFloat(json.Number("1.5"))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 0)

	_, err = ToFloat([]int{1})
	require.ErrorIs(t, err, ErrNotNumber)
}

func TestToUint32(t *testing.T) {
	t.Parallel()

	got, err := ToUint32(10)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), got)

	_, err = ToUint32(-1)
	require.Error(t, err)
}

func TestIsNumber(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNumber(1))
	assert.True(t, IsNumber(1.5))
	assert.True(t, IsNumber(json.Number("3")))
	assert.False(t, IsNumber("3"))
	assert.False(t, IsNumber(nil))
}
