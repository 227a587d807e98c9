package units

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeightConversion(t *testing.T) {
	require.InDelta(t, 1500.0, ToDisplay(Weight, 1.5), 1e-9)
	require.InDelta(t, 0.25, ToStorage(Weight, 250), 1e-12)
}

func TestQuantityIsIdentity(t *testing.T) {
	require.Equal(t, 12.0, ToDisplay(Quantity, 12))
	require.Equal(t, 12.0, ToStorage(Quantity, 12))
}

func TestWeightRoundTrip(t *testing.T) {
	for _, grams := range []float64{0, 0.1, 1, 7.5, 200, 333.333, 999.999, 1000, 12345.678} {
		back := ToDisplay(Weight, ToStorage(Weight, grams))
		require.InDelta(t, grams, back, 1e-9, "grams=%v", grams)
	}
}

func TestParse(t *testing.T) {
	typ, err := Parse("weight")
	require.NoError(t, err)
	require.Equal(t, Weight, typ)

	_, err = Parse("litre")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestFloorUnitsAbsorbsNoise(t *testing.T) {
	require.Equal(t, 7.0, FloorUnits(ToDisplay(Weight, 0.7)/100))
	require.Equal(t, 2.0, FloorUnits(2.9999))
	require.True(t, IsWhole(3.0000000000001))
	require.False(t, IsWhole(2.5))
}

func TestLabels(t *testing.T) {
	require.Equal(t, "kg", Weight.StorageLabel())
	require.Equal(t, "g", Weight.DisplayLabel())
	require.Equal(t, "pcs", Quantity.DisplayLabel())
}
