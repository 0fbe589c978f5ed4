package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	sum, err := Add(1_000_000_000, 500)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000_500), sum)

	_, err = Add(math.MaxInt64, 1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestSub(t *testing.T) {
	diff, err := Sub(100, 40)
	require.NoError(t, err)
	require.Equal(t, int64(60), diff)

	_, err = Sub(40, 100)
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestSaturatingSub(t *testing.T) {
	require.Equal(t, int64(0), SaturatingSub(40, 100))
	require.Equal(t, int64(60), SaturatingSub(100, 40))
}

func TestMulDiv(t *testing.T) {
	// USD cents to lamports at $100.00 per unit: 500 * 1e9 / 10000.
	amount, err := MulDiv(500, 1_000_000_000, 10_000)
	require.NoError(t, err)
	require.Equal(t, int64(50_000_000), amount)

	// Intermediate product exceeds 64 bits but the quotient fits.
	amount, err = MulDiv(math.MaxInt64/2, 4, 8)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64/4), amount)

	_, err = MulDiv(math.MaxInt64, math.MaxInt64, 2)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = MulDiv(1, 1, 0)
	require.ErrorIs(t, err, ErrDivByZero)
}

func TestFeeSplitExactness(t *testing.T) {
	amount := int64(1_000_000)
	fee, err := MulDiv(amount, 100, 10_000)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), fee)

	provider, err := Sub(amount, fee)
	require.NoError(t, err)
	require.Equal(t, int64(990_000), provider)
	require.Equal(t, amount, fee+provider)
}
