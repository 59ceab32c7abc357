package fixedpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsmarket/math/fixedpoint"
)

func toFloat(n fixedpoint.Num) float64 {
	f, _ := n.Decimal().Float64()
	return f
}

func ratio(t *testing.T, num, den int64) fixedpoint.Num {
	t.Helper()
	n, err := fixedpoint.Ratio(num, den)
	require.NoError(t, err)
	return n
}

func TestArithmetic(t *testing.T) {
	a := fixedpoint.FromInt64(6)
	b := fixedpoint.FromInt64(4)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Cmp(fixedpoint.FromInt64(10)))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, 0, diff.Cmp(fixedpoint.FromInt64(2)))

	prod, err := a.Mul(b)
	require.NoError(t, err)
	assert.Equal(t, 0, prod.Cmp(fixedpoint.FromInt64(24)))

	quot, err := a.Div(b)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, toFloat(quot), 1e-18)
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 0.98, toFloat(ratio(t, 9800, 10000)), 1e-18)
	assert.InDelta(t, -0.5, toFloat(ratio(t, -1, 2)), 1e-18)

	_, err := fixedpoint.Ratio(1, 0)
	assert.ErrorIs(t, err, fixedpoint.ErrInvalidArgument)
	_, err = fixedpoint.Ratio(1, -2)
	assert.ErrorIs(t, err, fixedpoint.ErrInvalidArgument)
}

func TestDivByZero(t *testing.T) {
	_, err := fixedpoint.One().Div(fixedpoint.Zero())
	assert.ErrorIs(t, err, fixedpoint.ErrInvalidArgument)
}

func TestMulOverflow(t *testing.T) {
	huge := fixedpoint.FromInt64(1 << 62)
	_, err := huge.Mul(huge)
	assert.ErrorIs(t, err, fixedpoint.ErrNumericOverflow)
}

func TestExpKnownValues(t *testing.T) {
	cases := []struct {
		num, den int64
		want     float64
	}{
		{0, 1, 1},
		{1, 1, 2.718281828459045},
		{-1, 1, 0.36787944117144233},
		{1, 2, 1.6487212707001282},
		{-1, 2, 0.6065306597126334},
		{2, 1, 7.38905609893065},
		{3, 1, 20.085536923187668},
		{-10, 1, 4.5399929762484854e-05},
	}
	for _, tc := range cases {
		got, err := ratio(t, tc.num, tc.den).Exp()
		require.NoError(t, err)
		assert.InEpsilon(t, tc.want, toFloat(got), 1e-12, "exp(%d/%d)", tc.num, tc.den)
	}
}

func TestExpOverflow(t *testing.T) {
	// e^44 exceeds the representable integer part; e^43 does not.
	_, err := fixedpoint.FromInt64(44).Exp()
	assert.ErrorIs(t, err, fixedpoint.ErrNumericOverflow)

	got, err := fixedpoint.FromInt64(43).Exp()
	require.NoError(t, err)
	assert.InEpsilon(t, 4.727839468229346e18, toFloat(got), 1e-9)
}

func TestExpUnderflowsToZero(t *testing.T) {
	got, err := fixedpoint.FromInt64(-50).Exp()
	require.NoError(t, err)
	assert.Equal(t, 0, got.Sign())
}

func TestExpMonotonic(t *testing.T) {
	prev, err := fixedpoint.FromInt64(-20).Exp()
	require.NoError(t, err)
	for x := int64(-199); x <= 200; x++ {
		cur, err := ratio(t, x, 10).Exp()
		require.NoError(t, err)
		assert.True(t, cur.Cmp(prev) > 0, "exp not increasing at x=%d/10", x)
		prev = cur
	}
}

func TestLnKnownValues(t *testing.T) {
	cases := []struct {
		num, den int64
		want     float64
	}{
		{1, 1, 0},
		{2, 1, 0.6931471805599453},
		{1, 2, -0.6931471805599453},
		{10, 1, 2.302585092994046},
		{1000000, 1, 13.815510557964274},
		{1, 1000, -6.907755278982137},
	}
	for _, tc := range cases {
		got, err := ratio(t, tc.num, tc.den).Ln()
		require.NoError(t, err)
		if tc.want == 0 {
			assert.InDelta(t, 0, toFloat(got), 1e-15)
		} else {
			assert.InEpsilon(t, tc.want, toFloat(got), 1e-12, "ln(%d/%d)", tc.num, tc.den)
		}
	}
}

func TestLnInvalidDomain(t *testing.T) {
	_, err := fixedpoint.Zero().Ln()
	assert.ErrorIs(t, err, fixedpoint.ErrInvalidArgument)

	_, err = fixedpoint.FromInt64(-3).Ln()
	assert.ErrorIs(t, err, fixedpoint.ErrInvalidArgument)
}

func TestLnExpRoundTrip(t *testing.T) {
	for _, x := range []int64{-7, -1, 0, 1, 2, 5, 17, 40} {
		ex, err := fixedpoint.FromInt64(x).Exp()
		require.NoError(t, err)
		back, err := ex.Ln()
		require.NoError(t, err)
		assert.InDelta(t, float64(x), toFloat(back), 1e-12, "ln(exp(%d))", x)
	}

	// Deep in the negative range exp quantizes to a few raw ulps, so the
	// round trip is only as good as that representation.
	ex, err := fixedpoint.FromInt64(-30).Exp()
	require.NoError(t, err)
	back, err := ex.Ln()
	require.NoError(t, err)
	assert.InDelta(t, -30, toFloat(back), 1e-6)
}

func TestFloor(t *testing.T) {
	n, err := ratio(t, 7, 2).Floor()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = ratio(t, -7, 2).Floor()
	require.NoError(t, err)
	assert.Equal(t, int64(-4), n)

	n, err = fixedpoint.FromInt64(9).Floor()
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
}

func TestDecimalRendering(t *testing.T) {
	assert.Equal(t, "0.5", ratio(t, 1, 2).Decimal().String())
	assert.Equal(t, "42", fixedpoint.FromInt64(42).Decimal().String())
}
