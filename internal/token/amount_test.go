package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromDecimal(t *testing.T) {
	t.Run("parses integers and fractions", func(t *testing.T) {
		for _, s := range []string{"0", "1", "10.4", "0.25", "5000", "0.0000000001"} {
			a, err := FromDecimal(s)
			assert.NoError(t, err, s)
			assert.Equal(t, s, a.String(), s)
		}
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, s := range []string{"", "abc", "1.2.3", "10,4", "1e5x"} {
			_, err := FromDecimal(s)
			assert.ErrorIs(t, err, ErrMalformedAmount, s)
		}
	})

	t.Run("rejects negative where unsigned is required", func(t *testing.T) {
		_, err := FromDecimal("-1")
		assert.ErrorIs(t, err, ErrMalformedAmount)

		a, err := FromDecimalSigned("-1")
		assert.NoError(t, err)
		assert.Equal(t, -1, a.Sign())
	})

	t.Run("scaling truncates toward zero", func(t *testing.T) {
		// 0.1 * 2^96 ends in .6; the fraction is dropped, never rounded up.
		assert.Equal(t, "7922816251426433759354395033", MustFromDecimal("0.1").QString())
		assert.Equal(t, "-7922816251426433759354395033", MustFromDecimal("-0.1").QString())

		third, err := MustFromDecimal("2").DivQ(MustFromDecimal("3"))
		assert.NoError(t, err)
		assert.Equal(t, "52818775009509558395695966890", third.QString())

		fee, err := MustFromDecimal("10").MulQ(MustFromDecimal("0.01"))
		assert.NoError(t, err)
		assert.Equal(t, "7922816251426433759354395030", fee.QString())
	})

	t.Run("rejects out of range values", func(t *testing.T) {
		// 2^64 tokens exceeds the 2^160 scaled ceiling.
		_, err := FromDecimal("18446744073709551616")
		assert.ErrorIs(t, err, ErrAmountOutOfRange)
	})
}

func TestAmountArithmetic(t *testing.T) {
	t.Run("add and sub are exact", func(t *testing.T) {
		a := MustFromDecimal("10.4")
		b := MustFromDecimal("0.1")

		sum, err := a.Add(b)
		assert.NoError(t, err)
		assert.Equal(t, "10.5", sum.String())

		diff, err := a.Sub(b)
		assert.NoError(t, err)
		assert.Equal(t, "10.3", diff.String())
	})

	t.Run("mul rescales once", func(t *testing.T) {
		fee, err := MustFromDecimal("10").MulQ(MustFromDecimal("0.01"))
		assert.NoError(t, err)
		assert.Equal(t, "0.1", fee.String())

		fee, err = MustFromDecimal("10").MulQ(MustFromDecimal("0.02"))
		assert.NoError(t, err)
		assert.Equal(t, "0.2", fee.String())
	})

	t.Run("div rescales once", func(t *testing.T) {
		ratio, err := MustFromDecimal("100").DivQ(MustFromDecimal("100"))
		assert.NoError(t, err)
		assert.Equal(t, "1", ratio.String())

		half, err := MustFromDecimal("1").DivQ(MustFromDecimal("2"))
		assert.NoError(t, err)
		assert.Equal(t, "0.5", half.String())
	})

	t.Run("div by zero", func(t *testing.T) {
		_, err := MustFromDecimal("1").DivQ(Zero())
		assert.ErrorIs(t, err, ErrDivisionByZero)
	})

	t.Run("required amount with all fees", func(t *testing.T) {
		// 10 sent with 1% + 2% + 1% fees debits 10.4 total.
		amount := MustFromDecimal("10")
		required := amount
		for _, rate := range []string{"0.01", "0.02", "0.01"} {
			fee, err := amount.MulQ(MustFromDecimal(rate))
			assert.NoError(t, err)
			required, err = required.Add(fee)
			assert.NoError(t, err)
		}
		assert.Equal(t, "10.4", required.String())
	})

	t.Run("proportional mint split", func(t *testing.T) {
		budget := MustFromDecimal("100")
		total := MustFromDecimal("100")
		ratio, err := budget.DivQ(total)
		assert.NoError(t, err)

		u1, err := MustFromDecimal("30").MulQ(ratio)
		assert.NoError(t, err)
		assert.Equal(t, "30", u1.String())

		u2, err := MustFromDecimal("70").MulQ(ratio)
		assert.NoError(t, err)
		assert.Equal(t, "70", u2.String())
	})

	t.Run("mul div round trip", func(t *testing.T) {
		// 5000/3 gems is periodic in binary; splitting and resumming must
		// still land on the displayed precision.
		budget := MustFromDecimal("5000")
		total := MustFromDecimal("3")
		ratio, err := budget.DivQ(total)
		assert.NoError(t, err)

		back, err := total.MulQ(ratio)
		assert.NoError(t, err)
		assert.Equal(t, "5000", back.String())
	})
}

func TestAmountCompare(t *testing.T) {
	a := MustFromDecimal("10.4")
	b := MustFromDecimal("10.5")

	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(MustFromDecimal("10.4")))

	assert.True(t, Zero().IsZero())
	assert.Equal(t, 0, Zero().Sign())
	assert.Equal(t, -1, a.Neg().Sign())
	assert.Equal(t, "10.4", a.Neg().Abs().String())
}

func TestAmountRoundTrip(t *testing.T) {
	t.Run("q string survives storage round trip", func(t *testing.T) {
		a := MustFromDecimal("123.4567890123")
		b, err := FromQString(a.QString())
		assert.NoError(t, err)
		assert.Equal(t, 0, a.Cmp(b))
	})

	t.Run("negative q strings parse", func(t *testing.T) {
		a := MustFromDecimal("-3")
		b, err := FromQString(a.QString())
		assert.NoError(t, err)
		assert.Equal(t, "-3", b.String())
	})

	t.Run("malformed q strings rejected", func(t *testing.T) {
		_, err := FromQString("not-a-number")
		assert.ErrorIs(t, err, ErrMalformedAmount)
	})

	t.Run("float conversion avoids binary drift", func(t *testing.T) {
		a, err := FromFloat(0.1)
		assert.NoError(t, err)
		assert.Equal(t, "0.1", a.String())
	})
}

func TestAmountZeroValue(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.String())
	assert.Equal(t, "0", a.QString())

	sum, err := a.Add(MustFromDecimal("1"))
	assert.NoError(t, err)
	assert.Equal(t, "1", sum.String())
}
