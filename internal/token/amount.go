// Package token implements the fixed-point Q64.96 amount type used for all
// gem and token arithmetic. Values are stored as integers scaled by 2^96 and
// must stay below 2^160; decimal conversion goes through exact integer
// scaling, never through binary floats.
package token

import (
	"errors"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedAmount  = errors.New("malformed amount")
	ErrAmountOutOfRange = errors.New("amount out of range")
	ErrDivisionByZero   = errors.New("division by zero")
)

// displayPlaces is the number of decimal places kept when rendering an
// amount as a decimal string. Matches the precision of the upstream
// decimal pipeline.
const displayPlaces = 10

var (
	// qScale is 2^96, the Q64.96 scale factor.
	qScale = new(big.Int).Lsh(big.NewInt(1), 96)
	// qMax is 2^160; |value| must stay strictly below it.
	qMax = new(big.Int).Lsh(big.NewInt(1), 160)

	qScaleDec = decimal.NewFromBigInt(qScale, 0)
	pow10     = new(big.Int).Exp(big.NewInt(10), big.NewInt(displayPlaces), nil)
)

// Amount is a Q64.96 fixed-point quantity. The zero value is zero tokens.
// Wallet balances are always non-negative; ledger deltas may be negative.
type Amount struct {
	q *big.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{q: new(big.Int)}
}

func (a Amount) val() *big.Int {
	if a.q == nil {
		return new(big.Int)
	}
	return a.q
}

func inRange(v *big.Int) bool {
	return new(big.Int).Abs(v).Cmp(qMax) < 0
}

func make96(v *big.Int) (Amount, error) {
	if !inRange(v) {
		return Amount{}, ErrAmountOutOfRange
	}
	return Amount{q: v}, nil
}

// FromDecimal parses a non-negative decimal string into an Amount.
func FromDecimal(s string) (Amount, error) {
	a, err := FromDecimalSigned(s)
	if err != nil {
		return Amount{}, err
	}
	if a.Sign() < 0 {
		return Amount{}, ErrMalformedAmount
	}
	return a, nil
}

// FromDecimalSigned parses a decimal string, allowing a leading minus sign.
// Used for signed ledger deltas and gem amounts.
func FromDecimalSigned(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrMalformedAmount
	}
	v := d.Mul(qScaleDec).Truncate(0).BigInt()
	return make96(v)
}

// FromFloat converts a float64 by formatting it with minimal decimal digits
// and parsing the result, so the binary representation never leaks into the
// scaled value.
func FromFloat(f float64) (Amount, error) {
	return FromDecimalSigned(strconv.FormatFloat(f, 'f', -1, 64))
}

// FromQString parses the raw scaled integer representation, as stored in the
// *q database columns.
func FromQString(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, ErrMalformedAmount
	}
	return make96(v)
}

// MustFromDecimal is FromDecimalSigned for constants known to be valid.
// It panics on error and is intended for configuration defaults and tests.
func MustFromDecimal(s string) Amount {
	a, err := FromDecimalSigned(s)
	if err != nil {
		panic("token: invalid amount literal " + strconv.Quote(s) + ": " + err.Error())
	}
	return a
}

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	return make96(new(big.Int).Add(a.val(), b.val()))
}

// Sub returns a-b. The result may be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	return make96(new(big.Int).Sub(a.val(), b.val()))
}

// MulQ multiplies two scaled values and rescales once: (a*b) >> 96,
// truncated toward zero.
func (a Amount) MulQ(b Amount) (Amount, error) {
	p := new(big.Int).Mul(a.val(), b.val())
	return make96(p.Quo(p, qScale))
}

// DivQ divides two scaled values: (a << 96) / b, truncated toward zero.
func (a Amount) DivQ(b Amount) (Amount, error) {
	if b.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	p := new(big.Int).Mul(a.val(), qScale)
	return make96(p.Quo(p, b.val()))
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{q: new(big.Int).Neg(a.val())}
}

// Abs returns |a|.
func (a Amount) Abs() Amount {
	return Amount{q: new(big.Int).Abs(a.val())}
}

// Cmp compares two amounts: -1 if a<b, 0 if equal, 1 if a>b.
func (a Amount) Cmp(b Amount) int {
	return a.val().Cmp(b.val())
}

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int {
	return a.val().Sign()
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.val().Sign() == 0
}

// String renders the amount as a decimal string with at most ten decimal
// places. Rendering rounds to nearest: truncating conversion places the
// scaled form of a ten-place decimal within a few 2^-96 ulps below the exact
// value, and rounding here recovers the decimal digits.
func (a Amount) String() string {
	scaled := new(big.Int).Mul(a.val(), pow10)
	half := new(big.Int).Rsh(qScale, 1)
	if scaled.Sign() < 0 {
		half.Neg(half)
	}
	scaled.Add(scaled, half)
	scaled.Quo(scaled, qScale)
	return decimal.NewFromBigInt(scaled, -displayPlaces).String()
}

// QString returns the raw scaled integer as a decimal string, suitable for
// NUMERIC(60,0) columns.
func (a Amount) QString() string {
	return a.val().String()
}
