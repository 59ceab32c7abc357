// Package fixedpoint implements deterministic signed 64.64 fixed-point
// arithmetic for the pricing engine.
//
// Values are carried on big.Int with an enforced range of [-2^127, 2^127),
// the same layout the original on-chain math used. Using integer-only
// arithmetic keeps every node/run bit-identical; float64 would not.
//
// Exp and Ln are computed by range reduction on powers of two plus a short
// series on the reduced argument. Relative error is below 1e-15 across the
// domain the engine feeds them (exp arguments are non-positive after
// log-sum-exp reduction, ln arguments are in (0, numOutcomes]). That margin
// is orders of magnitude inside the solvency tolerance.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrNumericOverflow is returned when a result would leave the
	// representable range. Results are never silently wrapped.
	ErrNumericOverflow = errors.New("fixedpoint: numeric overflow")

	// ErrInvalidArgument is returned for arguments outside a function's
	// domain, e.g. Ln of a non-positive value or division by zero.
	ErrInvalidArgument = errors.New("fixedpoint: invalid argument")
)

var (
	one    = new(big.Int).Lsh(big.NewInt(1), 64) // 1.0 in 64.64
	oneDec = decimal.NewFromBigInt(one, 0)

	// ln(2) * 2^64, rounded to nearest.
	ln2 = mustParse("12786308645202655660")

	// Exp overflows 64.64 once the integer part reaches 2^63: x >= 63*ln 2.
	expMax = new(big.Int).Mul(ln2, big.NewInt(63))

	// Below -45 the true value is under half an ulp; Exp returns zero.
	expUnderflow = new(big.Int).Mul(big.NewInt(-45), one)
)

func mustParse(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("fixedpoint: bad constant " + s)
	}
	return v
}

// Num is an immutable 64.64 fixed-point number.
type Num struct {
	v *big.Int
}

// Zero returns 0.
func Zero() Num {
	return Num{v: new(big.Int)}
}

// One returns 1.0.
func One() Num {
	return Num{v: new(big.Int).Set(one)}
}

// FromInt64 converts an integer quantity to 64.64.
func FromInt64(n int64) Num {
	return Num{v: new(big.Int).Lsh(big.NewInt(n), 64)}
}

// Ratio returns num/den as 64.64. den must be positive.
func Ratio(num, den int64) (Num, error) {
	if den <= 0 {
		return Num{}, ErrInvalidArgument
	}
	v := new(big.Int).Lsh(big.NewInt(num), 64)
	v.Quo(v, big.NewInt(den))
	return checked(v)
}

func checked(v *big.Int) (Num, error) {
	if v.BitLen() > 127 {
		return Num{}, ErrNumericOverflow
	}
	return Num{v: v}, nil
}

// Sign returns -1, 0 or +1.
func (a Num) Sign() int {
	if a.v == nil {
		return 0
	}
	return a.v.Sign()
}

// Cmp compares a and b, returning -1, 0 or +1.
func (a Num) Cmp(b Num) int {
	return a.raw().Cmp(b.raw())
}

// Neg returns -a.
func (a Num) Neg() Num {
	return Num{v: new(big.Int).Neg(a.raw())}
}

// Add returns a+b, failing on range overflow.
func (a Num) Add(b Num) (Num, error) {
	return checked(new(big.Int).Add(a.raw(), b.raw()))
}

// Sub returns a-b, failing on range overflow.
func (a Num) Sub(b Num) (Num, error) {
	return checked(new(big.Int).Sub(a.raw(), b.raw()))
}

// Mul returns a*b, failing on range overflow.
func (a Num) Mul(b Num) (Num, error) {
	v := new(big.Int).Mul(a.raw(), b.raw())
	v.Rsh(v, 64)
	return checked(v)
}

// Div returns a/b, failing on division by zero or range overflow.
func (a Num) Div(b Num) (Num, error) {
	if b.Sign() == 0 {
		return Num{}, ErrInvalidArgument
	}
	v := new(big.Int).Lsh(a.raw(), 64)
	v.Quo(v, b.raw())
	return checked(v)
}

// Floor returns the largest integer <= a.
func (a Num) Floor() (int64, error) {
	v := new(big.Int).Rsh(a.raw(), 64) // floor shift, also for negatives
	if !v.IsInt64() {
		return 0, ErrNumericOverflow
	}
	return v.Int64(), nil
}

// Exp returns e^a. It is monotonic over the valid domain and fails with
// ErrNumericOverflow once the result would exceed the representable range
// (a >= 63*ln 2). Arguments below -45 underflow to exactly zero.
func (a Num) Exp() (Num, error) {
	x := a.raw()
	if x.Cmp(expMax) >= 0 {
		return Num{}, ErrNumericOverflow
	}
	if x.Cmp(expUnderflow) < 0 {
		return Zero(), nil
	}

	// Range-reduce: x = k*ln2 + r with r in [0, ln2), then e^x = 2^k * e^r.
	k, r := new(big.Int), new(big.Int)
	k.DivMod(x, ln2, r)

	// Taylor series on the reduced argument. With r < 0.694 the 24th term
	// is ~1e-28, far below one ulp.
	sum := new(big.Int).Set(one)
	term := new(big.Int).Set(one)
	for i := int64(1); i <= 24; i++ {
		term.Mul(term, r)
		term.Rsh(term, 64)
		term.Quo(term, big.NewInt(i))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	if k.Sign() >= 0 {
		sum.Lsh(sum, uint(k.Int64()))
		return checked(sum)
	}
	shift := -k.Int64()
	if shift >= 128 {
		return Zero(), nil
	}
	sum.Rsh(sum, uint(shift))
	return Num{v: sum}, nil
}

// Ln returns the natural logarithm of a. Fails with ErrInvalidArgument for
// non-positive arguments.
func (a Num) Ln() (Num, error) {
	x := a.raw()
	if x.Sign() <= 0 {
		return Num{}, ErrInvalidArgument
	}

	// Normalize to m in [1, 2): ln(a) = k*ln2 + ln(m).
	k := x.BitLen() - 1 - 64
	m := new(big.Int).Set(x)
	if k > 0 {
		m.Rsh(m, uint(k))
	} else if k < 0 {
		m.Lsh(m, uint(-k))
	}

	// ln(m) = 2*atanh(z) with z = (m-1)/(m+1) in [0, 1/3).
	num := new(big.Int).Sub(m, one)
	den := new(big.Int).Add(m, one)
	z := num.Lsh(num, 64)
	z.Quo(z, den)

	z2 := new(big.Int).Mul(z, z)
	z2.Rsh(z2, 64)

	sum := new(big.Int).Set(z)
	term := new(big.Int).Set(z)
	for i := int64(3); i <= 41; i += 2 {
		term.Mul(term, z2)
		term.Rsh(term, 64)
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, new(big.Int).Quo(term, big.NewInt(i)))
	}
	sum.Lsh(sum, 1)

	if k != 0 {
		sum.Add(sum, new(big.Int).Mul(big.NewInt(int64(k)), ln2))
	}
	return checked(sum)
}

// Decimal renders a as a decimal with 24 fractional digits, for JSON
// responses and tests. The engine itself never consumes this form.
func (a Num) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.raw(), 0).DivRound(oneDec, 24)
}

func (a Num) String() string {
	return a.Decimal().String()
}

func (a Num) raw() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}
