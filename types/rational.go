package types

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Rational is used for display aspect ratios and time bases.
type Rational struct {
	Num int
	Den int
}

func NewRational(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

func (r Rational) Reverse() Rational {
	return Rational{
		Num: r.Den,
		Den: r.Num,
	}
}

func (r Rational) Mul(other Rational) Rational {
	return Rational{
		Num: r.Num * other.Num,
		Den: r.Den * other.Den,
	}.Reduce()
}

// Reduce returns the irreducible form with a positive denominator.
// A zero denominator is returned as is.
func (r Rational) Reduce() Rational {
	if r.Den == 0 {
		return r
	}
	if r.Num == 0 {
		return Rational{Num: 0, Den: 1}
	}
	gcd := int(big.NewInt(0).GCD(nil, nil, big.NewInt(int64(abs(r.Num))), big.NewInt(int64(abs(r.Den)))).Int64())
	r.Num /= gcd
	r.Den /= gcd
	if r.Den < 0 {
		r.Num, r.Den = -r.Num, -r.Den
	}
	return r
}

// Equal compares the values, not the representations: 8/6 equals 4/3.
func (r Rational) Equal(other Rational) bool {
	if r.Den == 0 || other.Den == 0 {
		return r == other
	}
	return int64(r.Num)*int64(other.Den) == int64(other.Num)*int64(r.Den)
}

func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func newNTSCRationalFromFloat64(f float64) *big.Rat {
	den := 1001 // common denominator for NTSC frame rates
	num := math.Ceil(f) * 1000
	r := big.NewRat(int64(num), int64(den))
	confirmValue, _ := r.Float64()
	if math.Abs(f-confirmValue) < 1e-2 {
		return r
	}
	return nil
}

func RationalFromApproxFloat64(v float64) (r Rational) {
	if float64(int(v)) == v {
		return Rational{Num: int(v), Den: 1}
	}

	if rat := newNTSCRationalFromFloat64(v); rat != nil {
		return Rational{
			Num: int(rat.Num().Int64()),
			Den: int(rat.Denom().Int64()),
		}
	}

	return Rational{Num: int(v * 1000000), Den: 1000000}.Reduce()
}

func RationalFromFloat64(v float64) Rational {
	if float64(int(v)) == v {
		return Rational{Num: int(v), Den: 1}
	}
	rat := new(big.Rat)
	rat.SetFloat64(v)
	if rat.Denom().IsInt64() && rat.Denom().Int64() <= 1000000 {
		return Rational{Num: int(rat.Num().Int64()), Den: int(rat.Denom().Int64())}
	}
	return Rational{Num: int(math.Round(v * 1000000)), Den: 1000000}.Reduce()
}

// RationalFromString accepts "16/9", "16:9", "1.777" and "~1.777" (approximate).
func RationalFromString(s string) (*Rational, error) {
	var r Rational
	switch {
	case len(s) == 0:
		return nil, fmt.Errorf("unable to parse Rational from empty string")
	case strings.ContainsAny(s, "/:"):
		s = strings.ReplaceAll(s, ":", "/")
		if _, err := fmt.Sscanf(s, "%d/%d", &r.Num, &r.Den); err != nil {
			return nil, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
	case s[0] == '~':
		v, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
		r = RationalFromApproxFloat64(v)
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
		r = RationalFromFloat64(v)
	}
	if r.Den == 0 {
		return nil, fmt.Errorf("denominator cannot be zero")
	}
	return &r, nil
}

func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rational) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unable to unmarshal Rational from JSON '%s': %w", b, err)
	}
	v, err := RationalFromString(s)
	if err != nil {
		return fmt.Errorf("unable to unmarshal Rational from string %q: %w", s, err)
	}
	*r = *v
	return nil
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
