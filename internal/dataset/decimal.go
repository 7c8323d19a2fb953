package dataset

import (
	"errors"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
	"gonum.org/v1/gonum/stat"
)

// decimalCtx bounds the rounded results. Amounts up to 10^32 fit at 2 places.
var decimalCtx = apd.BaseContext.WithPrecision(34)

// exactDigits is the longest exact decimal expansion of a float64 mantissa.
const exactDigits = 767

var errNotFinite = errors.New("value is not finite")

// setExact sets d to the exact value of the binary float f, not to its
// shortest decimal representation. 2.675 is stored as 2.67499999999999982236431605997495353221893310546875.
func setExact(d *apd.Decimal, f float64) error {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return errNotFinite
	}
	_, _, err := d.SetString(strconv.FormatFloat(f, 'e', exactDigits, 64))
	return err
}

// roundTo rounds f to places decimals using the rounding mode r. f is
// returned unchanged if it is not finite or too large to quantize.
//
// Ties are decided on the exact binary value, so roundTo(2.675, 2,
// RoundHalfEven) is 2.67 like Python's round().
func roundTo(f float64, places int32, r apd.Rounder) float64 {
	var d apd.Decimal
	if err := setExact(&d, f); err != nil {
		return f
	}
	c := *decimalCtx
	c.Rounding = r
	var out apd.Decimal
	if _, err := c.Quantize(&out, &d, -places); err != nil {
		return f
	}
	v, err := out.Float64()
	if err != nil {
		return f
	}
	return v
}

// Round2 rounds f to cents, ties to even.
func Round2(f float64) float64 {
	return roundTo(f, 2, apd.RoundHalfEven)
}

// mean2 returns the arithmetic mean of values rounded to cents. It is NaN for
// no values.
func mean2(values []float64) float64 {
	return Round2(stat.Mean(values, nil))
}
