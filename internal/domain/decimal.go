package domain

import (
	"fmt"
	"math/big"

	"github.com/cockroachdb/apd/v3"
)

// Decimal is an exact decimal amount in some currency. Monetary arithmetic in
// the pipeline goes through this type so that quantity × unit price stays
// exact instead of drifting through binary floats.
type Decimal struct {
	value apd.Decimal
}

func NewDecimal(s string) (Decimal, error) {
	var d apd.Decimal
	_, _, err := d.SetString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal: %w", err)
	}
	return Decimal{value: d}, nil
}

func NewDecimalFromInt64(i int64) Decimal {
	var d apd.Decimal
	d.SetInt64(i)
	return Decimal{value: d}
}

func NewDecimalFromFloat(f float64) Decimal {
	var d apd.Decimal
	// Float64 rates always fit; SetFloat64 only rejects NaN and Inf.
	if _, err := d.SetFloat64(f); err != nil {
		d.SetInt64(0)
	}
	return Decimal{value: d}
}

func (d Decimal) String() string {
	return d.value.String()
}

func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// Sign returns -1, 0, or +1 depending on whether d is negative, zero, or positive.
func (d Decimal) Sign() int {
	if d.value.IsZero() {
		return 0
	}
	if d.value.Negative {
		return -1
	}
	return 1
}

func (d Decimal) Cmp(other Decimal) int {
	return d.value.Cmp(&other.value)
}

// Add returns the sum of d and other.
func (d Decimal) Add(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Add(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Mul returns the product of d and other.
func (d Decimal) Mul(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Mul(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// MulInt64 returns d multiplied by an integer quantity.
func (d Decimal) MulInt64(i int64) Decimal {
	return d.Mul(NewDecimalFromInt64(i))
}

// Float64 returns the nearest float64. Statistics (quartiles, means) operate
// on this approximation; stored amounts keep the exact value.
func (d Decimal) Float64() float64 {
	f, err := d.value.Float64()
	if err != nil {
		return 0
	}
	return f
}

// Rat converts d to a big.Rat for BigQuery NUMERIC columns.
func (d Decimal) Rat() *big.Rat {
	r, ok := new(big.Rat).SetString(d.value.Text('f'))
	if !ok {
		return new(big.Rat)
	}
	return r
}
