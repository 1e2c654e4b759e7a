package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// maxU128 is 2^128 - 1.
var maxU128 = decimal.RequireFromString("340282366920938463463374607431768211455")

// U128 is an unsigned 128-bit integer amount in the ledger's native
// value unit. The zero value is 0.
//
// On the wire a U128 is always written as a decimal string. When
// decoding, both a JSON string and a bare JSON integer are accepted;
// bare integers are parsed from the raw token so values above 2^53
// keep full precision.
type U128 struct {
	d decimal.Decimal
}

// u128Digits bounds accepted input: 2^128-1 has 39 digits.
var u128Digits = regexp.MustCompile(`^[0-9]{1,39}$`)

// ParseU128 parses a base-10 integer string of plain digits. It
// rejects signs, fractions, exponents and values above 2^128-1. Errors
// never echo the input.
func ParseU128(s string) (U128, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return U128{}, fmt.Errorf("u128: empty value")
	}
	if !u128Digits.MatchString(s) {
		return U128{}, fmt.Errorf("u128: value must be a base-10 integer of at most 39 digits")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return U128{}, fmt.Errorf("u128: value is not a number")
	}
	if d.GreaterThan(maxU128) {
		return U128{}, fmt.Errorf("u128: value overflows 128 bits")
	}
	return U128{d: d}, nil
}

// MustParseU128 is like ParseU128 but panics on error. Intended for
// constants and tests.
func MustParseU128(s string) U128 {
	u, err := ParseU128(s)
	if err != nil {
		panic(err)
	}
	return u
}

// U128FromDecimal validates that d is a non-negative integer within
// the 128-bit range.
func U128FromDecimal(d decimal.Decimal) (U128, error) {
	if !d.IsInteger() {
		return U128{}, fmt.Errorf("u128: %s is not an integer", d.String())
	}
	if d.IsNegative() {
		return U128{}, fmt.Errorf("u128: %s is negative", d.String())
	}
	if d.GreaterThan(maxU128) {
		return U128{}, fmt.Errorf("u128: %s overflows 128 bits", d.String())
	}
	return U128{d: d.Truncate(0)}, nil
}

// NewU128 returns the U128 for a uint64 value.
func NewU128(v uint64) U128 {
	return U128{d: decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)}
}

// Decimal returns the underlying arbitrary-precision value.
func (u U128) Decimal() decimal.Decimal {
	return u.d
}

// IsZero reports whether u == 0.
func (u U128) IsZero() bool {
	return u.d.IsZero()
}

// Cmp returns -1, 0 or +1 depending on whether u is less than, equal
// to or greater than v.
func (u U128) Cmp(v U128) int {
	return u.d.Cmp(v.d)
}

// Equal reports whether u == v.
func (u U128) Equal(v U128) bool {
	return u.d.Equal(v.d)
}

// LessThan reports whether u < v.
func (u U128) LessThan(v U128) bool {
	return u.d.LessThan(v.d)
}

// Add returns u + v, or an error if the sum overflows.
func (u U128) Add(v U128) (U128, error) {
	return U128FromDecimal(u.d.Add(v.d))
}

// Sub returns u - v, or an error if v > u.
func (u U128) Sub(v U128) (U128, error) {
	return U128FromDecimal(u.d.Sub(v.d))
}

// Mul returns u * v, or an error if the product overflows.
func (u U128) Mul(v U128) (U128, error) {
	return U128FromDecimal(u.d.Mul(v.d))
}

// Min returns the smaller of u and v.
func (u U128) Min(v U128) U128 {
	if u.LessThan(v) {
		return u
	}
	return v
}

// String returns the base-10 representation without exponent.
func (u U128) String() string {
	return u.d.String()
}

// MarshalJSON encodes u as a quoted decimal string.
func (u U128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (u *U128) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("u128: null is not a valid amount")
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("u128: %w", err)
		}
		raw = s
	}

	v, err := ParseU128(raw)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
