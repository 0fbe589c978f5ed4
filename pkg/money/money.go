// Package money provides checked integer arithmetic for currency amounts.
// All persisted amounts are non-negative int64 values in their smallest
// denomination; intermediate products widen to 128 bits before narrowing.
package money

import (
	"errors"
	"math"
	"math/bits"
)

var (
	ErrOverflow  = errors.New("arithmetic_overflow")
	ErrUnderflow = errors.New("arithmetic_underflow")
	ErrDivByZero = errors.New("division_by_zero")
)

// Add returns a+b or ErrOverflow if the sum exceeds int64.
func Add(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrUnderflow
	}
	if a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b or ErrUnderflow if the result would be negative.
func Sub(a, b int64) (int64, error) {
	if a < 0 || b < 0 || b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// SaturatingSub returns a-b, clamped at zero.
func SaturatingSub(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrUnderflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(lo), nil
}

// MulDiv returns a*b/c with the product computed in a 128-bit domain,
// truncating toward zero. The result must fit in int64.
func MulDiv(a, b, c int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrUnderflow
	}
	if c <= 0 {
		return 0, ErrDivByZero
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, uint64(c))
	if quo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(quo), nil
}
