// Package literal normalizes C/C++ integer literals into typed values.
package literal

import (
	"fmt"
	"math/big"
)

// Width is an integer width in bits.
type Width uint8

const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

func (w Width) mask() uint64 {
	if w >= W64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// Value is a fixed-width two's-complement integer.
type Value struct {
	Bits   uint64 `json:"bits" yaml:"bits" msgpack:"bits"`
	Width  Width  `json:"width" yaml:"width" msgpack:"width"`
	Signed bool   `json:"signed" yaml:"signed" msgpack:"signed"`
}

// Make truncates bits to the width.
func Make(bits uint64, w Width, signed bool) Value {
	return Value{Bits: bits & w.mask(), Width: w, Signed: signed}
}

// Int32 returns a signed 32-bit value.
func Int32(n int32) Value { return Make(uint64(n), W32, true) }

// FromBig stores x in the given type, keeping the low bits.
func FromBig(x *big.Int, w Width, signed bool) Value {
	m := new(big.Int).Lsh(big.NewInt(1), uint(w))
	r := new(big.Int).Mod(x, m) // Euclidean, always non-negative
	return Make(r.Uint64(), w, signed)
}

// Negative reports whether the value is signed and below zero.
func (v Value) Negative() bool {
	return v.Signed && v.Bits&(uint64(1)<<(v.Width-1)) != 0
}

// Int64 returns the value sign-extended when signed.
func (v Value) Int64() int64 {
	if v.Negative() {
		return int64(v.Bits | ^v.Width.mask())
	}
	return int64(v.Bits)
}

// Big returns the mathematical value.
func (v Value) Big() *big.Int {
	if v.Negative() {
		return big.NewInt(v.Int64())
	}
	return new(big.Int).SetUint64(v.Bits)
}

// IsZero reports whether all bits are clear.
func (v Value) IsZero() bool { return v.Bits == 0 }

// Convert reinterprets the value as another integer type, as a C cast would.
func (v Value) Convert(w Width, signed bool) Value {
	return Make(uint64(v.Int64()), w, signed)
}

// GoType names the Go integer type with the same representation.
func (v Value) GoType() string {
	return TypeName(v.Width, v.Signed)
}

// TypeName names the Go integer type of the given width and signedness.
func TypeName(w Width, signed bool) string {
	if signed {
		return fmt.Sprintf("int%d", w)
	}
	return fmt.Sprintf("uint%d", w)
}

func (v Value) String() string {
	return v.Big().String()
}

// Fits reports whether x is representable in the type without wrapping.
func Fits(x *big.Int, w Width, signed bool) bool {
	if signed {
		lo := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(w-1)))
		hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w-1)), big.NewInt(1))
		return x.Cmp(lo) >= 0 && x.Cmp(hi) <= 0
	}
	hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1))
	return x.Sign() >= 0 && x.Cmp(hi) <= 0
}
