package literal

import (
	"fmt"
	"math/big"
	"strings"
)

// Format writes v as a Go integer literal in the given radix. Negative values
// keep a leading minus so the text stays a valid constant of v's Go type.
func Format(v Value, r Radix) string {
	x := v.Big()
	sign := ""
	if x.Sign() < 0 {
		sign = "-"
		x = new(big.Int).Neg(x)
	}
	switch r {
	case Hex:
		return sign + "0x" + strings.ToUpper(x.Text(16))
	case Octal:
		return sign + "0o" + x.Text(8)
	case Binary:
		return sign + "0b" + x.Text(2)
	}
	return sign + x.Text(10)
}

// ParseGo is the inverse of Format: it reads a Go integer literal of the named
// Go type back into a Value.
func ParseGo(text, goType string) (Value, error) {
	w, signed, err := parseTypeName(goType)
	if err != nil {
		return Value{}, err
	}
	x, ok := new(big.Int).SetString(text, 0)
	if !ok {
		return Value{}, malformed(text, "not a Go integer literal")
	}
	if !Fits(x, w, signed) {
		return Value{}, malformed(text, "does not fit in %s", goType)
	}
	return FromBig(x, w, signed), nil
}

func parseTypeName(goType string) (Width, bool, error) {
	for _, w := range []Width{W8, W16, W32, W64} {
		switch goType {
		case TypeName(w, true):
			return w, true, nil
		case TypeName(w, false):
			return w, false, nil
		}
	}
	return 0, false, fmt.Errorf("unknown integer type %q", goType)
}
