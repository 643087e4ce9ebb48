package literal

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ErrMalformed is matched by every literal parse failure.
var ErrMalformed = errors.New("malformed literal")

// Error describes why a literal token was rejected.
type Error struct {
	Text   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed literal %q: %s", e.Text, e.Reason)
}

// Is makes errors.Is(err, ErrMalformed) true.
func (e *Error) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(text, format string, args ...any) error {
	return &Error{Text: text, Reason: fmt.Sprintf(format, args...)}
}

// Radix is the base a literal was written in.
type Radix int

const (
	Decimal Radix = iota
	Hex
	Octal
	Binary
)

func (r Radix) String() string {
	switch r {
	case Hex:
		return "hex"
	case Octal:
		return "octal"
	case Binary:
		return "binary"
	}
	return "decimal"
}

func (r Radix) base() int {
	switch r {
	case Hex:
		return 16
	case Octal:
		return 8
	case Binary:
		return 2
	}
	return 10
}

// Suffix is the normalized integer suffix.
type Suffix int

const (
	SuffixNone Suffix = iota
	SuffixU
	SuffixL
	SuffixUL
	SuffixLL
	SuffixULL
)

func (s Suffix) String() string {
	return [...]string{"", "U", "L", "UL", "LL", "ULL"}[s]
}

// NumericLiteral is a parsed integer token.
type NumericLiteral struct {
	Text      string
	Magnitude *big.Int
	Radix     Radix
	Suffix    Suffix
	Value     Value
}

type candidate struct {
	width  Width
	signed bool
}

var (
	i32 = candidate{W32, true}
	u32 = candidate{W32, false}
	i64 = candidate{W64, true}
	u64 = candidate{W64, false}
)

// candidates follows the C rules with long taken as 32 bits: non-decimal
// literals try the unsigned type of a width before widening.
func candidates(s Suffix, r Radix) []candidate {
	switch s {
	case SuffixU, SuffixUL:
		return []candidate{u32, u64}
	case SuffixLL:
		return []candidate{i64}
	case SuffixULL:
		return []candidate{u64}
	}
	if r == Decimal {
		return []candidate{i32, i64}
	}
	return []candidate{i32, u32, i64, u64}
}

var maxUint64 = new(big.Int).SetUint64(^uint64(0))

// Parse normalizes an integer literal token such as 0xffff'ffffULL.
func Parse(text string) (NumericLiteral, error) {
	body, suffix, err := splitSuffix(text)
	if err != nil {
		return NumericLiteral{}, err
	}
	radix, digits := splitRadix(body)
	if radix == Decimal || radix == Octal {
		if strings.ContainsAny(digits, ".eE") {
			return NumericLiteral{}, malformed(text, "floating-point literals are not supported")
		}
	} else if strings.ContainsAny(digits, ".pP") {
		return NumericLiteral{}, malformed(text, "floating-point literals are not supported")
	}
	clean, err := stripSeparators(text, digits)
	if err != nil {
		return NumericLiteral{}, err
	}
	mag, ok := new(big.Int).SetString(clean, radix.base())
	if !ok {
		return NumericLiteral{}, malformed(text, "invalid digit for %s literal", radix)
	}
	if mag.Cmp(maxUint64) > 0 {
		return NumericLiteral{}, malformed(text, "value does not fit in 64 bits")
	}

	cands := candidates(suffix, radix)
	chosen := cands[len(cands)-1]
	for _, c := range cands {
		if Fits(mag, c.width, c.signed) {
			chosen = c
			break
		}
	}
	return NumericLiteral{
		Text:      text,
		Magnitude: mag,
		Radix:     radix,
		Suffix:    suffix,
		Value:     FromBig(mag, chosen.width, chosen.signed),
	}, nil
}

func splitSuffix(text string) (string, Suffix, error) {
	end := len(text)
	for end > 0 && strings.IndexByte("uUlL", text[end-1]) >= 0 {
		end--
	}
	body, raw := text[:end], text[end:]
	if body == "" {
		return "", 0, malformed(text, "missing digits")
	}
	var u, l int
	var lchars string
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case 'u', 'U':
			u++
		default:
			l++
			lchars += raw[i : i+1]
		}
	}
	if u > 1 || l > 2 || (l == 2 && lchars[0] != lchars[1]) {
		return "", 0, malformed(text, "invalid suffix %q", raw)
	}
	if l == 2 && !strings.Contains(raw, lchars) {
		// "lul" style split
		return "", 0, malformed(text, "invalid suffix %q", raw)
	}
	switch {
	case u == 0 && l == 0:
		return body, SuffixNone, nil
	case u == 1 && l == 0:
		return body, SuffixU, nil
	case u == 0 && l == 1:
		return body, SuffixL, nil
	case u == 1 && l == 1:
		return body, SuffixUL, nil
	case u == 0 && l == 2:
		return body, SuffixLL, nil
	default:
		return body, SuffixULL, nil
	}
}

func splitRadix(body string) (Radix, string) {
	if len(body) >= 2 && body[0] == '0' {
		switch body[1] {
		case 'x', 'X':
			return Hex, body[2:]
		case 'b', 'B':
			return Binary, body[2:]
		}
		return Octal, body[1:]
	}
	return Decimal, body
}

// stripSeparators removes C++14 digit separators, which may only sit between digits.
func stripSeparators(text, digits string) (string, error) {
	if digits == "" {
		return "", malformed(text, "missing digits")
	}
	if digits[0] == '\'' || digits[len(digits)-1] == '\'' || strings.Contains(digits, "''") {
		return "", malformed(text, "misplaced digit separator")
	}
	if strings.ContainsAny(digits, "_+-") {
		return "", malformed(text, "invalid digit")
	}
	return strings.ReplaceAll(digits, "'", ""), nil
}

// ParseChar evaluates a character constant such as 'a' or '\x41' as an int.
func ParseChar(s string) (Value, error) {
	if len(s) < 3 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return Value{}, malformed(s, "invalid character constant")
	}
	inner := s[1 : len(s)-1]
	if inner[0] != '\\' {
		if len(inner) != 1 {
			return Value{}, malformed(s, "multi-character constants are not supported")
		}
		return Int32(int32(inner[0])), nil
	}
	if len(inner) < 2 {
		return Value{}, malformed(s, "invalid escape sequence")
	}
	simple := map[byte]int32{
		'n': '\n', 't': '\t', 'r': '\r', '\\': '\\', '\'': '\'', '"': '"',
		'?': '?', 'a': '\a', 'b': '\b', 'f': '\f', 'v': '\v',
	}
	if c, ok := simple[inner[1]]; ok && len(inner) == 2 {
		return Int32(c), nil
	}
	base, digits := 8, inner[1:]
	if inner[1] == 'x' {
		base, digits = 16, inner[2:]
	}
	n, err := strconv.ParseUint(digits, base, 8)
	if err != nil {
		return Value{}, malformed(s, "unknown escape sequence %q", inner)
	}
	return Int32(int32(int8(n))), nil
}
