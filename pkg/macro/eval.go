package macro

import (
	"github.com/raymyers/ralph-bindgen/pkg/literal"
)

// Env supplies the values of referenced constants and the meaning of named
// cast types during evaluation.
type Env interface {
	// Value returns the value of a named constant. It returns an error matching
	// errPending (see PendingError) while the name is not resolved yet.
	Value(name string) (literal.Value, literal.Radix, error)
	// CastType resolves a named type used in a cast.
	CastType(name string) (IntType, bool)
}

// Evaluation is the outcome of evaluating one expression.
type Evaluation struct {
	Value literal.Value
	Radix literal.Radix // preferred radix for printing
	// DroppedCasts lists named cast types that were unknown and ignored.
	DroppedCasts []string
}

// Eval evaluates e with C integer semantics: operands narrower than int are
// promoted, mixed operands take the usual arithmetic conversions and results
// wrap to the width of their type.
func Eval(e Expr, env Env) (Evaluation, error) {
	ev := &evaluator{env: env}
	v, r, err := ev.eval(e)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Value: v, Radix: r, DroppedCasts: ev.dropped}, nil
}

type evaluator struct {
	env     Env
	dropped []string
}

func (ev *evaluator) eval(e Expr) (literal.Value, literal.Radix, error) {
	switch n := e.(type) {
	case IntLit:
		return n.Value, n.Radix, nil
	case Ident:
		return ev.env.Value(n.Name)
	case Unary:
		x, r, err := ev.eval(n.X)
		if err != nil {
			return literal.Value{}, r, err
		}
		return unaryOp(n.Op, x), r, nil
	case Binary:
		x, rx, err := ev.eval(n.X)
		if err != nil {
			return literal.Value{}, rx, err
		}
		y, ry, err := ev.eval(n.Y)
		if err != nil {
			return literal.Value{}, ry, err
		}
		v, err := binaryOp(n.Op, x, y)
		return v, mergeRadix(rx, ry), err
	case Cast:
		x, r, err := ev.eval(n.X)
		if err != nil {
			return literal.Value{}, r, err
		}
		t, ok := ev.castType(n)
		if !ok {
			ev.dropped = append(ev.dropped, n.TypeName)
			return x, r, nil
		}
		return x.Convert(t.Width, t.Signed), r, nil
	case Param:
		return literal.Value{}, literal.Decimal, unsupported("parameter %s outside a function macro", n.Name)
	case Call:
		return literal.Value{}, literal.Decimal, unsupported("call to %s", n.Name)
	case IncDec:
		return literal.Value{}, literal.Decimal, unsupported("increment or decrement")
	case Member:
		return literal.Value{}, literal.Decimal, unsupported("member access")
	case Deref:
		return literal.Value{}, literal.Decimal, unsupported("dereference")
	}
	return literal.Value{}, literal.Decimal, unsupported("unsupported expression")
}

func (ev *evaluator) castType(c Cast) (IntType, bool) {
	if c.Builtin != nil {
		return *c.Builtin, true
	}
	if ev.env == nil {
		return IntType{}, false
	}
	return ev.env.CastType(c.TypeName)
}

// mergeRadix prefers hex when either operand was written in hex.
func mergeRadix(a, b literal.Radix) literal.Radix {
	switch {
	case a == b:
		return a
	case a == literal.Hex || b == literal.Hex:
		return literal.Hex
	}
	return literal.Decimal
}

// promote applies the integer promotions.
func promote(v literal.Value) literal.Value {
	if v.Width < literal.W32 {
		return v.Convert(literal.W32, true)
	}
	return v
}

// commonType applies the usual arithmetic conversions to two promoted operands.
func commonType(x, y literal.Value) IntType {
	switch {
	case x.Width > y.Width:
		return IntType{x.Width, x.Signed}
	case y.Width > x.Width:
		return IntType{y.Width, y.Signed}
	}
	return IntType{x.Width, x.Signed && y.Signed}
}

func unaryOp(op string, x literal.Value) literal.Value {
	x = promote(x)
	switch op {
	case "-":
		return literal.Make(-x.Bits, x.Width, x.Signed)
	case "~":
		return literal.Make(^x.Bits, x.Width, x.Signed)
	}
	return x
}

func binaryOp(op string, x, y literal.Value) (literal.Value, error) {
	x, y = promote(x), promote(y)

	if op == "<<" || op == ">>" {
		count := y.Int64()
		if !y.Signed {
			count = int64(y.Bits)
		}
		if count < 0 || count >= int64(x.Width) || (!y.Signed && y.Bits >= uint64(x.Width)) {
			return literal.Value{}, unsupported("shift count %s out of range", y)
		}
		if op == "<<" {
			return literal.Make(x.Bits<<uint(count), x.Width, x.Signed), nil
		}
		if x.Signed {
			return literal.Make(uint64(x.Int64()>>uint(count)), x.Width, true), nil
		}
		return literal.Make(x.Bits>>uint(count), x.Width, false), nil
	}

	t := commonType(x, y)
	x, y = x.Convert(t.Width, t.Signed), y.Convert(t.Width, t.Signed)
	a, b := x.Bits, y.Bits

	var bits uint64
	switch op {
	case "+":
		bits = a + b
	case "-":
		bits = a - b
	case "*":
		bits = a * b
	case "&":
		bits = a & b
	case "|":
		bits = a | b
	case "^":
		bits = a ^ b
	case "/", "%":
		if b == 0 {
			return literal.Value{}, unsupported("division by zero")
		}
		if t.Signed {
			sa, sb := x.Int64(), y.Int64()
			if op == "/" {
				bits = uint64(sa / sb)
			} else {
				bits = uint64(sa % sb)
			}
		} else if op == "/" {
			bits = a / b
		} else {
			bits = a % b
		}
	default:
		return literal.Value{}, unsupported("operator %s", op)
	}
	return literal.Make(bits, t.Width, t.Signed), nil
}
