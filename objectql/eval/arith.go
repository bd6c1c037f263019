package eval

import (
	"math"
	"strings"

	"github.com/dsblank/object-ql/objectql/syntax"
)

// binary applies an arithmetic or bitwise operator.
func binary(op syntax.BinaryOp, x, y any) (any, error) {
	if xi, xf, xFloat, ok := number(x); ok {
		if yi, yf, yFloat, ok := number(y); ok {
			if isBitwise(op) {
				return bitwise(op, x, y, xi, yi, xFloat || yFloat)
			}
			if xFloat || yFloat || op == syntax.Div {
				return floatOp(op, xf, yf)
			}
			return intOp(op, xi, yi)
		}
	}

	switch op {
	case syntax.Add:
		return concat(x, y)
	case syntax.Mult:
		if n, ok := repeatCount(y); ok {
			return repeat(x, n)
		}
		if n, ok := repeatCount(x); ok {
			return repeat(y, n)
		}
	}
	return nil, unsupported(op.String(), x, y)
}

func unsupported(op string, x, y any) error {
	return errorf(ErrType, "unsupported operand type(s) for %s: '%s' and '%s'", op, TypeName(x), TypeName(y))
}

func isBitwise(op syntax.BinaryOp) bool {
	switch op {
	case syntax.BitAnd, syntax.BitOr, syntax.BitXor, syntax.LShift, syntax.RShift:
		return true
	}
	return false
}

func bitwise(op syntax.BinaryOp, x, y any, a, b int64, isFloat bool) (any, error) {
	if isFloat {
		return nil, unsupported(op.String(), x, y)
	}
	xb, xBool := x.(bool)
	yb, yBool := y.(bool)

	switch op {
	case syntax.BitAnd:
		if xBool && yBool {
			return xb && yb, nil
		}
		return a & b, nil
	case syntax.BitOr:
		if xBool && yBool {
			return xb || yb, nil
		}
		return a | b, nil
	case syntax.BitXor:
		if xBool && yBool {
			return xb != yb, nil
		}
		return a ^ b, nil
	case syntax.LShift:
		if b < 0 {
			return nil, errorf(ErrValue, "negative shift count")
		}
		if a == 0 {
			return int64(0), nil
		}
		if b >= 63 || (a<<b)>>b != a {
			return nil, errorf(ErrOverflow, "integer too large")
		}
		return a << b, nil
	default:
		if b < 0 {
			return nil, errorf(ErrValue, "negative shift count")
		}
		if b >= 63 {
			if a < 0 {
				return int64(-1), nil
			}
			return int64(0), nil
		}
		return a >> b, nil
	}
}

func intOp(op syntax.BinaryOp, a, b int64) (any, error) {
	switch op {
	case syntax.Add:
		s := a + b
		if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
			return nil, errorf(ErrOverflow, "integer too large")
		}
		return s, nil
	case syntax.Sub:
		s := a - b
		if (a >= 0 && b < 0 && s < 0) || (a < 0 && b > 0 && s >= 0) {
			return nil, errorf(ErrOverflow, "integer too large")
		}
		return s, nil
	case syntax.Mult:
		return mulInt(a, b)
	case syntax.FloorDiv, syntax.Mod:
		if b == 0 {
			return nil, errorf(ErrZeroDivision, "integer division or modulo by zero")
		}
		if a == math.MinInt64 && b == -1 {
			if op == syntax.Mod {
				return int64(0), nil
			}
			return nil, errorf(ErrOverflow, "integer too large")
		}
		q, r := a/b, a%b
		if r != 0 && (r < 0) != (b < 0) {
			q--
			r += b
		}
		if op == syntax.Mod {
			return r, nil
		}
		return q, nil
	case syntax.Pow:
		if b < 0 {
			if a == 0 {
				return nil, errorf(ErrZeroDivision, "0.0 cannot be raised to a negative power")
			}
			return math.Pow(float64(a), float64(b)), nil
		}
		return powInt(a, b)
	}
	return nil, errorf(ErrType, "unsupported operator %s", op)
}

func mulInt(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, errorf(ErrOverflow, "integer too large")
	}
	return p, nil
}

func powInt(base, exp int64) (int64, error) {
	result := int64(1)
	for exp > 0 {
		var err error
		if exp&1 == 1 {
			if result, err = mulInt(result, base); err != nil {
				return 0, err
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, err = mulInt(base, base); err != nil {
				return 0, err
			}
		}
	}
	return result, nil
}

func floatOp(op syntax.BinaryOp, a, b float64) (any, error) {
	switch op {
	case syntax.Add:
		return a + b, nil
	case syntax.Sub:
		return a - b, nil
	case syntax.Mult:
		return a * b, nil
	case syntax.Div:
		if b == 0 {
			return nil, errorf(ErrZeroDivision, "division by zero")
		}
		return a / b, nil
	case syntax.FloorDiv:
		if b == 0 {
			return nil, errorf(ErrZeroDivision, "float floor division by zero")
		}
		return math.Floor(a / b), nil
	case syntax.Mod:
		if b == 0 {
			return nil, errorf(ErrZeroDivision, "float modulo")
		}
		r := math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return r, nil
	case syntax.Pow:
		if a == 0 && b < 0 {
			return nil, errorf(ErrZeroDivision, "0.0 cannot be raised to a negative power")
		}
		r := math.Pow(a, b)
		if math.IsNaN(r) && !math.IsNaN(a) && !math.IsNaN(b) {
			return nil, errorf(ErrValue, "math domain error")
		}
		return r, nil
	}
	return nil, errorf(ErrType, "unsupported operator %s", op)
}

func concat(x, y any) (any, error) {
	switch a := x.(type) {
	case string:
		if b, ok := y.(string); ok {
			if len(a)+len(b) > MaxSequenceLength {
				return nil, errorf(ErrLimit, "string longer than %d", MaxSequenceLength)
			}
			return a + b, nil
		}
	case []any:
		if b, ok := y.([]any); ok {
			return joinSlices(a, b)
		}
	case Tuple:
		if b, ok := y.(Tuple); ok {
			out, err := joinSlices(a, b)
			if err != nil {
				return nil, err
			}
			return Tuple(out), nil
		}
	}
	return nil, unsupported("+", x, y)
}

func joinSlices(a, b []any) ([]any, error) {
	if len(a)+len(b) > MaxSequenceLength {
		return nil, errorf(ErrLimit, "sequence longer than %d", MaxSequenceLength)
	}
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...), nil
}

func repeatCount(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func repeat(v any, n int64) (any, error) {
	if n < 0 {
		n = 0
	}
	switch x := v.(type) {
	case string:
		if n > 0 && int64(len(x)) > int64(MaxSequenceLength)/n {
			return nil, errorf(ErrLimit, "string longer than %d", MaxSequenceLength)
		}
		return strings.Repeat(x, int(n)), nil
	case []any:
		return repeatSlice(x, n)
	case Tuple:
		out, err := repeatSlice(x, n)
		if err != nil {
			return nil, err
		}
		return Tuple(out), nil
	}
	return nil, errorf(ErrType, "can't multiply sequence by non-int of type '%s'", TypeName(v))
}

func repeatSlice(x []any, n int64) ([]any, error) {
	if n > 0 && int64(len(x)) > int64(MaxSequenceLength)/n {
		return nil, errorf(ErrLimit, "sequence longer than %d", MaxSequenceLength)
	}
	out := make([]any, 0, len(x)*int(n))
	for i := int64(0); i < n; i++ {
		out = append(out, x...)
	}
	return out, nil
}

// unary applies a unary operator.
func unary(op syntax.UnaryOperator, v any) (any, error) {
	if op == syntax.Not {
		return !Truth(v), nil
	}

	i, f, isFloat, ok := number(v)
	if !ok {
		return nil, errorf(ErrType, "bad operand type for unary %s: '%s'", op, TypeName(v))
	}

	switch op {
	case syntax.UAdd:
		if isFloat {
			return f, nil
		}
		return i, nil
	case syntax.USub:
		if isFloat {
			return -f, nil
		}
		if i == math.MinInt64 {
			return nil, errorf(ErrOverflow, "integer too large")
		}
		return -i, nil
	default:
		if isFloat {
			return nil, errorf(ErrType, "bad operand type for unary ~: 'float'")
		}
		return ^i, nil
	}
}
