package workflow

import (
	"strconv"
	"strings"
)

// conditionOps lists comparison operators in scan order. Growing the grammar
// means adding an entry here and a case in condition.eval.
var conditionOps = []string{"==", "!="}

// EvalCondition evaluates a trigger condition against a resolution scope.
// Supported:
//   - equality: a == b, a != b
//   - literals: quoted strings, numbers, booleans
//   - dot paths: event.transaction_type (walks nested maps)
//   - a bare path, which is true when the value is truthy
//
// Unresolvable paths are not errors: they compare as empty, so a missing
// field fails == and passes !=. Only malformed syntax returns an error.
func EvalCondition(expr string, scope map[string]any) (bool, error) {
	c, err := parseCondition(expr)
	if err != nil {
		return false, err
	}
	return c.eval(scope), nil
}

// CheckCondition verifies condition syntax without evaluating it.
func CheckCondition(expr string) error {
	_, err := parseCondition(expr)
	return err
}

type condition struct {
	op  string // empty for a bare truthy operand
	lhs operand
	rhs operand
}

type operand struct {
	path    string
	literal any
	isPath  bool
}

func parseCondition(expr string) (condition, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return condition{}, &ConditionError{Expr: expr, Msg: "empty expression"}
	}

	for _, op := range conditionOps {
		parts := splitOnce(trimmed, op)
		if len(parts) != 2 {
			continue
		}
		if parts[0] == "" {
			return condition{}, &ConditionError{Expr: expr, Msg: "missing left operand"}
		}
		if parts[1] == "" {
			return condition{}, &ConditionError{Expr: expr, Msg: "missing right operand"}
		}
		lhs, err := parseOperand(expr, parts[0])
		if err != nil {
			return condition{}, err
		}
		rhs, err := parseOperand(expr, parts[1])
		if err != nil {
			return condition{}, err
		}
		return condition{op: op, lhs: lhs, rhs: rhs}, nil
	}

	lhs, err := parseOperand(expr, trimmed)
	if err != nil {
		return condition{}, err
	}
	return condition{lhs: lhs}, nil
}

func parseOperand(expr, s string) (operand, error) {
	if strings.HasPrefix(s, "'") || strings.HasPrefix(s, `"`) {
		quote := s[:1]
		if len(s) < 2 || !strings.HasSuffix(s, quote) {
			return operand{}, &ConditionError{Expr: expr, Msg: "unterminated string literal"}
		}
		return operand{literal: s[1 : len(s)-1]}, nil
	}
	switch s {
	case "true":
		return operand{literal: true}, nil
	case "false":
		return operand{literal: false}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return operand{literal: f}, nil
	}
	if strings.ContainsAny(s, " \t'\"") {
		return operand{}, &ConditionError{Expr: expr, Msg: "invalid operand " + strconv.Quote(s)}
	}
	return operand{path: s, isPath: true}, nil
}

func (c condition) eval(scope map[string]any) bool {
	switch c.op {
	case "==":
		return equals(c.lhs.value(scope), c.rhs.value(scope))
	case "!=":
		return !equals(c.lhs.value(scope), c.rhs.value(scope))
	default:
		return truthy(c.lhs.value(scope))
	}
}

func (o operand) value(scope map[string]any) any {
	if o.isPath {
		return resolvePath(o.path, scope)
	}
	return o.literal
}

// splitOnce splits on the first occurrence of op, trimming both sides.
func splitOnce(s, op string) []string {
	idx := strings.Index(s, op)
	if idx < 0 {
		return nil
	}
	return []string{strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+len(op):])}
}

// equals compares leniently: numbers by value, everything else by its
// string rendering, with missing values rendering empty.
func equals(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	return stringify(a) == stringify(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}
