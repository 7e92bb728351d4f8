package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
)

// ResolveString substitutes {{dotted.path}} placeholders with values from
// scope. A string that is exactly one placeholder resolves to the value
// itself, preserving its type; any other shape interpolates text. Paths that
// resolve to nothing substitute the empty string. The only error is broken
// placeholder syntax.
func ResolveString(s string, scope map[string]any) (any, error) {
	if !strings.Contains(s, placeholderOpen) {
		return s, nil
	}
	if inner, ok := singlePlaceholder(s); ok {
		v := resolvePath(inner, scope)
		if v == nil {
			return "", nil
		}
		return v, nil
	}

	var b strings.Builder
	rest := s
	for {
		open := strings.Index(rest, placeholderOpen)
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		end := strings.Index(rest[open+len(placeholderOpen):], placeholderClose)
		if end < 0 {
			return nil, &TemplateError{Template: s, Msg: "unterminated placeholder"}
		}
		path := strings.TrimSpace(rest[open+len(placeholderOpen) : open+len(placeholderOpen)+end])
		b.WriteString(stringify(resolvePath(path, scope)))
		rest = rest[open+len(placeholderOpen)+end+len(placeholderClose):]
	}
}

// ResolveValue applies ResolveString recursively through maps and slices.
// Non-string scalars pass through untouched.
func ResolveValue(v any, scope map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		return ResolveString(t, scope)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			rv, err := ResolveValue(item, scope)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			rv, err := ResolveValue(item, scope)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// CheckTemplate verifies placeholder syntax without resolving anything.
func CheckTemplate(s string) error {
	rest := s
	for {
		open := strings.Index(rest, placeholderOpen)
		if open < 0 {
			return nil
		}
		end := strings.Index(rest[open+len(placeholderOpen):], placeholderClose)
		if end < 0 {
			return &TemplateError{Template: s, Msg: "unterminated placeholder"}
		}
		rest = rest[open+len(placeholderOpen)+end+len(placeholderClose):]
	}
}

// singlePlaceholder reports whether s is exactly one {{path}} and returns
// the trimmed inner path.
func singlePlaceholder(s string) (string, bool) {
	if !strings.HasPrefix(s, placeholderOpen) || !strings.HasSuffix(s, placeholderClose) {
		return "", false
	}
	inner := s[len(placeholderOpen) : len(s)-len(placeholderClose)]
	if strings.Contains(inner, placeholderOpen) || strings.Contains(inner, placeholderClose) {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// resolvePath walks a dotted path through nested maps. Anything that cannot
// be walked resolves to nil.
func resolvePath(path string, scope map[string]any) any {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	var cur any = scope
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	return cur
}

// stringify renders a resolved value for text interpolation. Missing values
// render empty, and float64 drops the trailing ".0" JSON numbers pick up, so
// an amount of 250 reads "250" rather than "250.000000".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
