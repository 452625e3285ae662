package ai

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PlaceholderError reports a template field that cannot be rendered
type PlaceholderError struct {
	Name   string
	Spec   string
	Reason string
}

func (e *PlaceholderError) Error() string {
	if e.Spec != "" {
		return fmt.Sprintf("placeholder {%s:%s}: %s", e.Name, e.Spec, e.Reason)
	}
	return fmt.Sprintf("placeholder {%s}: %s", e.Name, e.Reason)
}

// Matches "{{", "}}" and "{name}" / "{name:spec}"
var placeholderPattern = regexp.MustCompile(`\{\{|\}\}|\{([A-Za-z_][A-Za-z0-9_]*)(?::([^{}]*))?\}`)

// Format spec subset: optional thousands comma, optional precision, optional type
var specPattern = regexp.MustCompile(`^(,)?(?:\.(\d+))?([fd%]?)$`)

// Render substitutes {placeholder} fields in tmpl. Numeric specs such as
// {x:.1f}, {x:,.0f} and {x:.2f} are supported; {{ and }} produce literal braces.
func Render(tmpl string, values map[string]any) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(tmpl[last:m[0]])
		last = m[1]

		switch token := tmpl[m[0]:m[1]]; token {
		case "{{":
			b.WriteByte('{')
			continue
		case "}}":
			b.WriteByte('}')
			continue
		}

		name := tmpl[m[2]:m[3]]
		spec := ""
		if m[4] >= 0 {
			spec = tmpl[m[4]:m[5]]
		}
		v, ok := values[name]
		if !ok {
			return "", &PlaceholderError{Name: name, Spec: spec, Reason: "unknown placeholder"}
		}
		s, err := formatValue(v, spec)
		if err != nil {
			return "", &PlaceholderError{Name: name, Spec: spec, Reason: err.Error()}
		}
		b.WriteString(s)
	}
	b.WriteString(tmpl[last:])
	return b.String(), nil
}

// Placeholders lists the distinct field names used by tmpl, in order of appearance
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		if m[1] == "" || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

func formatValue(v any, spec string) (string, error) {
	if spec == "" {
		return plain(v), nil
	}
	parts := specPattern.FindStringSubmatch(spec)
	if parts == nil {
		return "", fmt.Errorf("unsupported format spec")
	}
	comma, precision, verb := parts[1] == ",", parts[2], parts[3]

	f, isNum := number(v)
	if !isNum {
		return "", fmt.Errorf("format spec on non-numeric value")
	}

	var out string
	switch verb {
	case "d":
		if precision != "" {
			return "", fmt.Errorf("precision not allowed with d")
		}
		if f != math.Trunc(f) {
			return "", fmt.Errorf("d requires an integer value")
		}
		out = strconv.FormatFloat(f, 'f', 0, 64)
	case "%":
		out = strconv.FormatFloat(f*100, 'f', precisionOr(precision, 6), 64) + "%"
	case "f":
		out = strconv.FormatFloat(f, 'f', precisionOr(precision, 6), 64)
	default:
		if precision != "" {
			out = strconv.FormatFloat(f, 'g', precisionOr(precision, 6), 64)
		} else {
			out = plain(v)
		}
	}
	if comma {
		out = groupThousands(out)
	}
	return out, nil
}

func precisionOr(p string, def int) int {
	if p == "" {
		return def
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return def
	}
	return n
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// plain renders a value the way an unformatted field prints: floats keep one decimal when integral
func plain(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		s := strconv.FormatFloat(n, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case nil:
		return "None"
	default:
		return fmt.Sprint(v)
	}
}

// groupThousands inserts commas into the integer part of a formatted number
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, rest := s, ""
	if i := strings.IndexAny(s, ".%"); i >= 0 {
		intPart, rest = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + rest
}
