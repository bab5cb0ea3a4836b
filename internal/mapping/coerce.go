package mapping

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// thousandsGrouped matches "1,234" and "-12,345,678".
var thousandsGrouped = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+$`)

// int64 bounds as float64; 2^63 itself is out of range.
const (
	maxInt64Float = float64(1 << 63)
	minInt64Float = -float64(1 << 63)
)

// Type is the coercion applied to a resolved candidate.
type Type string

const (
	TypeRaw    Type = ""
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeString Type = "string"
)

func (t Type) valid() bool {
	switch t {
	case TypeRaw, TypeInt, TypeFloat, TypeString:
		return true
	}
	return false
}

func coerce(v any, t Type) (any, error) {
	switch t {
	case TypeInt:
		return coerceInt(v)
	case TypeFloat:
		return coerceFloat(v)
	case TypeString:
		return coerceString(v)
	default:
		if n, ok := v.(int); ok {
			return int64(n), nil
		}
		return v, nil
	}
}

func coerceInt(v any) (int64, error) {
	f, err := coerceFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", v)
	}
	if f >= maxInt64Float || f < minInt64Float {
		return 0, fmt.Errorf("%v overflows int64", v)
	}
	return int64(f), nil
}

func coerceFloat(v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case nil, bool:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	case json.Number:
		f, err = n.Float64()
	case string:
		f, err = parseNumber(n)
	case float64, float32, int, int64, int32:
		f, err = cast.ToFloat64E(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", v)
	}
	return f, nil
}

// parseNumber accepts the shapes stat pages print: "48", ".585", "+5.2",
// "58.5%", "1,234" (grouped thousands), "112,5" and "1.234,5" (decimal
// comma).
func parseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma < 0:
	case dot > comma:
		s = strings.ReplaceAll(s, ",", "")
	case dot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case thousandsGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	default:
		return 0, fmt.Errorf("%q is not a number", raw)
	}

	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	return f, nil
}

func coerceString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", fmt.Errorf("cannot convert %T to a string", v)
	case json.Number:
		return s.String(), nil
	case string:
		return strings.TrimSpace(s), nil
	case float64, float32, int, int64, int32, bool:
		return cast.ToStringE(s)
	default:
		return "", fmt.Errorf("cannot convert %T to a string", v)
	}
}

func round(f float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}
