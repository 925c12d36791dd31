package structure

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Format renders a value the way the source language prints it: integral
// numbers without a fraction, booleans as True/False and nil as None.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatNumber(x)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	case []Value:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]Value:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = "'" + k + "': " + Format(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FormatDescriptor renders a whole structure: [a, b] for arrays, {a, b} for
// sets, {'k': v} for dictionaries and the bare value for scalars.
func FormatDescriptor(d *Descriptor) string {
	switch d.Kind {
	case KindArray:
		return Format(d.Elements)
	case KindSet:
		parts := make([]string, len(d.Elements))
		for i, e := range d.Elements {
			parts[i] = Format(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindDictionary:
		parts := make([]string, len(d.Entries))
		for i, e := range d.Entries {
			parts[i] = "'" + e.Key + "': " + Format(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return Format(d.Scalar)
}

// Number converts a value to float64 for plotting. Booleans count as 0/1.
func Number(v Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
