package vm

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindInteger
	KindNumber
	KindBool
	KindColor
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindColor:
		return "color"
	}
	return "unknown"
}

// Value is a loosely typed Scratch value.
//
// The zero Value is the empty string, which is falsy and coerces to 0.
// Values are small and passed by value; they are only long-lived when
// stored in a Variable or a List.
type Value struct {
	kind  ValueKind
	num   float64
	i     int64
	str   string
	color Color
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromString creates a string Value.
func FromString(s string) Value { return Value{kind: KindString, str: s} }

// FromInt creates an integer Value.
func FromInt(n int64) Value { return Value{kind: KindInteger, i: n} }

// FromFloat creates a number Value.
func FromFloat(f float64) Value { return Value{kind: KindNumber, num: f} }

// FromBool creates a boolean Value.
func FromBool(b bool) Value {
	if b {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// FromColor creates a color Value.
func FromColor(c Color) Value { return Value{kind: KindColor, color: c} }

// ---------------------------------------------------------------------------
// Type checks
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsString() bool  { return v.kind == KindString }
func (v Value) IsInteger() bool { return v.kind == KindInteger }
func (v Value) IsBool() bool    { return v.kind == KindBool }
func (v Value) IsColor() bool   { return v.kind == KindColor }

// IsNumber reports whether v holds an integer or a double.
func (v Value) IsNumber() bool { return v.kind == KindInteger || v.kind == KindNumber }

// IsNumeric reports whether v can take part in a numeric comparison:
// numbers other than NaN, booleans, and non-blank strings that parse.
func (v Value) IsNumeric() bool {
	_, ok := v.numeric()
	return ok
}

func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindNumber:
		return v.num, !math.IsNaN(v.num)
	case KindBool:
		return float64(v.i), true
	case KindString:
		f, ok := ParseNumber(v.str)
		return f, ok && !math.IsNaN(f)
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Coercions
// ---------------------------------------------------------------------------

// AsFloat coerces v to a double. Malformed strings and NaN become 0.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindInteger, KindBool:
		return float64(v.i)
	case KindNumber:
		if math.IsNaN(v.num) {
			return 0
		}
		return v.num
	case KindColor:
		return float64(v.color.Packed())
	}
	f, ok := ParseNumber(v.str)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return f
}

// AsInt truncates AsFloat toward zero, saturating at the int64 range.
func (v Value) AsInt() int64 {
	if v.kind == KindInteger || v.kind == KindBool {
		return v.i
	}
	f := v.AsFloat()
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// AsString renders v as text.
func (v Value) AsString() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindNumber:
		return FormatNumber(v.num)
	case KindBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindColor:
		return v.color.Hex()
	}
	return ""
}

// String implements fmt.Stringer.
func (v Value) String() string { return v.AsString() }

// AsBool follows Scratch truthiness: "", "0" and "false" (any case) are
// false, as are 0 and NaN.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool, KindInteger:
		return v.i != 0
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindColor:
		return true
	}
	switch strings.ToLower(v.str) {
	case "", "0", "false":
		return false
	}
	return true
}

// AsColor converts v to a Color. Strings starting with '#' are parsed as
// hex, everything else goes through the packed RGB number.
func (v Value) AsColor() Color {
	if v.kind == KindColor {
		return v.color
	}
	if v.kind == KindString && strings.HasPrefix(v.str, "#") {
		if c, ok := ParseHexColor(v.str); ok {
			return c
		}
		return Color{}
	}
	f := v.AsFloat()
	if f < 0 || f > math.MaxUint32 {
		f = 0
	}
	return ColorFromPacked(uint32(f))
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

// Compare orders two values. Both sides are compared numerically only when
// each is numeric (non-blank, parseable, not NaN); otherwise the comparison
// falls back to case-insensitive string ordering.
func Compare(a, b Value) int {
	n1, ok1 := a.numeric()
	n2, ok2 := b.numeric()
	if !ok1 || !ok2 {
		s1 := strings.ToLower(a.AsString())
		s2 := strings.ToLower(b.AsString())
		return strings.Compare(s1, s2)
	}
	if math.IsInf(n1, 0) && n1 == n2 {
		return 0
	}
	switch {
	case n1 < n2:
		return -1
	case n1 > n2:
		return 1
	}
	return 0
}

// Equal reports Compare(v, o) == 0.
func (v Value) Equal(o Value) bool { return Compare(v, o) == 0 }

// Less reports Compare(v, o) < 0.
func (v Value) Less(o Value) bool { return Compare(v, o) < 0 }

// Greater reports Compare(v, o) > 0.
func (v Value) Greater(o Value) bool { return Compare(v, o) > 0 }

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// Add returns v + o. Non-numeric operands count as 0. Two integers that do
// not overflow stay integers.
func (v Value) Add(o Value) Value {
	if v.kind == KindInteger && o.kind == KindInteger {
		s := v.i + o.i
		if (s > v.i) == (o.i > 0) {
			return FromInt(s)
		}
	}
	return FromFloat(v.AsFloat() + o.AsFloat())
}

// Sub returns v - o.
func (v Value) Sub(o Value) Value {
	if v.kind == KindInteger && o.kind == KindInteger {
		d := v.i - o.i
		if (d < v.i) == (o.i > 0) {
			return FromInt(d)
		}
	}
	return FromFloat(v.AsFloat() - o.AsFloat())
}

// Mul returns v * o.
func (v Value) Mul(o Value) Value {
	return FromFloat(v.AsFloat() * o.AsFloat())
}

// Div returns v / o. Division by zero yields ±Infinity or NaN.
func (v Value) Div(o Value) Value {
	return FromFloat(v.AsFloat() / o.AsFloat())
}

// Mod returns the floored modulo; the result takes the sign of the divisor.
func (v Value) Mod(o Value) Value {
	n, m := v.AsFloat(), o.AsFloat()
	r := math.Mod(n, m)
	if r != 0 && (r < 0) != (m < 0) {
		r += m
	}
	return FromFloat(r)
}

// Len returns the length of the string form in characters.
func (v Value) Len() int { return utf8.RuneCountInString(v.AsString()) }

// looksInteger reports whether a value would be treated as an integer by
// "pick random": integers, booleans, and numeric text without a decimal point.
func (v Value) looksInteger() bool {
	switch v.kind {
	case KindInteger, KindBool:
		return true
	case KindNumber:
		return v.num == math.Trunc(v.num)
	case KindString:
		return !strings.Contains(v.str, ".")
	}
	return false
}
