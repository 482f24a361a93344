package vm

import (
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Operator Primitives
// ---------------------------------------------------------------------------

func registerOperatorPrimitives(h *Handlers) {
	binary := func(op string, fn func(a, b Value) Value) {
		h.Reporter(op, func(x *Invocation) Value {
			return fn(x.Input("NUM1"), x.Input("NUM2"))
		})
	}
	binary("operator_add", Value.Add)
	binary("operator_subtract", Value.Sub)
	binary("operator_multiply", Value.Mul)
	binary("operator_divide", Value.Div)
	binary("operator_mod", Value.Mod)

	h.Reporter("operator_random", func(x *Invocation) Value {
		return randomBetween(x, x.Input("FROM"), x.Input("TO"))
	})

	compare := func(op string, fn func(c int) bool) {
		h.Reporter(op, func(x *Invocation) Value {
			return FromBool(fn(Compare(x.Input("OPERAND1"), x.Input("OPERAND2"))))
		})
	}
	compare("operator_gt", func(c int) bool { return c > 0 })
	compare("operator_lt", func(c int) bool { return c < 0 })
	compare("operator_equals", func(c int) bool { return c == 0 })

	h.Reporter("operator_and", func(x *Invocation) Value {
		return FromBool(x.Input("OPERAND1").AsBool() && x.Input("OPERAND2").AsBool())
	})
	h.Reporter("operator_or", func(x *Invocation) Value {
		return FromBool(x.Input("OPERAND1").AsBool() || x.Input("OPERAND2").AsBool())
	})
	h.Reporter("operator_not", func(x *Invocation) Value {
		return FromBool(!x.Input("OPERAND").AsBool())
	})

	h.Reporter("operator_join", func(x *Invocation) Value {
		return FromString(x.Input("STRING1").AsString() + x.Input("STRING2").AsString())
	})

	h.Reporter("operator_letter_of", func(x *Invocation) Value {
		s := []rune(x.Input("STRING").AsString())
		i := x.Input("LETTER").AsInt() - 1
		if i < 0 || i >= int64(len(s)) {
			return FromString("")
		}
		return FromString(string(s[i]))
	})

	h.Reporter("operator_length", func(x *Invocation) Value {
		return FromInt(int64(x.Input("STRING").Len()))
	})

	h.Reporter("operator_contains", func(x *Invocation) Value {
		s := strings.ToLower(x.Input("STRING1").AsString())
		sub := strings.ToLower(x.Input("STRING2").AsString())
		return FromBool(strings.Contains(s, sub))
	})

	h.Reporter("operator_round", func(x *Invocation) Value {
		return FromFloat(roundHalfUp(x.Input("NUM").AsFloat()))
	})

	h.Reporter("operator_mathop", func(x *Invocation) Value {
		return FromFloat(mathop(strings.ToLower(x.Field("OPERATOR")), x.Input("NUM").AsFloat()))
	})
}

// randomBetween picks a random number between two bounds in either order.
// The result is an integer when both bounds look like integers.
func randomBetween(x *Invocation, from, to Value) Value {
	lo, hi := from.AsFloat(), to.AsFloat()
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		return FromFloat(lo)
	}
	if from.looksInteger() && to.looksInteger() {
		l, u := int64(lo), int64(hi)
		if span := u - l + 1; span > 0 {
			return FromInt(l + x.ex.rand.Int63n(span))
		}
	}
	return FromFloat(lo + x.ex.rand.Float64()*(hi-lo))
}

func roundHalfUp(f float64) float64 {
	if math.IsInf(f, 0) || f != f {
		return f
	}
	return math.Floor(f + 0.5)
}

// mathop applies a math menu operator. Trigonometry works in degrees and
// sin/cos are rounded to ten decimals so that sin(180) reports 0.
func mathop(op string, n float64) float64 {
	switch op {
	case "abs":
		return math.Abs(n)
	case "floor":
		return math.Floor(n)
	case "ceiling":
		return math.Ceil(n)
	case "sqrt":
		return math.Sqrt(n)
	case "sin":
		return round10(math.Sin(n * math.Pi / 180))
	case "cos":
		return round10(math.Cos(n * math.Pi / 180))
	case "tan":
		return tanDegrees(n)
	case "asin":
		return math.Asin(n) * 180 / math.Pi
	case "acos":
		return math.Acos(n) * 180 / math.Pi
	case "atan":
		return math.Atan(n) * 180 / math.Pi
	case "ln":
		return math.Log(n)
	case "log":
		return math.Log10(n)
	case "e ^":
		return math.Exp(n)
	case "10 ^":
		return math.Pow(10, n)
	}
	return 0
}

func round10(f float64) float64 {
	return math.Round(f*1e10) / 1e10
}

func tanDegrees(n float64) float64 {
	a := math.Mod(n, 360)
	if a < 0 {
		a += 360
	}
	switch a {
	case 90:
		return math.Inf(1)
	case 270:
		return math.Inf(-1)
	}
	return round10(math.Tan(n * math.Pi / 180))
}
