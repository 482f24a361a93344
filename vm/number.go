package vm

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Numeric literal parsing
// ---------------------------------------------------------------------------

// ParseNumber parses s the way Scratch coerces strings to numbers.
//
// Accepted forms, after trimming surrounding whitespace:
//   - decimal with optional sign, fraction and exponent ("-1.5e3", ".5", "5.")
//   - 0x / 0b / 0o prefixed integers (no sign)
//   - "Infinity", "+Infinity", "-Infinity"
//
// The second result is false for blank or malformed input. Out-of-range
// literals saturate to ±Inf and are reported as valid.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimFunc(s, isNumberSpace)
	if s == "" {
		return 0, false
	}

	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			return parseRadix(s[2:], 16)
		case 'b', 'B':
			return parseRadix(s[2:], 2)
		case 'o', 'O':
			return parseRadix(s[2:], 8)
		}
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	if !isDecimalLiteral(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// ErrRange still carries the saturated value.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}

func parseRadix(digits string, base int) (float64, bool) {
	if digits == "" {
		return 0, false
	}
	var v float64
	for _, r := range digits {
		d := digitValue(r)
		if d < 0 || d >= base {
			return 0, false
		}
		v = v*float64(base) + float64(d)
	}
	return v, true
}

func digitValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	}
	return -1
}

// isDecimalLiteral matches [+-]? (d+ (. d*)? | . d+) ([eE] [+-]? d+)?
func isDecimalLiteral(s string) bool {
	i := 0
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	intDigits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		intDigits++
	}
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			fracDigits++
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		expDigits := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			expDigits++
		}
		if expDigits == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNumberSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

// isBlank reports whether s is empty or whitespace only.
func isBlank(s string) bool {
	return strings.TrimFunc(s, isNumberSpace) == ""
}

// ---------------------------------------------------------------------------
// Number formatting
// ---------------------------------------------------------------------------

// FormatNumber renders f using the shortest representation that round-trips,
// switching to exponent notation outside [1e-6, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	exp = strings.TrimLeft(exp[1:], "0")
	if exp == "" {
		exp = "0"
	}
	return mant + "e" + string(sign) + exp
}
