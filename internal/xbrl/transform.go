package xbrl

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// numericValue applies the ix:nonFraction display transform, scale and sign
// to the displayed text. Text that cannot be read as a number is kept as Text
// so that callers can detect the failed coercion.
func numericValue(display, format, scale, sign string, isNil bool) Value {
	if isNil {
		return Absent()
	}
	display = strings.TrimSpace(display)
	transform := strings.ReplaceAll(strings.ToLower(localName(format)), "-", "")

	var n float64
	switch {
	case strings.Contains(transform, "zerodash") || strings.Contains(transform, "fixedzero"):
		n = 0
	case display == "" || isDash(display):
		if transform == "" {
			return Absent()
		}
		n = 0
	default:
		var ok bool
		n, ok = parseNumber(display, strings.Contains(transform, "numcommadecimal"))
		if !ok {
			return Text(display)
		}
	}

	if s := strings.TrimSpace(scale); s != "" {
		exp, err := strconv.Atoi(s)
		if err != nil {
			return Text(display)
		}
		n *= math.Pow10(exp)
	}
	if strings.TrimSpace(sign) == "-" {
		n = -n
	}
	return Number(n)
}

// parseNumber reads a displayed number. With commaDecimal the comma is the
// decimal separator and dots or spaces group thousands; otherwise commas and
// spaces group thousands.
func parseNumber(s string, commaDecimal bool) (float64, bool) {
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ',':
			if commaDecimal {
				b.WriteByte('.')
			}
		case r == '.':
			if !commaDecimal {
				b.WriteByte('.')
			}
		case r == '-' && b.Len() == 0:
			neg = !neg
		case unicode.IsSpace(r) || r == ' ' || r == '\'':
		default:
			return 0, false
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func isDash(s string) bool {
	for _, r := range s {
		if r != '-' && r != '–' && r != '—' && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
