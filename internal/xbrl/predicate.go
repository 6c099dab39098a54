package xbrl

import (
	"strings"

	"golang.org/x/text/cases"
)

// Predicates are total: a missing attribute yields false.

var folder = cases.Fold()

func fold(s string) string { return folder.String(s) }

// NameEquals reports whether the fact's concept equals concept, ignoring case.
func NameEquals(concept string, f Fact) bool {
	return fold(f.Concept) == fold(concept)
}

// NameContains reports whether sub occurs in the fact's concept, ignoring case.
func NameContains(sub string, f Fact) bool {
	return strings.Contains(fold(f.Concept), fold(sub))
}

// HasCurrencyUnit reports whether the fact carries a unit equal to code. Both
// the bare ISO code ("GBP") and the qualified measure ("iso4217:GBP") match.
func HasCurrencyUnit(f Fact, code string) bool {
	if f.Unit == "" || code == "" {
		return false
	}
	return strings.EqualFold(localName(f.Unit), localName(code))
}

// HasInstantDate reports whether the fact's context is an instant.
func HasInstantDate(f Fact) bool {
	return f.Context.HasInstant()
}

// DimensionPresent reports whether dim is a key of the fact's dimensions,
// whatever its member.
func DimensionPresent(dim string, f Fact) bool {
	_, ok := f.Dimension(dim)
	return ok
}

// localName strips a namespace prefix ("uk-core:Equity" -> "Equity").
func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
