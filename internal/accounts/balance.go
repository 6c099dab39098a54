package accounts

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Balance sheet name suffixes.
const (
	SuffixDueWithinOneYear = "DueWithinOneYear"
	SuffixDueAfterOneYear  = "DueAfterOneYear"
	SuffixUnclassified     = "Unclassified"
)

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// Line is one balance sheet item.
type Line struct {
	Name  string     `json:"name"`
	Value xbrl.Value `json:"value"`
	Date  time.Time  `json:"date"`
}

// ShareLine is one share-related fact.
type ShareLine struct {
	Name  string     `json:"name"`
	Unit  string     `json:"unit,omitempty"`
	Value xbrl.Value `json:"value"`
	Date  *time.Time `json:"date,omitempty"`
}

// BalanceSheet lists the instant facts reported in the taxonomy currency.
// Creditors are named by maturity and equity by class.
func (r *Resolver) BalanceSheet(facts []xbrl.Fact) []Line {
	var lines []Line
	for _, f := range facts {
		if !xbrl.HasInstantDate(f) || !xbrl.HasCurrencyUnit(f, r.tx.Currency) {
			continue
		}
		lines = append(lines, Line{
			Name:  r.balanceName(f),
			Value: f.Value,
			Date:  f.Context.Instant,
		})
	}
	return lines
}

func (r *Resolver) balanceName(f xbrl.Fact) string {
	dims := r.tx.Dimensions
	switch {
	case xbrl.NameEquals(r.tx.BalanceSheet.Creditors, f):
		if m, ok := f.Dimension(dims.Maturity); ok {
			if m == dims.MaturityWithinOneYear {
				return f.Concept + SuffixDueWithinOneYear
			}
			return f.Concept + SuffixDueAfterOneYear
		}
		if m, ok := f.Dimension(dims.CurrentNonCurrent); ok {
			if m == dims.CurrentMember {
				return f.Concept + SuffixDueWithinOneYear
			}
			return f.Concept + SuffixDueAfterOneYear
		}
		return f.Concept + SuffixUnclassified
	case xbrl.NameEquals(r.tx.BalanceSheet.Equity, f):
		if m, ok := f.Dimension(dims.EquityClasses); ok {
			return f.Concept + m
		}
	}
	return f.Concept
}

// ShareFacts lists facts about share capital: concepts whose name mentions
// shares, and equity facts broken down by a share-related class.
func (r *Resolver) ShareFacts(facts []xbrl.Fact) []ShareLine {
	marker := r.tx.BalanceSheet.ShareMarker
	var out []ShareLine
	for _, f := range facts {
		name := ""
		switch {
		case xbrl.NameContains(marker, f):
			name = f.Concept
		case xbrl.NameEquals(r.tx.BalanceSheet.Equity, f):
			if m := shareMember(f, marker); m != "" {
				name = f.Concept + m
			}
		}
		if name == "" {
			continue
		}

		line := ShareLine{Name: name, Value: f.Value}
		if xbrl.HasInstantDate(f) {
			d := f.Context.Instant
			line.Date = &d
		}
		if xbrl.HasCurrencyUnit(f, r.tx.Currency) {
			line.Unit = currencySymbols[strings.ToUpper(r.tx.Currency)]
			if line.Unit == "" {
				line.Unit = r.tx.Currency
			}
		}
		out = append(out, line)
	}
	return out
}

// shareMember returns the first dimension member, by dimension name, that
// mentions marker.
func shareMember(f xbrl.Fact, marker string) string {
	dims := make([]string, 0, len(f.Dimensions))
	for d := range f.Dimensions {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	for _, d := range dims {
		m := f.Dimensions[d]
		if strings.Contains(strings.ToLower(m), strings.ToLower(marker)) {
			return m
		}
	}
	return ""
}
