package accounts

import (
	"time"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

const (
	conceptStart = "StartDateForPeriodCoveredByReport"
	conceptEnd   = "EndDateForPeriodCoveredByReport"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func textFact(concept, value string) xbrl.Fact {
	return xbrl.Fact{Concept: concept, Value: xbrl.Text(value)}
}

func instantFact(concept string, v xbrl.Value, date string, dims map[string]string) xbrl.Fact {
	return xbrl.Fact{
		Concept:    concept,
		Value:      v,
		Unit:       "iso4217:GBP",
		Context:    xbrl.Context{Instant: d(date), Dimensions: dims},
		Dimensions: dims,
	}
}

func durationFact(concept string, v xbrl.Value, start, end string) xbrl.Fact {
	return xbrl.Fact{
		Concept: concept,
		Value:   v,
		Unit:    "iso4217:GBP",
		Context: xbrl.Context{Start: d(start), End: d(end)},
	}
}

func periodFacts(start, end string) []xbrl.Fact {
	var facts []xbrl.Fact
	if start != "" {
		facts = append(facts, textFact(conceptStart, start))
	}
	if end != "" {
		facts = append(facts, textFact(conceptEnd, end))
	}
	return facts
}

func testResolver() *Resolver {
	return NewResolver(DefaultTaxonomy())
}

func num(v xbrl.Value) float64 {
	n, ok := v.Float()
	if !ok {
		panic("not a number: " + v.Kind().String())
	}
	return n
}

// fieldMap returns the populated fields of rec keyed by name.
func fieldMap(rec *Record) map[string]any {
	m := make(map[string]any)
	for _, f := range rec.Fields() {
		m[f.Key] = f.Value
	}
	return m
}
