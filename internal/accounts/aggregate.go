package accounts

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// ComposeSum adds the opening sides and the closing sides of pairs. Absent
// components are skipped and a side with no known component stays Absent. A
// Text component fails the whole composition with ErrTypeMismatch.
func ComposeSum(pairs []Pair) (Pair, error) {
	opening, err := sumSide(pairs, func(p Pair) xbrl.Value { return p.Opening })
	if err != nil {
		return UnknownPair, eris.Wrap(err, "opening")
	}
	closing, err := sumSide(pairs, func(p Pair) xbrl.Value { return p.Closing })
	if err != nil {
		return UnknownPair, eris.Wrap(err, "closing")
	}
	return Pair{Opening: opening, Closing: closing}, nil
}

// composeTangible sums the tangible asset components of rec: investment
// property, investment assets, biological assets and plant & equipment. A
// component that could not be resolved is Unknown and counts as absent.
func composeTangible(rec *Record) (Pair, error) {
	return ComposeSum([]Pair{
		rec.InvestmentProperty,
		rec.InvestmentAssets,
		rec.BiologicalAssets,
		rec.PlantEquipment,
	})
}

func sumSide(pairs []Pair, side func(Pair) xbrl.Value) (xbrl.Value, error) {
	total := decimal.Zero
	known := false
	for i, p := range pairs {
		v := side(p)
		if v.IsAbsent() {
			continue
		}
		n, ok := v.Float()
		if !ok {
			return xbrl.Value{}, eris.Wrapf(ErrTypeMismatch, "component %d is %s %q", i, v.Kind(), v.String())
		}
		total = total.Add(decimal.NewFromFloat(n))
		known = true
	}
	if !known {
		return xbrl.Absent(), nil
	}
	f, _ := total.Float64()
	return xbrl.Number(f), nil
}
