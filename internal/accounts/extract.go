package accounts

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

const untaggedPostcode = "PostCodeUntagged"

// Turnover resolves the turnover pair by duration end date.
func (r *Resolver) Turnover(facts []xbrl.Fact) (Pair, error) {
	return r.Pair(facts, r.tx.Pairs.Turnover)
}

// IntangibleAssets resolves the intangible assets pair.
func (r *Resolver) IntangibleAssets(facts []xbrl.Fact) (Pair, error) {
	return r.Pair(facts, r.tx.Pairs.IntangibleAssets)
}

// InvestmentProperty resolves the investment property pair.
func (r *Resolver) InvestmentProperty(facts []xbrl.Fact) (Pair, error) {
	return r.Pair(facts, r.tx.Pairs.InvestmentProperty)
}

// InvestmentAssets resolves the fixed asset investments pair.
func (r *Resolver) InvestmentAssets(facts []xbrl.Fact) (Pair, error) {
	return r.Pair(facts, r.tx.Pairs.InvestmentAssets)
}

// BiologicalAssets resolves the biological assets pair.
func (r *Resolver) BiologicalAssets(facts []xbrl.Fact) (Pair, error) {
	return r.Pair(facts, r.tx.Pairs.BiologicalAssets)
}

// PlantEquipment resolves the property, plant and equipment total, ignoring
// the per-class breakdown.
func (r *Resolver) PlantEquipment(facts []xbrl.Fact) (Pair, error) {
	return r.Pair(facts, r.tx.Pairs.PlantEquipment)
}

// Equity resolves total equity, ignoring the per-class breakdown.
func (r *Resolver) Equity(facts []xbrl.Fact) (Pair, error) {
	return r.Pair(facts, r.tx.Pairs.Equity)
}

// Registration resolves the Companies House registration number.
func (r *Resolver) Registration(facts []xbrl.Fact) (string, error) {
	return resolveText(r.tx.Concepts.Registration, facts)
}

// EntityName resolves the registered legal name.
func (r *Resolver) EntityName(facts []xbrl.Fact) (string, error) {
	return resolveText(r.tx.Concepts.EntityName, facts)
}

// AccountingSoftware resolves the name of the software that produced the filing.
func (r *Resolver) AccountingSoftware(facts []xbrl.Fact) (string, error) {
	return resolveText(r.tx.Concepts.AccountingSoftware, facts)
}

// AverageEmployees resolves the average number of employees. Text values that
// read as a number are converted.
func (r *Resolver) AverageEmployees(facts []xbrl.Fact) (xbrl.Value, error) {
	v, err := ResolveSingleFact(r.tx.Concepts.AverageEmployees, facts)
	if err != nil {
		return xbrl.Value{}, err
	}
	if s, ok := v.Str(); ok {
		if n, perr := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); perr == nil {
			return xbrl.Number(n), nil
		}
	}
	return v, nil
}

// Dormant resolves the dormancy flag from the ordered alternative concepts.
// By default the first alternative present wins; a taxonomy with
// dormant_resolution "last" lets later alternatives override earlier ones.
func (r *Resolver) Dormant(facts []xbrl.Fact) (bool, error) {
	var state string
	found := false
	for _, concept := range r.tx.Concepts.Dormant {
		s, err := resolveText(concept, facts)
		if err != nil || s == "" {
			continue
		}
		state, found = s, true
		if r.tx.DormantResolution != DormantLast {
			break
		}
	}
	if !found {
		return false, eris.Wrapf(ErrNotFound, "dormancy concepts %q", r.tx.Concepts.Dormant)
	}
	return strings.EqualFold(state, "true"), nil
}

type postcodeEntry struct {
	key  string
	code string
}

// Postcode resolves the entity postcode, preferring the registered office
// address when several contact types are tagged.
func (r *Resolver) Postcode(facts []xbrl.Fact) (string, error) {
	var entries []postcodeEntry
	n := 1
	for _, f := range facts {
		if !xbrl.NameEquals(r.tx.Concepts.Postcode, f) {
			continue
		}
		key := untaggedPostcode + strconv.Itoa(n)
		if member, ok := f.Dimension(r.tx.Dimensions.ContactType); ok {
			key = member + strconv.Itoa(n)
		}
		entries = append(entries, postcodeEntry{key: key, code: strings.TrimSpace(f.Value.String())})
		n++
	}
	if len(entries) == 0 {
		return "", eris.Wrapf(ErrNotFound, "concept %q", r.tx.Concepts.Postcode)
	}
	for _, e := range entries {
		if r.tx.Dimensions.RegisteredOffice != "" && strings.Contains(e.key, r.tx.Dimensions.RegisteredOffice) {
			return e.code, nil
		}
	}
	return entries[0].code, nil
}
