package accounts

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Period is the reporting period covered by a filing. At least one bound is
// known.
type Period struct {
	Start Opt[time.Time]
	End   Opt[time.Time]
}

// Period resolves the reporting period from the start and end concepts. A
// bound that is missing or unparseable is unknown; both unknown is an error.
func (r *Resolver) Period(facts []xbrl.Fact) (Period, error) {
	p := Period{
		Start: r.resolveDate(r.tx.Concepts.PeriodStart, facts),
		End:   r.resolveDate(r.tx.Concepts.PeriodEnd, facts),
	}
	if !p.Start.Known() && !p.End.Known() {
		return Period{}, eris.Wrapf(ErrPeriodUnresolved, "concepts %q and %q",
			r.tx.Concepts.PeriodStart, r.tx.Concepts.PeriodEnd)
	}
	return p, nil
}

func (r *Resolver) resolveDate(concept string, facts []xbrl.Fact) Opt[time.Time] {
	raw, err := resolveText(concept, facts)
	if err != nil {
		return None[time.Time]()
	}
	t, err := ParseDate(raw)
	if err != nil {
		r.log.Debug("unparseable period date", zapConcept(concept), zapReason(err))
		return None[time.Time]()
	}
	return Some(t)
}
