package accounts

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Assembler builds one Record per filing. Registration number and period are
// required; every other field degrades to unknown on its own.
type Assembler struct {
	res *Resolver
	log *zap.Logger
}

// NewAssembler returns an assembler for tx. It is safe for concurrent use.
func NewAssembler(tx Taxonomy) *Assembler {
	return &Assembler{
		res: NewResolver(tx),
		log: zap.L().With(zap.String("component", "accounts.assembler")),
	}
}

// Resolver returns the underlying resolver.
func (a *Assembler) Resolver() *Resolver { return a.res }

// Assemble extracts the record for the filing identified by id. A zero
// filingDate is recorded as unknown.
func (a *Assembler) Assemble(id string, filingDate time.Time, facts []xbrl.Fact) *Record {
	rec := &Record{ID: id, populated: 1}
	log := a.log.With(zap.String("id", id))

	reg, err := a.res.Registration(facts)
	rec.populated++
	if err != nil {
		log.Error("record aborted", zap.String("field", KeyRegistrationNumber), zap.Error(err))
		return rec
	}
	rec.RegistrationNumber = Some(reg)

	period, err := a.res.Period(facts)
	rec.populated++
	if err != nil {
		log.Error("record aborted", zap.String("field", KeyPeriodEnd), zap.Error(err))
		return rec
	}
	rec.PeriodEnd = period.End
	rec.PeriodStart = period.Start
	rec.populated++

	if !filingDate.IsZero() {
		rec.FilingDate = Some(filingDate)
	}
	rec.populated++

	warn := func(field string, err error) {
		log.Warn("field unresolved", zap.String("field", field), zap.String("reason", err.Error()))
	}

	if pc, err := a.res.Postcode(facts); err != nil {
		warn(KeyPostcode, err)
	} else {
		rec.Postcode = Some(pc)
	}
	rec.populated++

	if dormant, err := a.res.Dormant(facts); err != nil {
		warn(KeyDormant, err)
	} else {
		rec.Dormant = Some(dormant)
	}
	rec.populated++

	if n, err := a.res.AverageEmployees(facts); err != nil {
		warn(KeyAverageEmployees, err)
	} else {
		rec.AverageEmployees = n
	}
	rec.populated++

	pair := func(field string, resolve func([]xbrl.Fact) (Pair, error)) Pair {
		p, err := resolve(facts)
		rec.populated += 2
		if err != nil {
			warn(field, err)
			return UnknownPair
		}
		return p
	}
	rec.Turnover = pair("turnover", a.res.Turnover)
	rec.IntangibleAssets = pair("intangible_assets", a.res.IntangibleAssets)
	rec.InvestmentProperty = pair("investment_property", a.res.InvestmentProperty)
	rec.InvestmentAssets = pair("investment_assets", a.res.InvestmentAssets)
	rec.BiologicalAssets = pair("biological_assets", a.res.BiologicalAssets)
	rec.PlantEquipment = pair("plant_equipment", a.res.PlantEquipment)
	rec.TangibleAssets = pair("tangible_assets", func([]xbrl.Fact) (Pair, error) {
		return composeTangible(rec)
	})
	rec.Equity = pair("equity", a.res.Equity)

	if sw, err := a.res.AccountingSoftware(facts); err != nil {
		warn(KeyAccountingSoftware, err)
	} else {
		rec.AccountingSoftware = Some(sw)
	}
	rec.populated++

	if name, err := a.res.EntityName(facts); err != nil {
		warn(KeyEntityName, err)
	} else {
		rec.EntityName = Some(name)
	}
	rec.populated++

	return rec
}
