package accounts

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Record keys in population order.
const (
	KeyID                         = "_id"
	KeyRegistrationNumber         = "registration_number"
	KeyPeriodEnd                  = "period_end"
	KeyPeriodStart                = "period_start"
	KeyFilingDate                 = "filing_date"
	KeyPostcode                   = "postcode"
	KeyDormant                    = "dormant"
	KeyAverageEmployees           = "average_employees"
	KeyTurnoverPrevious           = "turnover_previous"
	KeyTurnoverCurrent            = "turnover_current"
	KeyIntangibleAssetsPrevious   = "intangible_assets_previous"
	KeyIntangibleAssetsCurrent    = "intangible_assets_current"
	KeyInvestmentPropertyPrevious = "investment_property_previous"
	KeyInvestmentPropertyCurrent  = "investment_property_current"
	KeyInvestmentAssetsPrevious   = "investment_assets_previous"
	KeyInvestmentAssetsCurrent    = "investment_assets_current"
	KeyBiologicalAssetsPrevious   = "biological_assets_previous"
	KeyBiologicalAssetsCurrent    = "biological_assets_current"
	KeyPlantEquipmentPrevious     = "plant_equipment_previous"
	KeyPlantEquipmentCurrent      = "plant_equipment_current"
	KeyTangibleAssetsPrevious     = "tangible_assets_previous"
	KeyTangibleAssetsCurrent      = "tangible_assets_current"
	KeyEquityPrevious             = "equity_previous"
	KeyEquityCurrent              = "equity_current"
	KeyAccountingSoftware         = "accounting_software"
	KeyEntityName                 = "entity_name"
)

var recordKeys = []string{
	KeyID, KeyRegistrationNumber, KeyPeriodEnd, KeyPeriodStart, KeyFilingDate, KeyPostcode,
	KeyDormant, KeyAverageEmployees, KeyTurnoverPrevious, KeyTurnoverCurrent,
	KeyIntangibleAssetsPrevious, KeyIntangibleAssetsCurrent,
	KeyInvestmentPropertyPrevious, KeyInvestmentPropertyCurrent,
	KeyInvestmentAssetsPrevious, KeyInvestmentAssetsCurrent,
	KeyBiologicalAssetsPrevious, KeyBiologicalAssetsCurrent,
	KeyPlantEquipmentPrevious, KeyPlantEquipmentCurrent,
	KeyTangibleAssetsPrevious, KeyTangibleAssetsCurrent,
	KeyEquityPrevious, KeyEquityCurrent,
	KeyAccountingSoftware, KeyEntityName,
}

// Keys returns the record keys in order.
func Keys() []string {
	out := make([]string, len(recordKeys))
	copy(out, recordKeys)
	return out
}

// DateLayout is the serialised form of record dates.
const DateLayout = "2006-01-02"

// Record is the flat account information extracted from one filing. A record
// whose assembly stopped early carries only the keys up to the failed one.
type Record struct {
	ID                 string
	RegistrationNumber Opt[string]
	PeriodEnd          Opt[time.Time]
	PeriodStart        Opt[time.Time]
	FilingDate         Opt[time.Time]
	Postcode           Opt[string]
	Dormant            Opt[bool]
	AverageEmployees   xbrl.Value
	Turnover           Pair
	IntangibleAssets   Pair
	InvestmentProperty Pair
	InvestmentAssets   Pair
	BiologicalAssets   Pair
	PlantEquipment     Pair
	TangibleAssets     Pair
	Equity             Pair
	AccountingSoftware Opt[string]
	EntityName         Opt[string]

	populated int
}

// Field is one key of a record with its JSON-ready value (nil when unknown).
type Field struct {
	Key   string
	Value any
}

// Complete reports whether every field was populated.
func (rec *Record) Complete() bool { return rec.populated == len(recordKeys) }

// Truncated reports whether assembly stopped at a fatal field.
func (rec *Record) Truncated() bool { return !rec.Complete() }

// Fields returns the populated fields in key order.
func (rec *Record) Fields() []Field {
	all := []any{
		rec.ID,
		optValue(rec.RegistrationNumber),
		dateValue(rec.PeriodEnd),
		dateValue(rec.PeriodStart),
		dateValue(rec.FilingDate),
		optValue(rec.Postcode),
		optValue(rec.Dormant),
		factValue(rec.AverageEmployees),
		factValue(rec.Turnover.Opening), factValue(rec.Turnover.Closing),
		factValue(rec.IntangibleAssets.Opening), factValue(rec.IntangibleAssets.Closing),
		factValue(rec.InvestmentProperty.Opening), factValue(rec.InvestmentProperty.Closing),
		factValue(rec.InvestmentAssets.Opening), factValue(rec.InvestmentAssets.Closing),
		factValue(rec.BiologicalAssets.Opening), factValue(rec.BiologicalAssets.Closing),
		factValue(rec.PlantEquipment.Opening), factValue(rec.PlantEquipment.Closing),
		factValue(rec.TangibleAssets.Opening), factValue(rec.TangibleAssets.Closing),
		factValue(rec.Equity.Opening), factValue(rec.Equity.Closing),
		optValue(rec.AccountingSoftware),
		optValue(rec.EntityName),
	}
	n := rec.populated
	if n < 1 {
		n = 1
	}
	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		fields = append(fields, Field{Key: recordKeys[i], Value: all[i]})
	}
	return fields
}

// MarshalJSON encodes the populated fields as an object in key order.
func (rec *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range rec.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func optValue[T any](o Opt[T]) any {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return v
}

func dateValue(o Opt[time.Time]) any {
	t, ok := o.Get()
	if !ok {
		return nil
	}
	return t.Format(DateLayout)
}

func factValue(v xbrl.Value) any {
	if n, ok := v.Float(); ok {
		return n
	}
	if s, ok := v.Str(); ok {
		return s
	}
	return nil
}
