package accounts

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Dormancy resolution strategies.
const (
	DormantFirst = "first"
	DormantLast  = "last"
)

// Taxonomy binds the record fields to concept and dimension names. It is
// passed by value and never modified after loading.
type Taxonomy struct {
	Name              string       `yaml:"name"`
	Currency          string       `yaml:"currency"`
	DormantResolution string       `yaml:"dormant_resolution"`
	Concepts          Concepts     `yaml:"concepts"`
	Dimensions        Dimensions   `yaml:"dimensions"`
	Pairs             Pairs        `yaml:"pairs"`
	BalanceSheet      BalanceNames `yaml:"balance_sheet"`
}

// Concepts names the scalar concepts.
type Concepts struct {
	Registration       string   `yaml:"registration"`
	EntityName         string   `yaml:"entity_name"`
	PeriodStart        string   `yaml:"period_start"`
	PeriodEnd          string   `yaml:"period_end"`
	Postcode           string   `yaml:"postcode"`
	AccountingSoftware string   `yaml:"accounting_software"`
	AverageEmployees   string   `yaml:"average_employees"`
	OfficerName        string   `yaml:"officer_name"`
	Dormant            []string `yaml:"dormant"`
}

// Dimensions names the dimension keys and members that extraction special-cases.
type Dimensions struct {
	ContactType           string `yaml:"contact_type"`
	RegisteredOffice      string `yaml:"registered_office"`
	EquityClasses         string `yaml:"equity_classes"`
	PlantClasses          string `yaml:"plant_classes"`
	Maturity              string `yaml:"maturity"`
	MaturityWithinOneYear string `yaml:"maturity_within_one_year"`
	CurrentNonCurrent     string `yaml:"current_non_current"`
	CurrentMember         string `yaml:"current_member"`
	Officers              string `yaml:"officers"`
}

// Pairs binds each opening/closing field to its extraction.
type Pairs struct {
	Turnover           PairSpec `yaml:"turnover"`
	IntangibleAssets   PairSpec `yaml:"intangible_assets"`
	InvestmentProperty PairSpec `yaml:"investment_property"`
	InvestmentAssets   PairSpec `yaml:"investment_assets"`
	BiologicalAssets   PairSpec `yaml:"biological_assets"`
	PlantEquipment     PairSpec `yaml:"plant_equipment"`
	Equity             PairSpec `yaml:"equity"`
}

// BalanceNames configures the balance sheet and share listings.
type BalanceNames struct {
	Creditors   string `yaml:"creditors"`
	Equity      string `yaml:"equity"`
	ShareMarker string `yaml:"share_marker"`
}

// DefaultTaxonomy returns the embedded UK taxonomy.
func DefaultTaxonomy() Taxonomy {
	tx, err := ParseTaxonomy(defaultTaxonomy)
	if err != nil {
		panic(err)
	}
	return tx
}

// LoadTaxonomy reads a taxonomy from a YAML file. An empty path returns the
// embedded default.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, eris.Wrapf(err, "accounts: read taxonomy %s", path)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes a taxonomy document with a top-level "taxonomy" key.
func ParseTaxonomy(data []byte) (Taxonomy, error) {
	var wrapper struct {
		Taxonomy Taxonomy `yaml:"taxonomy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Taxonomy{}, eris.Wrap(err, "accounts: parse taxonomy")
	}
	tx := wrapper.Taxonomy
	if tx.DormantResolution == "" {
		tx.DormantResolution = DormantFirst
	}
	if err := tx.Validate(); err != nil {
		return Taxonomy{}, err
	}
	return tx, nil
}

// Validate checks that every concept the assembler depends on is named.
func (tx Taxonomy) Validate() error {
	required := map[string]string{
		"concepts.registration":     tx.Concepts.Registration,
		"concepts.period_start":     tx.Concepts.PeriodStart,
		"concepts.period_end":       tx.Concepts.PeriodEnd,
		"pairs.turnover":            tx.Pairs.Turnover.Concept,
		"pairs.intangible_assets":   tx.Pairs.IntangibleAssets.Concept,
		"pairs.investment_property": tx.Pairs.InvestmentProperty.Concept,
		"pairs.investment_assets":   tx.Pairs.InvestmentAssets.Concept,
		"pairs.biological_assets":   tx.Pairs.BiologicalAssets.Concept,
		"pairs.plant_equipment":     tx.Pairs.PlantEquipment.Concept,
		"pairs.equity":              tx.Pairs.Equity.Concept,
	}
	for key, v := range required {
		if v == "" {
			return eris.Errorf("accounts: taxonomy %q missing %s", tx.Name, key)
		}
	}
	switch tx.DormantResolution {
	case DormantFirst, DormantLast:
	default:
		return eris.Errorf("accounts: taxonomy %q has unknown dormant_resolution %q", tx.Name, tx.DormantResolution)
	}
	return nil
}
