package accounts

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Mode selects which context date places a fact against the period.
type Mode int

// Date modes.
const (
	// Instant uses the context's instant date (balance sheet items).
	Instant Mode = iota
	// DurationEnd uses the end of the context's duration (flow items).
	DurationEnd
)

func (m Mode) String() string {
	if m == DurationEnd {
		return "duration_end"
	}
	return "instant"
}

// UnmarshalYAML reads "instant" or "duration_end".
func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "instant", "":
		*m = Instant
	case "duration_end", "duration-end", "durationend":
		*m = DurationEnd
	default:
		return eris.Errorf("accounts: unknown date mode %q", node.Value)
	}
	return nil
}

// PairSpec binds an opening/closing extraction to a concept.
type PairSpec struct {
	Concept          string `yaml:"concept"`
	ExcludeDimension string `yaml:"exclude_dimension"`
	Mode             Mode   `yaml:"mode"`
}

// Item is a fact projected to its value and placement date.
type Item struct {
	Value xbrl.Value
	Date  time.Time
}

// Pair holds the values of a concept at the start (opening) and end (closing)
// of the reporting period. Absent marks an unknown side.
type Pair struct {
	Opening xbrl.Value
	Closing xbrl.Value
}

// UnknownPair is the pair with both sides unknown.
var UnknownPair = Pair{}

// Pair resolves the opening and closing values for spec. A side that no fact
// falls on stays Absent.
func (r *Resolver) Pair(facts []xbrl.Fact, spec PairSpec) (Pair, error) {
	period, err := r.Period(facts)
	if err != nil {
		return Pair{}, err
	}

	var matched int
	var items []Item
	for _, f := range facts {
		if !xbrl.NameEquals(spec.Concept, f) {
			continue
		}
		if spec.ExcludeDimension != "" && xbrl.DimensionPresent(spec.ExcludeDimension, f) {
			continue
		}
		matched++
		if item, ok := project(f, spec.Mode); ok {
			items = append(items, item)
		}
	}
	if matched == 0 {
		return Pair{}, eris.Wrapf(ErrNoMatchingFacts, "concept %q", spec.Concept)
	}

	return PartitionItems(items, period), nil
}

// project places f by its instant or duration end. Facts whose context lacks
// that date are not usable for the extraction.
func project(f xbrl.Fact, mode Mode) (Item, bool) {
	if mode == DurationEnd {
		if !f.Context.HasDuration() {
			return Item{}, false
		}
		return Item{Value: f.Value, Date: f.Context.End}, true
	}
	if !f.Context.HasInstant() {
		return Item{}, false
	}
	return Item{Value: f.Value, Date: f.Context.Instant}, true
}

// PartitionItems assigns items to the opening and closing sides in order. An
// item on or before the period start fills the opening side; otherwise an
// item on or after the period end fills the closing side. The first item for
// each side wins and items strictly inside the period are discarded.
func PartitionItems(items []Item, period Period) Pair {
	start, startKnown := period.Start.Get()
	end, endKnown := period.End.Get()

	var p Pair
	var haveOpening, haveClosing bool
	for _, it := range items {
		switch {
		case !haveOpening && startKnown && !it.Date.After(start):
			p.Opening = it.Value
			haveOpening = true
		case !haveClosing && endKnown && !it.Date.Before(end):
			p.Closing = it.Value
			haveClosing = true
		}
	}
	return p
}
