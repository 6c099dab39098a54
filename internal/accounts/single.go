package accounts

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// ResolveSingleFact returns the value of the first fact named concept, in
// document order. Text values are trimmed.
func ResolveSingleFact(concept string, facts []xbrl.Fact) (xbrl.Value, error) {
	for _, f := range facts {
		if !xbrl.NameEquals(concept, f) {
			continue
		}
		if s, ok := f.Value.Str(); ok {
			return xbrl.Text(strings.TrimSpace(s)), nil
		}
		return f.Value, nil
	}
	return xbrl.Value{}, eris.Wrapf(ErrNotFound, "concept %q", concept)
}

// resolveText resolves concept and renders the value as a string.
func resolveText(concept string, facts []xbrl.Fact) (string, error) {
	v, err := ResolveSingleFact(concept, facts)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
