package accounts

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Officer is a named entity officer and the position member that keys them.
type Officer struct {
	Position string `json:"position"`
	Name     string `json:"name"`
}

// Officers lists the entity officers named in facts, in document order. Each
// position keeps its first name. A different name reported for a taken
// position is kept under the position with a numeric suffix; a repeated
// name for a taken position is dropped.
func (r *Resolver) Officers(facts []xbrl.Fact) []Officer {
	concept, dim := r.tx.Concepts.OfficerName, r.tx.Dimensions.Officers
	if concept == "" || dim == "" {
		return nil
	}

	var out []Officer
	byPosition := make(map[string]string)
	names := make(map[string]bool)
	extra := 0
	for _, f := range facts {
		if !xbrl.NameEquals(concept, f) {
			continue
		}
		text, ok := f.Value.Str()
		name := strings.TrimSpace(text)
		if !ok || name == "" {
			continue
		}
		position, ok := f.Dimension(dim)
		if !ok {
			continue
		}

		_, taken := byPosition[position]
		switch {
		case !taken:
			if names[name] {
				r.log.Debug("officer holds several positions", zap.String("position", position))
			}
		case !names[name]:
			extra++
			position += "_" + strconv.Itoa(extra)
			r.log.Debug("several officers share a position", zap.String("position", position))
		default:
			continue
		}
		byPosition[position] = name
		names[name] = true
		out = append(out, Officer{Position: position, Name: name})
	}
	return out
}
