// Package xbrl parses inline XBRL (iXBRL) documents into a flat list of facts
// and provides the predicates used to select facts by name, unit, date shape
// and dimensional qualifier.
package xbrl

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value variants.
const (
	KindAbsent Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "absent"
	}
}

// Value is the post-parse value of a fact. The zero value is Absent.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a textual value. The text is stored as given.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Absent returns the absent value.
func Absent() Value { return Value{} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v carries no value.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Float returns the numeric value and true when v is a Number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the text and true when v is Text.
func (v Value) Str() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// String renders the value for logs and keys.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// MarshalJSON encodes Absent as null, Number as a JSON number and Text as a
// JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, numbers and strings into the matching variant.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case float64:
		*v = Number(x)
	case string:
		*v = Text(x)
	case bool:
		*v = Text(strconv.FormatBool(x))
	default:
		*v = Value{}
	}
	return nil
}

// Context scopes a fact in time. A well formed context carries either an
// instant or a duration (Start and End).
type Context struct {
	ID         string
	Instant    time.Time
	Start      time.Time
	End        time.Time
	Dimensions map[string]string
}

// HasInstant reports whether the context is an instant.
func (c Context) HasInstant() bool { return !c.Instant.IsZero() }

// HasDuration reports whether the context carries a duration end date.
func (c Context) HasDuration() bool { return !c.End.IsZero() }

// Fact is a single tagged data point. Facts are never mutated after parsing.
type Fact struct {
	Concept    string
	Value      Value
	Context    Context
	Unit       string
	Dimensions map[string]string
}

// Dimension returns the member for dim and whether it was present.
func (f Fact) Dimension(dim string) (string, bool) {
	if f.Dimensions == nil {
		return "", false
	}
	m, ok := f.Dimensions[dim]
	return m, ok
}

// Instance is the parsed content of one iXBRL document.
type Instance struct {
	Facts    []Fact
	Contexts map[string]Context
	Units    map[string]string
}
