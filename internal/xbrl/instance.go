package xbrl

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

type xmlMember struct {
	Dimension string `xml:"dimension,attr"`
	Value     string `xml:",chardata"`
}

type xmlTypedMember struct {
	Dimension string `xml:"dimension,attr"`
	Value     struct {
		Text string `xml:",chardata"`
	} `xml:",any"`
}

type xmlQualifiers struct {
	Explicit []xmlMember      `xml:"explicitMember"`
	Typed    []xmlTypedMember `xml:"typedMember"`
}

type xmlContext struct {
	ID       string        `xml:"id,attr"`
	Segment  xmlQualifiers `xml:"entity>segment"`
	Scenario xmlQualifiers `xml:"scenario"`
	Period   struct {
		Instant string `xml:"instant"`
		Start   string `xml:"startDate"`
		End     string `xml:"endDate"`
	} `xml:"period"`
}

type xmlUnit struct {
	ID       string   `xml:"id,attr"`
	Measures []string `xml:"measure"`
	Num      []string `xml:"divide>unitNumerator>measure"`
	Den      []string `xml:"divide>unitDenominator>measure"`
}

type xmlFact struct {
	concept    string
	contextRef string
	unitRef    string
	isNil      bool
	text       string
}

// ParseInstance reads a plain XBRL instance document. Facts are returned in
// document order.
func ParseInstance(r io.Reader) (*Instance, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xbrl: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	inst := &Instance{
		Contexts: make(map[string]Context),
		Units:    make(map[string]string),
	}
	var raw []xmlFact

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "xbrl: read token")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "context":
			var xc xmlContext
			if err := decoder.DecodeElement(&xc, &se); err != nil {
				return nil, eris.Wrap(err, "xbrl: decode context")
			}
			c := xc.toContext()
			inst.Contexts[c.ID] = c
			continue
		case "unit":
			var xu xmlUnit
			if err := decoder.DecodeElement(&xu, &se); err != nil {
				return nil, eris.Wrap(err, "xbrl: decode unit")
			}
			inst.Units[strings.TrimSpace(xu.ID)] = xu.measure()
			continue
		}

		f := xmlFact{concept: se.Name.Local}
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "contextRef":
				f.contextRef = strings.TrimSpace(a.Value)
			case "unitRef":
				f.unitRef = strings.TrimSpace(a.Value)
			case "nil":
				f.isNil = strings.EqualFold(a.Value, nilTrue)
			}
		}
		if f.contextRef == "" {
			continue
		}
		var body struct {
			Text string `xml:",chardata"`
		}
		if err := decoder.DecodeElement(&body, &se); err != nil {
			return nil, eris.Wrapf(err, "xbrl: decode fact %s", se.Name.Local)
		}
		f.text = strings.TrimSpace(body.Text)
		raw = append(raw, f)
	}

	// Contexts and units may follow the facts that reference them.
	for _, rf := range raw {
		ctx := inst.Contexts[rf.contextRef]
		f := Fact{
			Concept:    rf.concept,
			Context:    ctx,
			Dimensions: ctx.Dimensions,
		}
		switch {
		case rf.unitRef != "":
			f.Unit = inst.Units[rf.unitRef]
			f.Value = numericValue(rf.text, "", "", "", rf.isNil)
		case rf.isNil:
			f.Value = Absent()
		default:
			f.Value = Text(rf.text)
		}
		inst.Facts = append(inst.Facts, f)
	}

	return inst, nil
}

func (xc xmlContext) toContext() Context {
	c := Context{
		ID:      strings.TrimSpace(xc.ID),
		Instant: parseISODate(xc.Period.Instant),
		Start:   parseISODate(xc.Period.Start),
		End:     parseISODate(xc.Period.End),
	}
	for _, q := range []xmlQualifiers{xc.Segment, xc.Scenario} {
		for _, m := range q.Explicit {
			c.addDimension(m.Dimension, m.Value)
		}
		for _, m := range q.Typed {
			c.addDimension(m.Dimension, m.Value.Text)
		}
	}
	return c
}

func (xu xmlUnit) measure() string {
	trim := func(ms []string) string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, strings.TrimSpace(m))
		}
		return strings.Join(out, "*")
	}
	if len(xu.Num) > 0 || len(xu.Den) > 0 {
		return trim(xu.Num) + "/" + trim(xu.Den)
	}
	return trim(xu.Measures)
}
