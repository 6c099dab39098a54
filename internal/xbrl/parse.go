package xbrl

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Element names as produced by the HTML tokenizer, which lower-cases tags
// and attribute names. Names use the conventional prefixes; a document that
// binds the same namespaces to other prefixes is mapped onto these.
const (
	tagContext      = "xbrli:context"
	tagUnit         = "xbrli:unit"
	tagNonFraction  = "ix:nonfraction"
	tagNonNumeric   = "ix:nonnumeric"
	tagExclude      = "ix:exclude"
	tagExplicit     = "xbrldi:explicitmember"
	tagTyped        = "xbrldi:typedmember"
	tagInstant      = "xbrli:instant"
	tagStartDate    = "xbrli:startdate"
	tagEndDate      = "xbrli:enddate"
	tagMeasure      = "xbrli:measure"
	tagNumerator    = "xbrli:unitnumerator"
	tagDenominator  = "xbrli:unitdenominator"
	attrContextRef  = "contextref"
	attrUnitRef     = "unitref"
	attrXsiNil      = "xsi:nil"
	attrDimension   = "dimension"
	attrFormat      = "format"
	attrScale       = "scale"
	attrSign        = "sign"
	attrName        = "name"
	attrID          = "id"
	nilTrue         = "true"
	isoDateLayout   = "2006-01-02"
	isoDateTimePart = "T"
	xmlnsPrefix     = "xmlns:"
)

// conventionalPrefixes maps the namespaces the parser reads to the prefixes
// used in the element names above.
var conventionalPrefixes = map[string]string{
	"http://www.xbrl.org/2013/inlinexbrl":       "ix",
	"http://www.xbrl.org/2008/inlinexbrl":       "ix",
	"http://www.xbrl.org/2003/instance":         "xbrli",
	"http://xbrl.org/2006/xbrldi":               "xbrldi",
	"http://www.w3.org/2001/xmlschema-instance": "xsi",
}

// namespaces maps prefixes declared in a document to conventional ones.
type namespaces map[string]string

// declaredNamespaces collects the xmlns declarations of every element in doc
// whose namespace the parser reads.
func declaredNamespaces(doc *goquery.Document) namespaces {
	ns := make(namespaces)
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, a := range s.Get(0).Attr {
			if !strings.HasPrefix(a.Key, xmlnsPrefix) {
				continue
			}
			uri := strings.ToLower(strings.TrimSpace(a.Val))
			if conv, ok := conventionalPrefixes[uri]; ok {
				ns[strings.TrimPrefix(a.Key, xmlnsPrefix)] = conv
			}
		}
	})
	return ns
}

// canonical rewrites the prefix of qname to its conventional form. Names
// with an undeclared prefix are returned unchanged.
func (ns namespaces) canonical(qname string) string {
	i := strings.IndexByte(qname, ':')
	if i < 0 {
		return qname
	}
	if conv, ok := ns[qname[:i]]; ok {
		return conv + qname[i:]
	}
	return qname
}

func (ns namespaces) name(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return ns.canonical(n.Data)
}

func (ns namespaces) nodeName(s *goquery.Selection) string {
	return ns.name(s.Get(0))
}

// attr returns the attribute of s whose canonical name is key.
func (ns namespaces) attr(s *goquery.Selection, key string) (string, bool) {
	for _, a := range s.Get(0).Attr {
		if ns.canonical(a.Key) == key {
			return a.Val, true
		}
	}
	return "", false
}

// ParseFile parses an iXBRL (.html, .xhtml) or XBRL instance (.xml) file.
func ParseFile(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xbrl: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if strings.EqualFold(filepath.Ext(path), ".xml") {
		inst, err := ParseInstance(bufio.NewReader(f))
		if err != nil {
			return nil, eris.Wrapf(err, "xbrl: parse %s", filepath.Base(path))
		}
		return inst, nil
	}

	inst, err := Parse(bufio.NewReader(f))
	if err != nil {
		return nil, eris.Wrapf(err, "xbrl: parse %s", filepath.Base(path))
	}
	return inst, nil
}

// Parse reads an inline XBRL document. Facts are returned in document order.
func Parse(r io.Reader) (*Instance, error) {
	utf8, err := charset.NewReader(r, "")
	if err != nil {
		return nil, eris.Wrap(err, "xbrl: detect charset")
	}
	doc, err := goquery.NewDocumentFromReader(utf8)
	if err != nil {
		return nil, eris.Wrap(err, "xbrl: read document")
	}
	doc.Find("script").Remove()

	inst := &Instance{
		Contexts: make(map[string]Context),
		Units:    make(map[string]string),
	}
	ns := declaredNamespaces(doc)

	all := doc.Find("*")
	all.Each(func(_ int, s *goquery.Selection) {
		switch ns.nodeName(s) {
		case tagContext:
			c := ns.parseContext(s)
			if c.ID != "" {
				inst.Contexts[c.ID] = c
			}
		case tagUnit:
			if id, ok := s.Attr(attrID); ok {
				inst.Units[strings.TrimSpace(id)] = ns.parseUnit(s)
			}
		}
	})

	all.Each(func(_ int, s *goquery.Selection) {
		name := ns.nodeName(s)
		if name != tagNonFraction && name != tagNonNumeric {
			return
		}
		if ns.insideExclude(s.Get(0)) {
			return
		}
		f, ok := inst.inlineFact(ns, s, name == tagNonFraction)
		if ok {
			inst.Facts = append(inst.Facts, f)
		}
	})

	return inst, nil
}

func (inst *Instance) inlineFact(ns namespaces, s *goquery.Selection, numeric bool) (Fact, bool) {
	qname, ok := s.Attr(attrName)
	if !ok || strings.TrimSpace(qname) == "" {
		return Fact{}, false
	}
	concept := localName(strings.TrimSpace(qname))
	ref, _ := s.Attr(attrContextRef)
	ctx := inst.Contexts[strings.TrimSpace(ref)]

	f := Fact{
		Concept:    concept,
		Context:    ctx,
		Dimensions: ctx.Dimensions,
	}

	text := ns.visibleText(s.Get(0))
	nilAttr, _ := ns.attr(s, attrXsiNil)
	isNil := strings.EqualFold(strings.TrimSpace(nilAttr), nilTrue)
	if numeric {
		f.Unit = inst.Units[strings.TrimSpace(s.AttrOr(attrUnitRef, ""))]
		f.Value = numericValue(text, s.AttrOr(attrFormat, ""), s.AttrOr(attrScale, ""), s.AttrOr(attrSign, ""), isNil)
		return f, true
	}
	if isNil {
		f.Value = Absent()
	} else {
		f.Value = Text(text)
	}
	return f, true
}

func (ns namespaces) parseContext(s *goquery.Selection) Context {
	c := Context{ID: strings.TrimSpace(s.AttrOr(attrID, ""))}
	s.Find("*").Each(func(_ int, e *goquery.Selection) {
		switch ns.nodeName(e) {
		case tagInstant:
			c.Instant = parseISODate(e.Text())
		case tagStartDate:
			c.Start = parseISODate(e.Text())
		case tagEndDate:
			c.End = parseISODate(e.Text())
		case tagExplicit:
			c.addDimension(e.AttrOr(attrDimension, ""), e.Text())
		case tagTyped:
			c.addDimension(e.AttrOr(attrDimension, ""), e.Text())
		}
	})
	return c
}

func (c *Context) addDimension(dim, member string) {
	dim = strings.TrimSpace(dim)
	if dim == "" {
		return
	}
	if c.Dimensions == nil {
		c.Dimensions = make(map[string]string)
	}
	c.Dimensions[localName(dim)] = localName(strings.TrimSpace(member))
}

func (ns namespaces) parseUnit(s *goquery.Selection) string {
	measures := func(sel *goquery.Selection) string {
		var parts []string
		sel.Find("*").Each(func(_ int, m *goquery.Selection) {
			if ns.nodeName(m) == tagMeasure {
				parts = append(parts, strings.TrimSpace(m.Text()))
			}
		})
		return strings.Join(parts, "*")
	}

	var num, den string
	s.Find("*").Each(func(_ int, e *goquery.Selection) {
		switch ns.nodeName(e) {
		case tagNumerator:
			num = measures(e)
		case tagDenominator:
			den = measures(e)
		}
	})
	if num != "" || den != "" {
		return num + "/" + den
	}
	return measures(s)
}

// visibleText concatenates the text below n, skipping ix:exclude subtrees.
func (ns namespaces) visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if ns.name(n) == tagExclude {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (ns namespaces) insideExclude(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if ns.name(p) == tagExclude {
			return true
		}
	}
	return false
}

func parseISODate(s string) time.Time {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, isoDateTimePart); i > 0 {
		s = s[:i]
	}
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
