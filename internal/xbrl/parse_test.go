package xbrl

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = "testdata/Prod224_0001_12345678_20220331.html"

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func findAll(inst *Instance, concept string) []Fact {
	var out []Fact
	for _, f := range inst.Facts {
		if NameEquals(concept, f) {
			out = append(out, f)
		}
	}
	return out
}

func TestParseFile_Sample(t *testing.T) {
	inst, err := ParseFile(sampleFile)
	require.NoError(t, err)

	assert.Len(t, inst.Facts, 19)
	assert.Len(t, inst.Contexts, 7)
	assert.Equal(t, "iso4217:GBP", inst.Units["GBP"])

	// Document order is preserved.
	assert.Equal(t, "EntityDormantTruefalse", inst.Facts[0].Concept)
	assert.Equal(t, "AverageNumberEmployeesDuringPeriod", inst.Facts[len(inst.Facts)-1].Concept)
}

func TestParse_ScriptsAndExcludesIgnored(t *testing.T) {
	inst, err := ParseFile(sampleFile)
	require.NoError(t, err)

	names := findAll(inst, "EntityCurrentLegalOrRegisteredName")
	require.Len(t, names, 1)
	s, ok := names[0].Value.Str()
	require.True(t, ok)
	assert.Equal(t, "EXAMPLE TRADING LIMITED", s)

	equity := findAll(inst, "Equity")
	require.Len(t, equity, 3)
	for _, f := range equity {
		n, _ := f.Value.Float()
		assert.NotEqual(t, 1.0, n)
	}
}

func TestParse_Contexts(t *testing.T) {
	inst, err := ParseFile(sampleFile)
	require.NoError(t, err)

	turnover := findAll(inst, "TurnoverRevenue")
	require.Len(t, turnover, 2)
	assert.Equal(t, date("2021-04-01"), turnover[0].Context.Start)
	assert.Equal(t, date("2022-03-31"), turnover[0].Context.End)
	assert.False(t, HasInstantDate(turnover[0]))
	assert.Equal(t, "iso4217:GBP", turnover[0].Unit)

	postcode := findAll(inst, "PostalCodeZip")
	require.Len(t, postcode, 1)
	assert.Equal(t, date("2022-03-31"), postcode[0].Context.Instant)
	member, ok := postcode[0].Dimension("EntityContactTypeDimension")
	require.True(t, ok)
	assert.Equal(t, "RegisteredOffice", member)
}

func TestParse_NumericTransforms(t *testing.T) {
	inst, err := ParseFile(sampleFile)
	require.NoError(t, err)

	intangible := findAll(inst, "IntangibleAssets")
	require.Len(t, intangible, 2)
	n, ok := intangible[0].Value.Float()
	require.True(t, ok)
	assert.InDelta(t, 12000.0, n, 0.001)
	n, ok = intangible[1].Value.Float()
	require.True(t, ok)
	assert.Zero(t, n)

	creditors := findAll(inst, "Creditors")
	require.Len(t, creditors, 1)
	n, _ = creditors[0].Value.Float()
	assert.InDelta(t, -3500.0, n, 0.001)

	turnover := findAll(inst, "TurnoverRevenue")
	n, _ = turnover[0].Value.Float()
	assert.InDelta(t, 1250000.0, n, 0.001)
}

func TestParse_DivideUnitAndNil(t *testing.T) {
	doc := `<html><body>
<ix:header><ix:resources>
<xbrli:context id="c1"><xbrli:period><xbrli:instant>2020-12-31</xbrli:instant></xbrli:period></xbrli:context>
<xbrli:unit id="u1"><xbrli:divide>
<xbrli:unitNumerator><xbrli:measure>iso4217:GBP</xbrli:measure></xbrli:unitNumerator>
<xbrli:unitDenominator><xbrli:measure>xbrli:shares</xbrli:measure></xbrli:unitDenominator>
</xbrli:divide></xbrli:unit>
</ix:resources></ix:header>
<ix:nonFraction name="core:DividendPerShare" contextRef="c1" unitRef="u1">0.25</ix:nonFraction>
<ix:nonFraction name="core:Equity" contextRef="c1" unitRef="u1" xsi:nil="true"></ix:nonFraction>
<ix:nonFraction name="core:Equity" contextRef="c1" unitRef="u1">n/a</ix:nonFraction>
</body></html>`

	inst, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, inst.Facts, 3)

	assert.Equal(t, "iso4217:GBP/xbrli:shares", inst.Facts[0].Unit)
	assert.True(t, inst.Facts[1].Value.IsAbsent())
	assert.Equal(t, KindText, inst.Facts[2].Value.Kind())
}

func TestParse_DeclaredPrefixes(t *testing.T) {
	doc := `<html xmlns:inl="http://www.xbrl.org/2013/inlineXBRL"
 xmlns:inst="http://www.xbrl.org/2003/instance"
 xmlns:dim="http://xbrl.org/2006/xbrldi"
 xmlns:s="http://www.w3.org/2001/XMLSchema-instance"><body>
<inl:header><inl:resources>
<inst:context id="c1"><inst:entity>
<inst:segment><dim:explicitMember dimension="bus:EntityContactTypeDimension">bus:RegisteredOffice</dim:explicitMember></inst:segment>
</inst:entity><inst:period><inst:instant>2022-03-31</inst:instant></inst:period></inst:context>
<inst:context id="d1"><inst:period><inst:startDate>2021-04-01</inst:startDate><inst:endDate>2022-03-31</inst:endDate></inst:period></inst:context>
<inst:unit id="GBP"><inst:measure>iso4217:GBP</inst:measure></inst:unit>
</inl:resources></inl:header>
<inl:nonNumeric name="bus:PostalCodeZip" contextRef="c1">AB1 2CD</inl:nonNumeric>
<inl:nonFraction name="core:TurnoverRevenue" contextRef="d1" unitRef="GBP" scale="3">1,250</inl:nonFraction>
<inl:nonFraction name="core:Equity" contextRef="c1" unitRef="GBP" s:nil="true"></inl:nonFraction>
<inl:exclude><inl:nonFraction name="core:Equity" contextRef="c1" unitRef="GBP">1</inl:nonFraction></inl:exclude>
</body></html>`

	inst, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, inst.Contexts, 2)
	require.Len(t, inst.Facts, 3)
	assert.Equal(t, "iso4217:GBP", inst.Units["GBP"])

	postcode := inst.Facts[0]
	assert.Equal(t, "PostalCodeZip", postcode.Concept)
	assert.Equal(t, date("2022-03-31"), postcode.Context.Instant)
	member, ok := postcode.Dimension("EntityContactTypeDimension")
	require.True(t, ok)
	assert.Equal(t, "RegisteredOffice", member)

	turnover := inst.Facts[1]
	assert.Equal(t, date("2022-03-31"), turnover.Context.End)
	assert.Equal(t, "iso4217:GBP", turnover.Unit)
	n, ok := turnover.Value.Float()
	require.True(t, ok)
	assert.InDelta(t, 1250000.0, n, 0.001)

	assert.True(t, inst.Facts[2].Value.IsAbsent())
}

func TestNamespaces_Canonical(t *testing.T) {
	ns := namespaces{"inl": "ix", "inst": "xbrli"}
	assert.Equal(t, "ix:nonfraction", ns.canonical("inl:nonfraction"))
	assert.Equal(t, "xbrli:context", ns.canonical("inst:context"))
	assert.Equal(t, "ix:nonfraction", ns.canonical("ix:nonfraction"))
	assert.Equal(t, "div", ns.canonical("div"))
}

func TestParseInstance_PlainXBRL(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<xbrli:xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance" xmlns:xbrldi="http://xbrl.org/2006/xbrldi" xmlns:core="http://xbrl.frc.org.uk/fr/2021-01-01/core" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <core:Equity contextRef="i1" unitRef="GBP" decimals="0">1500</core:Equity>
  <core:Equity contextRef="i1_cls" unitRef="GBP" decimals="0">100</core:Equity>
  <core:Creditors contextRef="i1" unitRef="GBP" xsi:nil="true"/>
  <core:UKCompaniesHouseRegisteredNumber contextRef="d1"> 00000001 </core:UKCompaniesHouseRegisteredNumber>
  <xbrli:context id="i1">
    <xbrli:entity><xbrli:identifier scheme="x">00000001</xbrli:identifier></xbrli:entity>
    <xbrli:period><xbrli:instant>2021-12-31</xbrli:instant></xbrli:period>
  </xbrli:context>
  <xbrli:context id="i1_cls">
    <xbrli:entity><xbrli:identifier scheme="x">00000001</xbrli:identifier>
      <xbrli:segment><xbrldi:explicitMember dimension="core:EquityClassesDimension">core:ShareCapital</xbrldi:explicitMember></xbrli:segment>
    </xbrli:entity>
    <xbrli:period><xbrli:instant>2021-12-31</xbrli:instant></xbrli:period>
  </xbrli:context>
  <xbrli:context id="d1">
    <xbrli:entity><xbrli:identifier scheme="x">00000001</xbrli:identifier></xbrli:entity>
    <xbrli:period><xbrli:startDate>2021-01-01</xbrli:startDate><xbrli:endDate>2021-12-31</xbrli:endDate></xbrli:period>
  </xbrli:context>
  <xbrli:unit id="GBP"><xbrli:measure>iso4217:GBP</xbrli:measure></xbrli:unit>
</xbrli:xbrl>`

	inst, err := ParseInstance(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, inst.Facts, 4)

	eq := inst.Facts[0]
	assert.Equal(t, "Equity", eq.Concept)
	assert.True(t, HasCurrencyUnit(eq, "GBP"))
	assert.Equal(t, date("2021-12-31"), eq.Context.Instant)
	n, ok := eq.Value.Float()
	require.True(t, ok)
	assert.InDelta(t, 1500.0, n, 0.001)

	assert.True(t, DimensionPresent("EquityClassesDimension", inst.Facts[1]))
	assert.True(t, inst.Facts[2].Value.IsAbsent())

	reg := inst.Facts[3]
	assert.Equal(t, date("2021-12-31"), reg.Context.End)
	s, _ := reg.Value.Str()
	assert.Equal(t, "00000001", s)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile("testdata/does-not-exist.html")
	assert.Error(t, err)
}
