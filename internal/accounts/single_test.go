package accounts

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/digiaccounts/internal/xbrl"
)

func TestResolveSingleFact_NotFound(t *testing.T) {
	facts := []xbrl.Fact{
		textFact("EntityCurrentLegalOrRegisteredName", "ACME LTD"),
		textFact("UKCompaniesHouseRegisteredNumberOld", "1"),
	}

	_, err := ResolveSingleFact("UKCompaniesHouseRegisteredNumber", facts)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = ResolveSingleFact("Anything", nil)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestResolveSingleFact_TrimsText(t *testing.T) {
	facts := []xbrl.Fact{textFact("UKCompaniesHouseRegisteredNumber", "  01234567 \n")}

	v, err := ResolveSingleFact("ukcompanieshouseregisterednumber", facts)
	require.NoError(t, err)
	assert.Equal(t, xbrl.Text("01234567"), v)
}

func TestResolveSingleFact_FirstMatchWins(t *testing.T) {
	facts := []xbrl.Fact{
		textFact("Other", "x"),
		{Concept: "AverageNumberEmployeesDuringPeriod", Value: xbrl.Number(4)},
		{Concept: "AverageNumberEmployeesDuringPeriod", Value: xbrl.Number(9)},
	}

	v, err := ResolveSingleFact("AverageNumberEmployeesDuringPeriod", facts)
	require.NoError(t, err)
	assert.Equal(t, xbrl.Number(4), v)
}

func TestResolveSingleFact_AbsentValue(t *testing.T) {
	facts := []xbrl.Fact{{Concept: "Equity"}}

	v, err := ResolveSingleFact("Equity", facts)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())
}
