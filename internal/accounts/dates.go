package accounts

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
)

// dayFirstLayouts are numeric forms dateparse reads month first or not at
// all. They are tried before it.
var dayFirstLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
}

var ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)

// ParseDate reads the date formats found in period concepts of UK filings.
// Numeric day/month forms are read day first.
func ParseDate(s string) (time.Time, error) {
	clean := ordinalSuffix.ReplaceAllString(strings.TrimSpace(s), "$1")
	clean = strings.Join(strings.Fields(clean), " ")

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return day(t), nil
		}
	}
	if t, err := dateparse.ParseIn(clean, time.UTC, dateparse.PreferMonthFirst(false)); err == nil {
		return day(t), nil
	}
	return time.Time{}, eris.Errorf("accounts: unrecognised date %q", s)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
