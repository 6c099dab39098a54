package accounts

import "github.com/rotisserie/eris"

// Resolution failures. Each one describes missing or malformed data in a
// filing; none of them is transient.
var (
	ErrNotFound         = eris.New("accounts: concept not found")
	ErrPeriodUnresolved = eris.New("accounts: reporting period unresolved")
	ErrNoMatchingFacts  = eris.New("accounts: no matching facts")
	ErrTypeMismatch     = eris.New("accounts: non-numeric aggregate component")
)
