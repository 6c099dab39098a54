// Package filing derives filing identity from Companies House archive file
// names such as Prod224_0001_12345678_20220331.html.
package filing

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

const (
	archiveDateLayout = "20060102"
	isoDateLayout     = "2006-01-02"
)

// ErrBadName marks a file name that does not encode a registration number and
// period end date.
var ErrBadName = eris.New("filing: unrecognised archive file name")

// Name is the identity encoded in an archive file name.
type Name struct {
	Registration string
	PeriodEnd    time.Time
}

// ParseName reads the registration number and period end date from the third
// and fourth underscore-separated tokens of the file's base name.
func ParseName(path string) (Name, error) {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	tokens := strings.Split(base, "_")
	if len(tokens) < 4 {
		return Name{}, eris.Wrapf(ErrBadName, "%q has %d tokens", filepath.Base(path), len(tokens))
	}
	reg := strings.TrimSpace(tokens[2])
	if reg == "" {
		return Name{}, eris.Wrapf(ErrBadName, "%q has no registration number", filepath.Base(path))
	}
	end, err := time.Parse(archiveDateLayout, tokens[3])
	if err != nil {
		return Name{}, eris.Wrapf(ErrBadName, "%q has bad date %q", filepath.Base(path), tokens[3])
	}
	return Name{Registration: reg, PeriodEnd: end}, nil
}

// ISODate returns the period end as YYYY-MM-DD.
func (n Name) ISODate() string { return n.PeriodEnd.Format(isoDateLayout) }

// ID returns the filing's unique identifier.
func (n Name) ID() string { return UniqueID(n.Registration, n.ISODate()) }

// UniqueID returns the name-based (version 5) UUID of "registration_isoDate"
// in the DNS namespace, as 32 lower-case hex digits.
func UniqueID(registration, isoDate string) string {
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(registration+"_"+isoDate))
	return hex.EncodeToString(id[:])
}

// IsFilingFile reports whether path looks like an accounts document.
func IsFilingFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml", ".xml":
		return true
	}
	return false
}

const bulkArchivePrefix = "Accounts_Bulk_Data-"

// ArchiveDate returns the publication date encoded in a daily bulk archive
// name such as Accounts_Bulk_Data-2022-05-01.zip.
func ArchiveDate(path string) (time.Time, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, bulkArchivePrefix) {
		return time.Time{}, false
	}
	base = strings.TrimSuffix(strings.TrimPrefix(base, bulkArchivePrefix), filepath.Ext(base))
	d, err := time.Parse(isoDateLayout, base)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
