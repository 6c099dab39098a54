// Package fetcher downloads and unpacks Companies House accounts archives.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the Companies House bulk download host.
const DefaultBaseURL = "https://download.companieshouse.gov.uk"

// ErrNotFound is returned when the server reports that an archive does not
// exist, usually because it has not been published yet.
var ErrNotFound = eris.New("fetcher: not found")

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// BulkArchiveURL returns the daily accounts archive published for date,
// e.g. <base>/Accounts_Bulk_Data-2022-05-01.zip.
func BulkArchiveURL(base string, date time.Time) string {
	return joinURL(base, "Accounts_Bulk_Data-"+date.Format("2006-01-02")+".zip")
}

// MonthlyArchiveURL returns the monthly accounts archive for the month
// containing month, e.g. <base>/archive/Accounts_Monthly_Data-January2022.zip.
func MonthlyArchiveURL(base string, month time.Time) string {
	return joinURL(base, "archive/Accounts_Monthly_Data-"+month.Format("January2006")+".zip")
}

// ArchiveName returns the file name at the end of an archive URL. It is the
// key under which ingest runs are recorded.
func ArchiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

func joinURL(base, name string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + name
}
