package pipeline

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/digiaccounts/internal/fetcher"
	"github.com/sells-group/digiaccounts/internal/resilience"
	"github.com/sells-group/digiaccounts/internal/store"
)

const bulkArchiveName = "Accounts_Bulk_Data-2022-05-01.zip"

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// buildArchive writes a ZIP holding entries (name to content) and returns its
// path.
func buildArchive(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for entry, content := range entries {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func sampleArchive(t *testing.T, dir string) string {
	return buildArchive(t, dir, bulkArchiveName, map[string][]byte{
		fixtureName:  fixture(t),
		"readme.txt": []byte("not a filing"),
	})
}

func TestProcessArchive_RecordsRunAndFilingDate(t *testing.T) {
	st := newSQLiteStore(t)
	p := newTestProcessor(st)
	p.opts.TempDir = t.TempDir()
	ctx := context.Background()

	zipPath := sampleArchive(t, t.TempDir())
	stats, err := p.ProcessArchive(ctx, zipPath, false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 1, Inserted: 1}, stats)

	doc, err := st.Get(ctx, fixtureID)
	require.NoError(t, err)
	var data map[string]any
	require.NoError(t, json.Unmarshal(doc.Data, &data))
	assert.Equal(t, "2022-05-01", data["filing_date"])
	assert.Equal(t, "12345678", data["registration_number"])

	last, err := st.LastSuccess(ctx, bulkArchiveName)
	require.NoError(t, err)
	require.NotNil(t, last)

	entries, err := os.ReadDir(p.opts.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "extract dir should be removed")
}

func TestProcessArchive_SkipsCompletedUnlessForced(t *testing.T) {
	st := newSQLiteStore(t)
	p := newTestProcessor(st)
	p.opts.TempDir = t.TempDir()
	ctx := context.Background()
	zipPath := sampleArchive(t, t.TempDir())

	_, err := p.ProcessArchive(ctx, zipPath, false)
	require.NoError(t, err)

	stats, err := p.ProcessArchive(ctx, zipPath, false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: true}, stats)

	stats, err = p.ProcessArchive(ctx, zipPath, true)
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 1, Existing: 1}, stats)
}

func TestProcessArchive_InvalidZipFailsRun(t *testing.T) {
	st := new(mockStore)
	st.On("LastSuccess", mock.Anything, "broken.zip").Return(nil, nil).Once()
	st.On("StartRun", mock.Anything, "broken.zip").Return(int64(7), nil).Once()
	st.On("FailRun", mock.Anything, int64(7), mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil).Once()

	dir := t.TempDir()
	zipPath := writeFile(t, dir, "broken.zip", []byte("not a zip"))

	p := newTestProcessor(st)
	p.opts.TempDir = t.TempDir()
	_, err := p.ProcessArchive(context.Background(), zipPath, false)
	require.Error(t, err)
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessArchive_RetriesRunLogWrites(t *testing.T) {
	st := new(mockStore)
	st.On("LastSuccess", mock.Anything, bulkArchiveName).Return(nil, nil).Once()
	st.On("StartRun", mock.Anything, bulkArchiveName).Return(int64(3), nil).Once()
	st.On("InsertManyIfAbsent", mock.Anything, docsWithIDs(fixtureID)).Return(int64(1), nil).Once()
	result := store.RunResult{Processed: 1, Inserted: 1}
	st.On("CompleteRun", mock.Anything, int64(3), result).Return(errors.New("database is locked")).Once()
	st.On("CompleteRun", mock.Anything, int64(3), result).Return(nil).Once()

	p := newTestProcessor(st)
	p.opts.TempDir = t.TempDir()
	stats, err := p.ProcessArchive(context.Background(), sampleArchive(t, t.TempDir()), false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 1, Inserted: 1}, stats)
	st.AssertNumberOfCalls(t, "CompleteRun", 2)
	st.AssertExpectations(t)
}

func TestProcessArchive_RunLogError(t *testing.T) {
	st := new(mockStore)
	st.On("LastSuccess", mock.Anything, bulkArchiveName).Return(nil, errors.New("connection refused")).Once()

	p := newTestProcessor(st)
	_, err := p.ProcessArchive(context.Background(), filepath.Join(t.TempDir(), bulkArchiveName), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check run log")
	st.AssertNotCalled(t, "StartRun", mock.Anything, mock.Anything)
}

func TestFetchArchive(t *testing.T) {
	zipPath := sampleArchive(t, t.TempDir())
	body, err := os.ReadFile(zipPath)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/"+bulkArchiveName {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	st := newSQLiteStore(t)
	p := newTestProcessor(st)
	p.opts.TempDir = t.TempDir()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: 5 * time.Second,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	})
	ctx := context.Background()
	url := fetcher.BulkArchiveURL(srv.URL, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC))

	stats, err := p.FetchArchive(ctx, f, url, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Inserted)

	stats, err = p.FetchArchive(ctx, f, url, false)
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Equal(t, int32(1), hits.Load(), "completed archive should not be downloaded again")
}

func TestFetchArchive_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	st := new(mockStore)
	st.On("LastSuccess", mock.Anything, "Accounts_Bulk_Data-2022-05-02.zip").Return(nil, nil).Once()

	p := newTestProcessor(st)
	p.opts.TempDir = t.TempDir()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Retry: resilience.RetryConfig{MaxAttempts: 1}})
	url := fetcher.BulkArchiveURL(srv.URL, time.Date(2022, 5, 2, 0, 0, 0, 0, time.UTC))

	_, err := p.FetchArchive(context.Background(), f, url, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetcher.ErrNotFound)
	st.AssertNotCalled(t, "StartRun", mock.Anything, mock.Anything)
}
