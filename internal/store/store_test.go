package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/digiaccounts/internal/accounts"
	"github.com/sells-group/digiaccounts/internal/xbrl"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testDoc(id, reg, end string) *Document {
	return &Document{
		ID:                 id,
		RegistrationNumber: reg,
		PeriodEnd:          end,
		Data:               json.RawMessage(fmt.Sprintf(`{"_id":%q,"registration_number":%q}`, id, reg)),
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertIfAbsentKeepsFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := testDoc("abc", "00000001", "2021-12-31")
		inserted, err := s.InsertIfAbsent(ctx, first)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.False(t, first.FirstLogged.IsZero())

		second := testDoc("abc", "99999999", "2022-12-31")
		inserted, err = s.InsertIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.True(t, second.FirstLogged.IsZero())

		got, err := s.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "00000001", got.RegistrationNumber)
		assert.Equal(t, "2021-12-31", got.PeriodEnd)
		assert.JSONEq(t, string(first.Data), string(got.Data))
		assert.WithinDuration(t, first.FirstLogged, got.FirstLogged, time.Second)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("TruncatedDocument", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		doc := &Document{ID: "trunc", Data: json.RawMessage(`{"_id":"trunc","registration_number":null}`)}
		inserted, err := s.InsertIfAbsent(ctx, doc)
		require.NoError(t, err)
		assert.True(t, inserted)

		got, err := s.Get(ctx, "trunc")
		require.NoError(t, err)
		assert.Empty(t, got.RegistrationNumber)
		assert.Empty(t, got.PeriodEnd)
	})

	t.Run("InsertManyIfAbsent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.InsertIfAbsent(ctx, testDoc("a", "1", "2020-01-31"))
		require.NoError(t, err)

		n, err := s.InsertManyIfAbsent(ctx, []*Document{
			testDoc("a", "1", "2020-01-31"),
			testDoc("b", "1", "2021-01-31"),
			testDoc("c", "2", "2021-01-31"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.InsertManyIfAbsent(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ListFilterAndPaging", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, d := range []*Document{
			testDoc("a", "1", "2019-03-31"),
			testDoc("b", "1", "2021-03-31"),
			testDoc("c", "1", "2020-03-31"),
			testDoc("d", "2", "2021-03-31"),
		} {
			_, err := s.InsertIfAbsent(ctx, d)
			require.NoError(t, err)
		}

		docs, err := s.List(ctx, Filter{Registration: "1"})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "b", docs[0].ID)
		assert.Equal(t, "c", docs[1].ID)
		assert.Equal(t, "a", docs[2].ID)

		docs, err = s.List(ctx, Filter{Registration: "1", Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "c", docs[0].ID)

		docs, err = s.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, docs, 4)
	})

	t.Run("RunLog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		last, err := s.LastSuccess(ctx, "Accounts_Bulk_Data-2022-05-01.zip")
		require.NoError(t, err)
		assert.Nil(t, last)

		failed, err := s.StartRun(ctx, "Accounts_Bulk_Data-2022-05-01.zip")
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, failed, "download: 503"))

		last, err = s.LastSuccess(ctx, "Accounts_Bulk_Data-2022-05-01.zip")
		require.NoError(t, err)
		assert.Nil(t, last)

		ok, err := s.StartRun(ctx, "Accounts_Bulk_Data-2022-05-01.zip")
		require.NoError(t, err)
		assert.NotEqual(t, failed, ok)
		require.NoError(t, s.CompleteRun(ctx, ok, RunResult{Processed: 10, Inserted: 9, Failed: 1}))

		last, err = s.LastSuccess(ctx, "Accounts_Bulk_Data-2022-05-01.zip")
		require.NoError(t, err)
		require.NotNil(t, last)

		other, err := s.LastSuccess(ctx, "Accounts_Bulk_Data-2022-05-02.zip")
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLiteStore_CompleteUnknownRun(t *testing.T) {
	s := newTestSQLite(t)
	err := s.CompleteRun(context.Background(), 404, RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Driver: "postgres"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestNewDocument(t *testing.T) {
	inst, err := xbrl.ParseFile("../xbrl/testdata/Prod224_0001_12345678_20220331.html")
	require.NoError(t, err)

	rec := accounts.NewAssembler(accounts.DefaultTaxonomy()).
		Assemble("c204bda367b4582cafb06a124443af73", time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), inst.Facts)

	doc, err := NewDocument(rec)
	require.NoError(t, err)
	assert.Equal(t, "c204bda367b4582cafb06a124443af73", doc.ID)
	assert.Equal(t, "12345678", doc.RegistrationNumber)
	assert.Equal(t, "2022-03-31", doc.PeriodEnd)

	var data map[string]any
	require.NoError(t, json.Unmarshal(doc.Data, &data))
	assert.Equal(t, "EXAMPLE TRADING LIMITED", data[accounts.KeyEntityName])
}

func TestNewDocument_Truncated(t *testing.T) {
	rec := accounts.NewAssembler(accounts.DefaultTaxonomy()).Assemble("x", time.Time{}, nil)

	doc, err := NewDocument(rec)
	require.NoError(t, err)
	assert.Empty(t, doc.RegistrationNumber)
	assert.JSONEq(t, `{"_id":"x","registration_number":null}`, string(doc.Data))
}
