package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id                  TEXT PRIMARY KEY,
	registration_number TEXT,
	period_end          TEXT,
	data                TEXT NOT NULL,
	first_logged        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_registration ON documents(registration_number);
CREATE INDEX IF NOT EXISTS idx_documents_period_end ON documents(period_end);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	processed    INTEGER NOT NULL DEFAULT 0,
	inserted     INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_source_status ON ingest_runs(source, status, started_at);
`

const sqliteInsertDocument = `INSERT OR IGNORE INTO documents (id, registration_number, period_end, data, first_logged) VALUES (?, ?, ?, ?, ?)`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, doc *Document) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, sqliteInsertDocument,
		doc.ID, nullString(doc.RegistrationNumber), nullString(doc.PeriodEnd), string(doc.Data), now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert document %s", doc.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil
	}
	doc.FirstLogged = now
	return true, nil
}

func (s *SQLiteStore) InsertManyIfAbsent(ctx context.Context, docs []*Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertDocument)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var inserted int64
	for _, d := range docs {
		res, err := stmt.ExecContext(ctx, d.ID, nullString(d.RegistrationNumber), nullString(d.PeriodEnd), string(d.Data), now)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert document %s", d.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return inserted, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, registration_number, period_end, data, first_logged FROM documents WHERE id = ?`, id,
	)
	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return doc, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Document, error) {
	query := `SELECT id, registration_number, period_end, data, first_logged FROM documents WHERE 1=1`
	args := []any{}

	if filter.Registration != "" {
		query += ` AND registration_number = ?`
		args = append(args, filter.Registration)
	}
	query += ` ORDER BY period_end DESC, id LIMIT ? OFFSET ?`
	args = append(args, filter.limit(), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close() //nolint:errcheck

	var docs []Document
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) StartRun(ctx context.Context, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (source, status, started_at) VALUES (?, ?, ?)`,
		source, string(RunRunning), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: start run for %s", source)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: run id")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID int64, result RunResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, completed_at = ?, processed = ?, inserted = ?, failed = ? WHERE id = ?`,
		string(RunComplete), time.Now().UTC(), result.Processed, result.Inserted, result.Failed, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %d", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(RunFailed), time.Now().UTC(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %d", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) LastSuccess(ctx context.Context, source string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM ingest_runs WHERE source = ? AND status = ? ORDER BY started_at DESC, id DESC LIMIT 1`,
		source, string(RunComplete),
	).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: last success for %s", source)
	}
	return &t, nil
}

func checkRowsAffected(res sql.Result, runID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %d", runID)
	}
	return nil
}

func scanSQLiteDocument(row scannable) (*Document, error) {
	var (
		d        Document
		reg, end sql.NullString
		data     string
	)
	if err := row.Scan(&d.ID, &reg, &end, &data, &d.FirstLogged); err != nil {
		return nil, err
	}
	d.RegistrationNumber = reg.String
	d.PeriodEnd = end.String
	d.Data = []byte(data)
	return &d, nil
}
