package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID keys the advisory lock held while migrations run.
const migrationLockID = 20210401

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlInsertDocument = `INSERT INTO documents (id, registration_number, period_end, data, first_logged) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`
	sqlGetDocument    = `SELECT id, registration_number, period_end, data, first_logged FROM documents WHERE id = $1`
	sqlStartRun       = `INSERT INTO ingest_runs (source, status, started_at) VALUES ($1, 'running', now()) RETURNING id`
	sqlCompleteRun    = `UPDATE ingest_runs SET status = 'complete', completed_at = now(), processed = $1, inserted = $2, failed = $3 WHERE id = $4`
	sqlFailRun        = `UPDATE ingest_runs SET status = 'failed', completed_at = now(), error = $1 WHERE id = $2`
	sqlLastSuccess    = `SELECT started_at FROM ingest_runs WHERE source = $1 AND status = 'complete' ORDER BY started_at DESC LIMIT 1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_document": sqlInsertDocument,
	"get_document":    sqlGetDocument,
	"start_run":       sqlStartRun,
	"complete_run":    sqlCompleteRun,
	"fail_run":        sqlFailRun,
	"last_success":    sqlLastSuccess,
}

var documentColumns = []string{"id", "registration_number", "period_end", "data", "first_logged"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Tables may not exist yet on a fresh database, so preparation failures
	// are logged rather than refusing the connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				zap.L().Debug("postgres: prepare skipped", zap.String("statement", name), zap.Error(err))
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// newPostgresFromPool wraps an existing pool. The caller keeps ownership of
// the pool's lifetime.
func newPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate applies the embedded migrations not yet recorded in
// schema_migrations, in filename order. All of it runs in one transaction
// holding a transaction-scoped advisory lock, so the lock lives on the same
// connection as the migrations and is released on commit or rollback.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin migration tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())", name,
		); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
		names = append(names, name)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit migrations")
	}
	for _, name := range names {
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

func appliedMigrations(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: iterate migrations")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, doc *Document) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, sqlInsertDocument,
		doc.ID, nullString(doc.RegistrationNumber), nullString(doc.PeriodEnd), []byte(doc.Data), now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert document %s", doc.ID)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	doc.FirstLogged = now
	return true, nil
}

// InsertManyIfAbsent loads docs with COPY and keeps any existing rows.
// Duplicate ids within docs keep the first occurrence.
func (s *PostgresStore) InsertManyIfAbsent(ctx context.Context, docs []*Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []any{d.ID, nullString(d.RegistrationNumber), nullString(d.PeriodEnd), []byte(d.Data), now})
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "documents",
		Columns:      documentColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert documents")
	}
	return n, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Document, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx, sqlGetDocument, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return doc, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Document, error) {
	query := `SELECT id, registration_number, period_end, data, first_logged FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Registration != "" {
		query += fmt.Sprintf(` AND registration_number = $%d`, argIdx)
		args = append(args, filter.Registration)
		argIdx++
	}
	query += ` ORDER BY period_end DESC, id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) StartRun(ctx context.Context, source string) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, sqlStartRun, source).Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "postgres: start run for %s", source)
	}
	return id, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID int64, result RunResult) error {
	if _, err := s.pool.Exec(ctx, sqlCompleteRun, result.Processed, result.Inserted, result.Failed, runID); err != nil {
		return eris.Wrapf(err, "postgres: complete run %d", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID int64, errMsg string) error {
	if _, err := s.pool.Exec(ctx, sqlFailRun, errMsg, runID); err != nil {
		return eris.Wrapf(err, "postgres: fail run %d", runID)
	}
	return nil
}

// LastSuccess returns the start time of the most recent completed run for
// source, or nil when there is none.
func (s *PostgresStore) LastSuccess(ctx context.Context, source string) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, sqlLastSuccess, source).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: last success for %s", source)
	}
	return &t, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*Document, error) {
	var (
		d        Document
		reg, end *string
		data     []byte
	)
	if err := row.Scan(&d.ID, &reg, &end, &data, &d.FirstLogged); err != nil {
		return nil, err
	}
	if reg != nil {
		d.RegistrationNumber = *reg
	}
	if end != nil {
		d.PeriodEnd = *end
	}
	d.Data = data
	return &d, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
