// Package store persists assembled accounts records and the ingest run log.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/digiaccounts/internal/accounts"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = eris.New("store: not found")

// Document is one stored accounts record. Data holds the record JSON with
// its keys in record order; FirstLogged is set by the store on insert.
type Document struct {
	ID                 string          `json:"_id"`
	RegistrationNumber string          `json:"registration_number,omitempty"`
	PeriodEnd          string          `json:"period_end,omitempty"`
	Data               json.RawMessage `json:"data"`
	FirstLogged        time.Time       `json:"first_logged"`
}

// NewDocument wraps an assembled record for storage.
func NewDocument(rec *accounts.Record) (*Document, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal record %s", rec.ID)
	}
	doc := &Document{ID: rec.ID, Data: data}
	if reg, ok := rec.RegistrationNumber.Get(); ok {
		doc.RegistrationNumber = reg
	}
	if end, ok := rec.PeriodEnd.Get(); ok {
		doc.PeriodEnd = end.Format(accounts.DateLayout)
	}
	return doc, nil
}

// Filter specifies criteria for listing documents.
type Filter struct {
	Registration string `json:"registration,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// DefaultListLimit caps List when Filter.Limit is not set.
const DefaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// RunStatus is the state of an ingest run.
type RunStatus string

// Run states.
const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// RunResult holds the outcome of an ingest run, passed to CompleteRun.
type RunResult struct {
	Processed int64 `json:"processed"`
	Inserted  int64 `json:"inserted"`
	Failed    int64 `json:"failed"`
}

// Store defines the persistence interface for accounts documents.
type Store interface {
	// Documents. Existing documents are never overwritten.
	InsertIfAbsent(ctx context.Context, doc *Document) (bool, error)
	InsertManyIfAbsent(ctx context.Context, docs []*Document) (int64, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, filter Filter) ([]Document, error)

	// Run log, keyed by source (archive name or URL).
	StartRun(ctx context.Context, source string) (int64, error)
	CompleteRun(ctx context.Context, runID int64, result RunResult) error
	FailRun(ctx context.Context, runID int64, errMsg string) error
	LastSuccess(ctx context.Context, source string) (*time.Time, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Options selects and configures a store backend.
type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	Pool        *PoolConfig
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "sqlite", "":
		path := opts.SQLitePath
		if path == "" {
			path = "digiaccounts.db"
		}
		return NewSQLite(path)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires a database url")
		}
		return NewPostgres(ctx, opts.DatabaseURL, opts.Pool)
	default:
		return nil, eris.Errorf("store: unsupported driver: %s", opts.Driver)
	}
}
