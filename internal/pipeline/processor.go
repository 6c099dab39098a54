// Package pipeline turns accounts documents into stored records. Each file
// is parsed, identified from its archive name, assembled and inserted only
// when its id is not already stored.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/digiaccounts/internal/accounts"
	"github.com/sells-group/digiaccounts/internal/filing"
	"github.com/sells-group/digiaccounts/internal/resilience"
	"github.com/sells-group/digiaccounts/internal/store"
	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Options tunes a Processor.
type Options struct {
	// Workers bounds concurrent file processing. Default: 4.
	Workers int
	// TempDir receives downloaded and extracted archives. Default: os.TempDir().
	TempDir string
	// Retry wraps store writes.
	Retry resilience.RetryConfig
	// BatchSize is the number of records ProcessFiles writes per store
	// call. Default: 200.
	BatchSize int
	// Settle is how long a watched file must be quiet before it is read.
	// Default: 500ms.
	Settle time.Duration
}

// Processor runs the extraction pipeline against a store. It is safe for
// concurrent use.
type Processor struct {
	asm   *accounts.Assembler
	store store.Store
	opts  Options
	log   *zap.Logger
}

// New creates a Processor.
func New(asm *accounts.Assembler, st store.Store, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &Processor{
		asm:   asm,
		store: st,
		opts:  opts,
		log:   zap.L().With(zap.String("component", "pipeline")),
	}
}

// Result is the outcome for one file.
type Result struct {
	Path      string `json:"path"`
	ID        string `json:"id"`
	Inserted  bool   `json:"inserted"`
	Truncated bool   `json:"truncated"`
}

// Stats summarises a batch.
type Stats struct {
	Processed int64 `json:"processed"`
	Inserted  int64 `json:"inserted"`
	Existing  int64 `json:"existing"`
	Truncated int64 `json:"truncated"`
	Failed    int64 `json:"failed"`
	// Skipped is set when an archive was not processed because the run log
	// already holds a completed run for it.
	Skipped bool `json:"skipped,omitempty"`
}

// RunResult converts s for the run log.
func (s Stats) RunResult() store.RunResult {
	return store.RunResult{Processed: s.Processed, Inserted: s.Inserted, Failed: s.Failed}
}

// Extract parses the file at path and assembles its record without storing
// it. The facts are returned for callers that need more than the record.
func (p *Processor) Extract(path string, filingDate time.Time) (*accounts.Record, []xbrl.Fact, error) {
	name, err := filing.ParseName(path)
	if err != nil {
		return nil, nil, err
	}
	inst, err := xbrl.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	return p.asm.Assemble(name.ID(), filingDate, inst.Facts), inst.Facts, nil
}

// document extracts the file at path and wraps its record for storage.
func (p *Processor) document(path string, filingDate time.Time) (*store.Document, *accounts.Record, error) {
	rec, _, err := p.Extract(path, filingDate)
	if err != nil {
		return nil, nil, err
	}
	doc, err := store.NewDocument(rec)
	if err != nil {
		return nil, nil, err
	}
	return doc, rec, nil
}

// ProcessFile extracts one file and inserts its record if absent. A zero
// filingDate is stored as unknown.
func (p *Processor) ProcessFile(ctx context.Context, path string, filingDate time.Time) (*Result, error) {
	doc, rec, err := p.document(path, filingDate)
	if err != nil {
		return nil, err
	}

	retry := p.opts.Retry
	retry.OnRetry = resilience.RetryLogger("store.insert", doc.ID)
	inserted, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (bool, error) {
		return p.store.InsertIfAbsent(ctx, doc)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: store %s", path)
	}

	return &Result{
		Path:      path,
		ID:        rec.ID,
		Inserted:  inserted,
		Truncated: rec.Truncated(),
	}, nil
}

// pending is an extracted document waiting for its batch to be written.
type pending struct {
	path      string
	doc       *store.Document
	truncated bool
}

// batchCounters accumulates the outcome of a ProcessFiles call.
type batchCounters struct {
	processed, inserted, existing, truncated, failed atomic.Int64
}

func (c *batchCounters) stats() Stats {
	return Stats{
		Processed: c.processed.Load(),
		Inserted:  c.inserted.Load(),
		Existing:  c.existing.Load(),
		Truncated: c.truncated.Load(),
		Failed:    c.failed.Load(),
	}
}

// ProcessFiles extracts paths with a bounded worker pool and writes the
// records in batches of Options.BatchSize. A failing file is logged and
// counted; it never stops the batch. A failed write counts every file in its
// batch as failed. The only error returned is the context's.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string, filingDate time.Time) (Stats, error) {
	var (
		counts batchCounters
		mu     sync.Mutex
		queue  []pending
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			counts.processed.Add(1)
			doc, rec, err := p.document(path, filingDate)
			if err != nil {
				counts.failed.Add(1)
				p.log.Error("file failed", zap.String("path", path), zap.Error(err))
				return nil
			}

			mu.Lock()
			queue = append(queue, pending{path: path, doc: doc, truncated: rec.Truncated()})
			var full []pending
			if len(queue) >= p.opts.BatchSize {
				full, queue = queue, nil
			}
			mu.Unlock()

			if full != nil {
				p.flush(gctx, full, &counts)
			}
			return gctx.Err()
		})
	}

	err := g.Wait()
	// Records already extracted are written even when the batch was
	// interrupted.
	if len(queue) > 0 {
		p.flush(context.WithoutCancel(ctx), queue, &counts)
	}

	stats := counts.stats()
	p.log.Info("batch complete",
		zap.Int("files", len(paths)),
		zap.Int64("processed", stats.Processed),
		zap.Int64("inserted", stats.Inserted),
		zap.Int64("existing", stats.Existing),
		zap.Int64("truncated", stats.Truncated),
		zap.Int64("failed", stats.Failed),
	)
	if err != nil {
		return stats, eris.Wrap(err, "pipeline: batch interrupted")
	}
	return stats, nil
}

// flush writes batch with InsertManyIfAbsent, retrying transient failures.
func (p *Processor) flush(ctx context.Context, batch []pending, counts *batchCounters) {
	docs := make([]*store.Document, len(batch))
	for i, b := range batch {
		docs[i] = b.doc
	}

	retry := p.opts.Retry
	retry.OnRetry = resilience.RetryLogger("store.insert_many", batch[0].path)
	n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
		return p.store.InsertManyIfAbsent(ctx, docs)
	})
	if err != nil {
		counts.failed.Add(int64(len(batch)))
		p.log.Error("batch write failed",
			zap.Int("documents", len(batch)),
			zap.String("first", batch[0].path),
			zap.Error(err),
		)
		return
	}

	counts.inserted.Add(n)
	counts.existing.Add(int64(len(batch)) - n)
	for _, b := range batch {
		if b.truncated {
			counts.truncated.Add(1)
		}
	}
	p.log.Debug("batch written", zap.Int("documents", len(batch)), zap.Int64("inserted", n))
}
