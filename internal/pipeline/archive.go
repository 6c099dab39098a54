package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/fetcher"
	"github.com/sells-group/digiaccounts/internal/filing"
	"github.com/sells-group/digiaccounts/internal/resilience"
)

// ProcessArchive extracts the accounts documents in a ZIP archive and
// processes them. The run is recorded in the store's run log under the
// archive's file name; an archive with a completed run is skipped unless
// force is set. Daily bulk archives supply the filing date of their
// documents.
func (p *Processor) ProcessArchive(ctx context.Context, zipPath string, force bool) (Stats, error) {
	source := filepath.Base(zipPath)
	if skip, err := p.alreadyIngested(ctx, source, force); err != nil || skip {
		return Stats{Skipped: skip}, err
	}
	return p.ingestArchive(ctx, source, zipPath)
}

// FetchArchive downloads the archive at url into the temp directory and
// processes it like ProcessArchive. The run log is checked before the
// download so completed archives are not fetched again.
func (p *Processor) FetchArchive(ctx context.Context, f fetcher.Fetcher, url string, force bool) (Stats, error) {
	source := fetcher.ArchiveName(url)
	if skip, err := p.alreadyIngested(ctx, source, force); err != nil || skip {
		return Stats{Skipped: skip}, err
	}

	dir, err := p.mkdirTemp("download-*")
	if err != nil {
		return Stats{}, eris.Wrap(err, "pipeline: create download dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	zipPath := filepath.Join(dir, source)
	if _, err := f.DownloadToFile(ctx, url, zipPath); err != nil {
		return Stats{}, eris.Wrapf(err, "pipeline: download %s", source)
	}
	return p.ingestArchive(ctx, source, zipPath)
}

func (p *Processor) alreadyIngested(ctx context.Context, source string, force bool) (bool, error) {
	if force {
		return false, nil
	}
	last, err := p.store.LastSuccess(ctx, source)
	if err != nil {
		return false, eris.Wrapf(err, "pipeline: check run log for %s", source)
	}
	if last != nil {
		p.log.Info("archive already ingested, skipping",
			zap.String("source", source),
			zap.Time("completed_run_started", *last),
		)
		return true, nil
	}
	return false, nil
}

func (p *Processor) ingestArchive(ctx context.Context, source, zipPath string) (Stats, error) {
	log := p.log.With(zap.String("source", source))

	runID, err := p.store.StartRun(ctx, source)
	if err != nil {
		return Stats{}, err
	}
	fail := func(err error) (Stats, error) {
		ferr := p.runLogWrite(context.WithoutCancel(ctx), source, func(ctx context.Context) error {
			return p.store.FailRun(ctx, runID, err.Error())
		})
		if ferr != nil {
			log.Warn("failed to record failed run", zap.Error(ferr))
		}
		return Stats{}, err
	}

	dir, err := p.mkdirTemp("archive-*")
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: create extract dir"))
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	paths, err := fetcher.ExtractZIP(zipPath, dir, filing.IsFilingFile)
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: extract %s", source))
	}
	filingDate, _ := filing.ArchiveDate(source)
	log.Info("archive extracted", zap.Int("files", len(paths)))

	stats, err := p.ProcessFiles(ctx, paths, filingDate)
	if err != nil {
		_, err = fail(err)
		return stats, err
	}
	err = p.runLogWrite(ctx, source, func(ctx context.Context) error {
		return p.store.CompleteRun(ctx, runID, stats.RunResult())
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// runLogWrite runs a run log update, retrying transient store errors.
func (p *Processor) runLogWrite(ctx context.Context, source string, fn func(ctx context.Context) error) error {
	retry := p.opts.Retry
	retry.OnRetry = resilience.RetryLogger("store.run_log", source)
	return resilience.Do(ctx, retry, fn)
}

// mkdirTemp creates a scratch directory under the configured temp dir,
// creating that first if needed.
func (p *Processor) mkdirTemp(pattern string) (string, error) {
	if p.opts.TempDir != "" {
		if err := os.MkdirAll(p.opts.TempDir, 0o755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(p.opts.TempDir, pattern)
}
