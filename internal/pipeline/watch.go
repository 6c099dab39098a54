package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/filing"
)

// Watch processes accounts documents and ZIP archives created in dir until
// ctx is done. A file is read once no event has touched it for the settle
// delay, so files still being copied are not parsed half-written. Hidden
// files are ignored.
func (p *Processor) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "pipeline: create watcher")
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(dir); err != nil {
		return eris.Wrapf(err, "pipeline: watch %s", dir)
	}
	log := p.log.With(zap.String("dir", dir))
	log.Info("watching for filings")

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(p.opts.Settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped", zap.Int("pending", len(pending)))
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if watchable(ev.Name) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range settled(pending, now, p.opts.Settle) {
				delete(pending, path)
				p.handleWatched(ctx, path)
			}
		}
	}
}

func (p *Processor) handleWatched(ctx context.Context, path string) {
	log := p.log.With(zap.String("path", path))
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		stats, err := p.ProcessArchive(ctx, path, false)
		if err != nil {
			log.Error("archive failed", zap.Error(err))
			return
		}
		log.Info("archive processed", zap.Int64("inserted", stats.Inserted), zap.Bool("skipped", stats.Skipped))
		return
	}
	res, err := p.ProcessFile(ctx, path, time.Time{})
	if err != nil {
		log.Error("file failed", zap.Error(err))
		return
	}
	log.Info("file processed", zap.String("id", res.ID), zap.Bool("inserted", res.Inserted))
}

// settled returns the pending paths quiet for at least settle, in name order.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func watchable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return filing.IsFilingFile(base) || strings.EqualFold(filepath.Ext(base), ".zip")
}
