// Package feed tails the bookmark changelog and hands each change to a callback.
package feed

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
)

const batchSize = 500

// Changelog is the slice of the store the tailer reads from.
type Changelog interface {
	LatestChangeSeq(ctx context.Context) (int64, error)
	ChangesSince(ctx context.Context, after int64, limit int) ([]models.Change, error)
	PruneChanges(ctx context.Context, retention time.Duration) (int64, error)
	Path() string
}

// Callback is called once per change, in sequence order.
type Callback func(models.Change)

// Options tunes the tailer.
type Options struct {
	PollInterval time.Duration
	Debounce     time.Duration
	Retention    time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.Debounce < 0 {
		o.Debounce = 0
	}
	if o.Retention <= 0 {
		o.Retention = 24 * time.Hour
	}
	return o
}

// Watch tails the changelog from its current head until ctx is cancelled.
//
// Writes to the database file or its WAL wake the tailer after a short
// debounce. A poll ticker covers filesystems where fsnotify is unavailable.
// Entries older than the retention window are pruned periodically.
func Watch(ctx context.Context, src Changelog, opts Options, log logger.Logger, cb Callback) error {
	opts = opts.withDefaults()

	last, err := src.LatestChangeSeq(ctx)
	if err != nil {
		return err
	}

	events, errs, closeWatcher := watchFiles(src.Path(), log)
	defer closeWatcher()

	log.Info("feed: started", logger.Int64("seq", last), logger.String("db", src.Path()))

	poll := time.NewTicker(opts.PollInterval)
	defer poll.Stop()

	pruneEvery := time.Hour
	if opts.Retention < pruneEvery {
		pruneEvery = opts.Retention
	}
	prune := time.NewTicker(pruneEvery)
	defer prune.Stop()

	// debounceTimer coalesces bursts of file events into one read.
	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	schedule := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(opts.Debounce)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(opts.Debounce)
		}
	}

	drain := func() {
		next, err := drainChanges(ctx, src, last, cb)
		if err != nil && ctx.Err() == nil {
			log.Warn("feed: read changes failed", logger.Error(err))
		}
		last = next
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			log.Info("feed: stopped")
			return nil

		case <-poll.C:
			drain()

		case <-debounceCh:
			drain()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isDBFile(src.Path(), ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			schedule()

		case watchErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Error("feed: watcher error", logger.Error(watchErr))

		case <-prune.C:
			n, err := src.PruneChanges(ctx, opts.Retention)
			if err != nil {
				log.Warn("feed: prune failed", logger.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("feed: pruned", logger.Int64("rows", n))
			}
		}
	}
}

// drainChanges delivers every change after seq and returns the new head.
func drainChanges(ctx context.Context, src Changelog, seq int64, cb Callback) (int64, error) {
	for {
		batch, err := src.ChangesSince(ctx, seq, batchSize)
		if err != nil {
			return seq, err
		}
		for _, c := range batch {
			seq = c.Seq
			if cb != nil {
				cb(c)
			}
		}
		if len(batch) < batchSize {
			return seq, nil
		}
	}
}

// watchFiles watches the directory holding dbPath. On failure the tailer
// runs on the poll ticker alone and the returned channels are nil.
func watchFiles(dbPath string, log logger.Logger) (<-chan fsnotify.Event, <-chan error, func()) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("feed: fsnotify unavailable, polling only", logger.Error(err))
		return nil, nil, func() {}
	}
	dir := filepath.Dir(dbPath)
	if err := w.Add(dir); err != nil {
		log.Warn("feed: watch dir failed, polling only", logger.String("dir", dir), logger.Error(err))
		w.Close()
		return nil, nil, func() {}
	}
	return w.Events, w.Errors, func() { w.Close() }
}

// isDBFile reports whether name is the database file or its WAL.
func isDBFile(dbPath, name string) bool {
	clean := filepath.Clean(name)
	db := filepath.Clean(dbPath)
	return clean == db || clean == db+"-wal"
}
