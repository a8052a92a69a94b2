package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pmpm/internal/amqp"
	"pmpm/internal/dataset"
	applog "pmpm/internal/log"
)

// Publisher announces stored snapshots.
type Publisher interface {
	PublishRefresh(ctx context.Context, msg *amqp.RefreshMessage) error
}

// modTimer is implemented by sources that can tell when an extract changed.
type modTimer interface {
	ModTime(name string) (time.Time, error)
}

// LoadResult describes one stored snapshot.
type LoadResult struct {
	Dataset string
	Version int64
	Rows    int
}

// Report is the outcome of one load cycle.
type Report struct {
	Loaded  []LoadResult
	Skipped []string
}

// Loader copies every extract of a source into a store and announces each
// new snapshot. Extracts whose modification time has not moved since the
// last cycle are skipped.
type Loader struct {
	source      dataset.Reader
	store       dataset.Writer
	publisher   Publisher
	concurrency int
	logger      *applog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewLoader creates a loader. publisher may be nil.
func NewLoader(source dataset.Reader, store dataset.Writer, publisher Publisher, concurrency int, logger *applog.Logger) *Loader {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Loader{
		source:      source,
		store:       store,
		publisher:   publisher,
		concurrency: concurrency,
		logger:      logger.WithComponent(applog.ComponentLoader),
		seen:        make(map[string]time.Time),
	}
}

// LoadOnce runs one load cycle. The first failing extract cancels the cycle.
func (l *Loader) LoadOnce(ctx context.Context) (Report, error) {
	names, err := l.source.Datasets(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list extracts: %w", err)
	}

	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, name := range names {
		g.Go(func() error {
			res, loaded, err := l.load(gctx, name)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if loaded {
				report.Loaded = append(report.Loaded, res)
			} else {
				report.Skipped = append(report.Skipped, name)
			}
			return nil
		})
	}

	err = g.Wait()
	sort.Slice(report.Loaded, func(i, j int) bool { return report.Loaded[i].Dataset < report.Loaded[j].Dataset })
	sort.Strings(report.Skipped)
	return report, err
}

func (l *Loader) load(ctx context.Context, name string) (LoadResult, bool, error) {
	var modTime time.Time
	if mt, ok := l.source.(modTimer); ok {
		t, err := mt.ModTime(name)
		if err != nil {
			return LoadResult{}, false, err
		}
		l.mu.Lock()
		last, seen := l.seen[name]
		l.mu.Unlock()
		if seen && !t.After(last) {
			return LoadResult{}, false, nil
		}
		modTime = t
	}

	ds, err := l.source.Snapshot(ctx, name)
	if err != nil {
		return LoadResult{}, false, err
	}
	version, err := l.store.ReplaceDataset(ctx, ds)
	if err != nil {
		return LoadResult{}, false, fmt.Errorf("store snapshot: %w", err)
	}

	if !modTime.IsZero() {
		l.mu.Lock()
		l.seen[name] = modTime
		l.mu.Unlock()
	}

	res := LoadResult{Dataset: name, Version: version, Rows: len(ds.Rows)}
	l.logger.InfoContext(ctx, "Extract loaded",
		applog.FieldDataset, name,
		applog.FieldVersion, version,
		applog.FieldRows, res.Rows)

	if l.publisher != nil {
		if err := l.publisher.PublishRefresh(ctx, amqp.NewRefreshMessage(name, version, res.Rows)); err != nil {
			l.logger.WarnContext(ctx, "Failed to publish refresh, dashboards will pick it up on cache expiry",
				applog.FieldDataset, name,
				applog.FieldError, err)
		}
	}

	return res, true, nil
}

// Run loads immediately and then on every tick until ctx is done. Failed
// cycles are logged and retried on the next tick.
func (l *Loader) Run(ctx context.Context, interval time.Duration) error {
	l.cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Loader stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			l.cycle(ctx)
		}
	}
}

func (l *Loader) cycle(ctx context.Context) {
	start := time.Now()
	report, err := l.LoadOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		l.logger.ErrorContext(ctx, "Load cycle failed", applog.FieldError, err)
		return
	}
	l.logger.InfoContext(ctx, "Load cycle completed",
		"loaded", len(report.Loaded),
		"skipped", len(report.Skipped),
		applog.FieldDuration, time.Since(start).Milliseconds())
}
