// Package orchestrator drives the recurring crawl: it walks the
// enabled sources in order, runs each adapter, and hands the results
// to reconciliation. One bad source never stops the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/reconcile"
)

// ErrNoAdapter is returned when a source has no registered adapter.
var ErrNoAdapter = errors.New("no adapter for source")

// SourceProvider supplies the crawl order and records crawl times.
type SourceProvider interface {
	EnabledSources(ctx context.Context) ([]string, error)
	TouchCrawled(ctx context.Context, code string, at time.Time) error
}

type Options struct {
	Schedule    string
	SourceDelay time.Duration
	Crawl       adapter.Config
}

// Result is the outcome of crawling and reconciling one source. On a
// failed crawl Success is false, Error carries the adapter's message
// and Counts stays zero: nothing was reconciled.
type Result struct {
	Source  string           `json:"source"`
	Success bool             `json:"success"`
	Crawled int              `json:"crawled"`
	Error   string           `json:"error,omitempty"`
	Counts  reconcile.Counts `json:"counts"`
}

type Orchestrator struct {
	registry *adapter.Registry
	engine   *reconcile.Engine
	sources  SourceProvider
	opts     Options
	logger   *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
}

func New(registry *adapter.Registry, engine *reconcile.Engine, sources SourceProvider, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SourceDelay <= 0 {
		opts.SourceDelay = 5 * time.Second
	}
	return &Orchestrator{
		registry: registry,
		engine:   engine,
		sources:  sources,
		opts:     opts,
		logger:   logger,
	}
}

// Start schedules the recurring run. The first crawl happens on the
// schedule, not at startup; use RunAll for an immediate pass.
func (o *Orchestrator) Start() error {
	o.cron = cron.New()
	id, err := o.cron.AddFunc(o.opts.Schedule, func() {
		o.RunAll(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", o.opts.Schedule, err)
	}
	o.entryID = id
	o.cron.Start()
	o.logger.Info("crawl schedule started", zap.String("schedule", o.opts.Schedule))
	return nil
}

// Stop halts the schedule and waits for an in-flight run to return.
func (o *Orchestrator) Stop() {
	if o.cron == nil {
		return
	}
	ctx := o.cron.Stop()
	<-ctx.Done()
}

// RunAll crawls every enabled source sequentially. A source that
// fails, or whose adapter panics, is logged and skipped; the run
// continues with the next one. Overlapping runs collapse: if a run is
// already in flight the new one is dropped.
func (o *Orchestrator) RunAll(ctx context.Context) []Result {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		o.logger.Warn("crawl run already in flight, skipping")
		return nil
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	codes, err := o.sources.EnabledSources(ctx)
	if err != nil {
		o.logger.Error("list enabled sources", zap.Error(err))
		return nil
	}

	var results []Result
	for i, code := range codes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(o.opts.SourceDelay):
			}
		}
		res, err := o.RunSource(ctx, code)
		if err != nil {
			o.logger.Error("source crawl failed",
				zap.String("source", code), zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results
}

// RunSource crawls one source and reconciles the result. A failed
// crawl reconciles nothing and does not advance the source's
// last-crawl timestamp: partial pages must never expire or rewrite
// postings the crawl simply did not reach.
func (o *Orchestrator) RunSource(ctx context.Context, code string) (Result, error) {
	res := Result{Source: code}

	a, ok := o.registry.Get(code)
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrNoAdapter, code)
	}

	o.logger.Info("crawling source", zap.String("source", code))
	started := time.Now()

	crawl := o.safeCrawl(ctx, a)
	res.Crawled = len(crawl.Jobs)
	if !crawl.Success {
		res.Error = crawl.Err
		o.logger.Warn("crawl reported failure",
			zap.String("source", code),
			zap.String("error", crawl.Err),
			zap.Int("partial_jobs", len(crawl.Jobs)))
		return res, nil
	}

	counts, err := o.engine.Sync(ctx, code, crawl.Jobs, time.Now())
	if err != nil {
		return res, fmt.Errorf("reconcile %s: %w", code, err)
	}
	res.Success = true
	res.Counts = counts

	if err := o.sources.TouchCrawled(ctx, code, time.Now()); err != nil {
		o.logger.Warn("record crawl time", zap.String("source", code), zap.Error(err))
	}

	o.logger.Info("source done",
		zap.String("source", code),
		zap.Int("crawled", res.Crawled),
		zap.Int("created", counts.Created),
		zap.Int("updated", counts.Updated),
		zap.Int("unchanged", counts.Unchanged),
		zap.Int("expired", counts.Expired),
		zap.Duration("took", time.Since(started)))
	return res, nil
}

// safeCrawl contains an adapter panic to the source it came from.
func (o *Orchestrator) safeCrawl(ctx context.Context, a adapter.Adapter) (result adapter.CrawlResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("adapter panicked",
				zap.String("source", a.Code()), zap.Any("panic", r))
			result = adapter.Failed(nil, fmt.Errorf("adapter panic: %v", r))
		}
	}()
	return a.Crawl(ctx, o.opts.Crawl)
}
