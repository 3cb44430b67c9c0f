package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/course-search/backend/internal/catalog"
	"github.com/course-search/backend/internal/config"
	"github.com/course-search/backend/internal/crawler"
	"github.com/course-search/backend/internal/fetcher"
	"github.com/course-search/backend/internal/index"
	"github.com/course-search/backend/internal/metrics"
	"github.com/course-search/backend/internal/politeness"
	"github.com/course-search/backend/internal/query"
	"github.com/course-search/backend/internal/storage"
)

var (
	// ErrCrawlRunning is returned when a crawl is requested while one is in progress.
	ErrCrawlRunning = errors.New("crawl already running")
	// ErrNoStore is returned by Search when the engine has no course store.
	ErrNoStore = errors.New("course store not configured")
)

// Engine orchestrates crawling, index persistence and course queries
type Engine struct {
	Config     *config.Config
	Logger     *logrus.Entry
	Controller *crawler.Controller
	Politeness *politeness.PolitenessManager
	Store      *storage.Store
	Executor   *query.Executor
	Metrics    *metrics.Metrics

	// State
	isRunning   bool
	mu          sync.RWMutex
	cancelCrawl context.CancelFunc
	done        chan struct{}

	// Stats
	Stats EngineStats
}

type EngineStats struct {
	Crawls    int64
	LastCrawl crawler.Stats
	LastError string
	StartTime time.Time
}

// NewEngine wires the crawl and query components. store may be nil, in which
// case crawls only write the index file and Search is unavailable.
func NewEngine(cfg *config.Config, logger *logrus.Entry, store *storage.Store, courses catalog.CourseMap, m *metrics.Metrics) (*Engine, error) {
	if m == nil {
		m = metrics.Discard()
	}

	pm := politeness.NewPolitenessManager(cfg.Politeness, logger)
	ft := fetcher.NewFetcher(cfg.Fetcher.RequestTimeout, cfg.Fetcher.UserAgent)
	extractor := catalog.NewExtractor(courses, logger)
	controller := crawler.NewController(
		crawler.Options{Domain: cfg.Crawl.Domain, Workers: cfg.Crawl.Workers},
		ft, pm, extractor, logger, m,
	)

	eng := &Engine{
		Config:     cfg,
		Logger:     logger.WithField("component", "engine"),
		Controller: controller,
		Politeness: pm,
		Store:      store,
		Metrics:    m,
	}

	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		schema, err := store.Schema(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect course store: %w", err)
		}
		eng.Executor = query.NewExecutor(store.DB, schema, logger, m)
	}

	return eng, nil
}

// Crawl runs one crawl from the configured start location and persists the
// resulting index. A cancelled crawl persists nothing.
func (e *Engine) Crawl(ctx context.Context, budget int) (*index.Index, crawler.Stats, error) {
	idx, stats, err := e.Controller.Crawl(ctx, e.Config.Crawl.StartURL, budget)
	if err != nil {
		return idx, stats, err
	}

	if path := e.Config.Crawl.IndexFile; path != "" {
		if err := idx.WriteFile(path); err != nil {
			return idx, stats, err
		}
		e.Logger.WithFields(logrus.Fields{"path": path, "rows": idx.Pairs()}).Info("Wrote index file")
	}

	if e.Store != nil {
		n, err := e.Store.LoadIndex(ctx, idx)
		if err != nil {
			return idx, stats, err
		}
		e.Logger.WithField("rows", n).Info("Loaded index into course store")
	}

	return idx, stats, nil
}

// StartCrawl starts a crawl of at most budget pages in the background
func (e *Engine) StartCrawl(budget int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		return ErrCrawlRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancelCrawl = cancel
	e.isRunning = true
	e.done = make(chan struct{})
	e.Stats.StartTime = time.Now()

	go e.runCrawl(ctx, budget, e.done)
	return nil
}

func (e *Engine) runCrawl(ctx context.Context, budget int, done chan struct{}) {
	defer close(done)

	_, stats, err := e.Crawl(ctx, budget)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.isRunning = false
	if e.cancelCrawl != nil {
		e.cancelCrawl()
		e.cancelCrawl = nil
	}
	e.Stats.Crawls++
	e.Stats.LastCrawl = stats
	e.Stats.LastError = ""
	if err != nil {
		e.Stats.LastError = err.Error()
		e.Logger.WithError(err).Error("Background crawl failed")
	}
}

func (e *Engine) StopCrawl() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning && e.cancelCrawl != nil {
		e.cancelCrawl()
	}
}

// Wait blocks until the current background crawl, if any, has finished.
func (e *Engine) Wait() {
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()

	if done != nil {
		<-done
	}
}

func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}

// GetStats returns a snapshot of the engine statistics
func (e *Engine) GetStats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Stats
}

// Search runs a course filter request against the store
func (e *Engine) Search(ctx context.Context, req *query.Request) (*query.Result, error) {
	if e.Executor == nil {
		return nil, ErrNoStore
	}
	return e.Executor.Run(ctx, req)
}

// LoadIndexFile loads a previously written index file into the store. A
// missing file is not an error and loads nothing.
func (e *Engine) LoadIndexFile(ctx context.Context, path string) (int, error) {
	if e.Store == nil {
		return 0, ErrNoStore
	}
	idx, err := index.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		e.Logger.WithField("path", path).Info("No index file to load")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	e.Metrics.IndexWords.Set(float64(idx.Len()))
	return e.Store.LoadIndex(ctx, idx)
}
