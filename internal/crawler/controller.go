// Package crawler drives a budgeted breadth-first crawl of a course catalog
// and builds the inverted index from the pages it visits.
package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/course-search/backend/internal/catalog"
	"github.com/course-search/backend/internal/fetcher"
	"github.com/course-search/backend/internal/frontier"
	"github.com/course-search/backend/internal/index"
	"github.com/course-search/backend/internal/metrics"
)

// PageFetcher retrieves one catalog page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// Gate decides whether and when a location may be fetched.
type Gate interface {
	Allowed(ctx context.Context, url string) bool
	Wait(ctx context.Context, url string) error
}

// Options configures a Controller.
type Options struct {
	Domain  string
	Workers int
}

// Stats summarises one crawl.
type Stats struct {
	PagesVisited  int           `json:"pages_visited"`
	FetchFailures int           `json:"fetch_failures"`
	RobotsDenied  int           `json:"robots_denied"`
	Contributions int           `json:"contributions"`
	Words         int           `json:"words"`
	Pairs         int           `json:"pairs"`
	Duration      time.Duration `json:"duration"`
}

// Controller owns the frontier and the index of a crawl. Fetches may run
// concurrently; extraction, merging and frontier updates happen on the
// calling goroutine in queue order.
type Controller struct {
	opts      Options
	fetcher   PageFetcher
	gate      Gate
	extractor *catalog.Extractor
	logger    *logrus.Entry
	metrics   *metrics.Metrics
}

// NewController creates a crawl controller. A nil gate allows every location
// without delay.
func NewController(opts Options, f PageFetcher, gate Gate, extractor *catalog.Extractor, logger *logrus.Entry, m *metrics.Metrics) *Controller {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if gate == nil {
		gate = openGate{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Controller{
		opts:      opts,
		fetcher:   f,
		gate:      gate,
		extractor: extractor,
		logger:    logger.WithField("component", "crawl_controller"),
		metrics:   m,
	}
}

type fetchResult struct {
	page   *fetcher.Page
	denied bool
	err    error
}

// Crawl visits at most budget pages reachable from seed and returns the
// index built from them. Pages that cannot be fetched or are denied by
// robots.txt are skipped without counting against the budget. On
// cancellation the partial index is returned with the context error.
func (c *Controller) Crawl(ctx context.Context, seed string, budget int) (*index.Index, Stats, error) {
	start := time.Now()
	idx := index.New()
	var stats Stats

	fr := frontier.New(frontier.Scope{Domain: c.opts.Domain}, c.logger)
	fr.Seed(seed)

	log := c.logger.WithFields(logrus.Fields{
		"seed":    seed,
		"budget":  budget,
		"workers": c.opts.Workers,
	})
	log.Info("Starting crawl")

	finish := func(err error) (*index.Index, Stats, error) {
		stats.Words = idx.Len()
		stats.Pairs = idx.Pairs()
		stats.Duration = time.Since(start)
		c.metrics.IndexWords.Set(float64(stats.Words))

		entry := log.WithFields(logrus.Fields{
			"pages_visited":  stats.PagesVisited,
			"fetch_failures": stats.FetchFailures,
			"robots_denied":  stats.RobotsDenied,
			"words":          stats.Words,
			"duration":       stats.Duration,
		})
		if err != nil {
			entry.WithError(err).Warn("Crawl aborted")
		} else {
			entry.Info("Crawl finished")
		}
		return idx, stats, err
	}

	for stats.PagesVisited < budget {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		batch := fr.PopBatch(min(c.opts.Workers, budget-stats.PagesVisited))
		if len(batch) == 0 {
			break
		}

		results := c.fetchBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			for _, loc := range batch {
				fr.Done(loc)
			}
			return finish(err)
		}

		for i, loc := range batch {
			fr.Done(loc)
			// an earlier page of this batch redirected here
			if fr.Visited(loc) {
				continue
			}
			c.merge(fr, idx, loc, results[i], &stats)
		}
	}

	return finish(nil)
}

// fetchBatch fetches every location of batch, at most Workers at a time.
// The result slice is indexed like batch.
func (c *Controller) fetchBatch(ctx context.Context, batch []string) []fetchResult {
	results := make([]fetchResult, len(batch))

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i, loc := range batch {
		i, loc := i, loc
		g.Go(func() error {
			results[i] = c.fetchOne(ctx, loc)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Controller) fetchOne(ctx context.Context, loc string) fetchResult {
	if !c.gate.Allowed(ctx, loc) {
		return fetchResult{denied: true}
	}
	if err := c.gate.Wait(ctx, loc); err != nil {
		return fetchResult{err: err}
	}
	page, err := c.fetcher.Fetch(ctx, loc)
	if err != nil {
		return fetchResult{err: err}
	}
	return fetchResult{page: page}
}

// merge applies one fetched page: extract and merge its contributions,
// offer its links, mark it visited. A page that redirected to an already
// visited location is only marked visited.
func (c *Controller) merge(fr *frontier.Frontier, idx *index.Index, loc string, res fetchResult, stats *Stats) {
	switch {
	case res.denied:
		stats.RobotsDenied++
		c.metrics.RobotsDenied.Inc()
		return
	case res.err != nil:
		stats.FetchFailures++
		c.metrics.FetchFailures.Inc()
		entry := c.logger.WithError(res.err).WithField("url", loc)
		if errors.Is(res.err, fetcher.ErrFetch) {
			entry.Warn("Skipping page")
		} else {
			entry.Error("Unexpected fetch error, skipping page")
		}
		return
	}

	page := res.page
	base := page.URL
	if base == "" {
		base = loc
	}
	if base != loc && fr.Visited(base) {
		fr.MarkVisited(loc)
		c.logger.WithFields(logrus.Fields{
			"url":      loc,
			"redirect": base,
		}).Debug("Redirect target already visited")
		return
	}

	contributions := c.extractor.Extract(page.Doc)
	for _, contrib := range contributions {
		idx.MergeAll(contrib.Words, contrib.CourseID)
	}
	stats.Contributions += len(contributions)
	c.metrics.Contributions.Add(float64(len(contributions)))

	added := 0
	for _, href := range page.Links {
		if fr.Offer(base, href) {
			added++
		}
	}

	fr.MarkVisited(loc)
	if base != loc {
		fr.MarkVisited(base)
	}
	stats.PagesVisited++
	c.metrics.PagesVisited.Inc()

	c.logger.WithFields(logrus.Fields{
		"url":           loc,
		"contributions": len(contributions),
		"links_added":   added,
		"queued":        fr.Len(),
	}).Debug("Visited page")
}

type openGate struct{}

func (openGate) Allowed(context.Context, string) bool { return true }
func (openGate) Wait(context.Context, string) error { return nil }
