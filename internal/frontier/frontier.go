package frontier

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FrontierStats holds statistics about the frontier
type FrontierStats struct {
	TotalAdded    int64
	TotalRejected int64
	TotalVisited  int64
	CurrentQueued int64
	LastUpdated   time.Time
}

// Frontier is the FIFO queue of catalog locations still to crawl, together
// with the set of locations already visited. A location is queued at most
// once and visited at most once.
type Frontier struct {
	scope  Scope
	logger *logrus.Entry

	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
	mutex   sync.RWMutex

	stats FrontierStats
}

// New creates an empty frontier limited to scope.
func New(scope Scope, logger *logrus.Entry) *Frontier {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Frontier{
		scope:   scope,
		logger:  logger.WithField("component", "url_frontier"),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
		stats:   FrontierStats{LastUpdated: time.Now()},
	}
}

// Seed enqueues the starting location. The seed is exempt from the scope
// check but must still be an absolute http(s) location.
func (f *Frontier) Seed(rawURL string) bool {
	loc, err := normalizeURL(rawURL)
	if err != nil {
		f.logger.WithError(err).WithField("url", rawURL).Warn("Invalid seed location")
		return false
	}
	return f.push(loc)
}

// Offer resolves href against base and enqueues it if it is in scope, not
// yet visited and not already queued. It reports whether the location was
// added.
func (f *Frontier) Offer(base, href string) bool {
	loc, ok := Resolve(base, href)
	if !ok || !f.scope.Allows(loc) {
		f.mutex.Lock()
		f.stats.TotalRejected++
		f.mutex.Unlock()
		return false
	}
	return f.push(loc)
}

func (f *Frontier) push(loc string) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, ok := f.visited[loc]; ok {
		return false
	}
	if _, ok := f.queued[loc]; ok {
		return false
	}

	f.queue = append(f.queue, loc)
	f.queued[loc] = struct{}{}
	f.stats.TotalAdded++
	f.stats.CurrentQueued = int64(len(f.queue))
	f.stats.LastUpdated = time.Now()

	f.logger.WithField("url", loc).Debug("Added URL to frontier")
	return true
}

// Pop removes and returns the earliest queued location that has not been
// visited. It returns false once the queue is exhausted.
func (f *Frontier) Pop() (string, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	for len(f.queue) > 0 {
		loc := f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]
		delete(f.queued, loc)
		f.stats.CurrentQueued = int64(len(f.queue))

		if _, ok := f.visited[loc]; ok {
			continue
		}
		return loc, true
	}
	return "", false
}

// PopBatch removes up to n unvisited locations from the head of the queue.
// Unlike Pop, each returned location still counts as queued until Done is
// called for it, so links discovered while the batch is merged cannot
// enqueue it a second time.
func (f *Frontier) PopBatch(n int) []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	batch := make([]string, 0, n)
	for len(batch) < n && len(f.queue) > 0 {
		loc := f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]

		if _, ok := f.visited[loc]; ok {
			delete(f.queued, loc)
			continue
		}
		batch = append(batch, loc)
	}
	f.stats.CurrentQueued = int64(len(f.queue))
	return batch
}

// Done releases a location returned by PopBatch.
func (f *Frontier) Done(loc string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.queued, loc)
}

// MarkVisited records loc as visited.
func (f *Frontier) MarkVisited(loc string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, ok := f.visited[loc]; ok {
		return
	}
	f.visited[loc] = struct{}{}
	f.stats.TotalVisited++
	f.stats.LastUpdated = time.Now()
}

// Visited reports whether loc has been visited.
func (f *Frontier) Visited(loc string) bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	_, ok := f.visited[loc]
	return ok
}

// Len returns the number of queued locations.
func (f *Frontier) Len() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return len(f.queue)
}

// GetStats returns current frontier statistics
func (f *Frontier) GetStats() FrontierStats {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.stats
}
