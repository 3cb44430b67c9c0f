// Package politeness gates catalog requests on robots.txt and spaces out
// requests to the same host.
package politeness

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/course-search/backend/internal/config"
)

// PolitenessManager decides whether a location may be fetched and when
type PolitenessManager struct {
	config      config.PolitenessConfig
	client      *http.Client
	logger      *logrus.Entry
	robotsCache map[string]*RobotsEntry
	nextSlot    map[string]time.Time
	mu          sync.Mutex

	stats Statistics
}

// RobotsEntry caches robots.txt data. A nil robots value means the host has
// no usable robots.txt and everything is allowed.
type RobotsEntry struct {
	robots    *robotstxt.RobotsData
	fetchTime time.Time
}

// Statistics holds politeness manager statistics
type Statistics struct {
	Allowed       int64     `json:"allowed"`
	Denied        int64     `json:"denied"`
	RobotsFetches int64     `json:"robots_fetches"`
	Waits         int64     `json:"waits"`
	StartTime     time.Time `json:"start_time"`
}

// NewPolitenessManager creates a new politeness manager
func NewPolitenessManager(cfg config.PolitenessConfig, logger *logrus.Entry) *PolitenessManager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	timeout := cfg.RobotsTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &PolitenessManager{
		config:      cfg,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.WithField("component", "politeness_manager"),
		robotsCache: make(map[string]*RobotsEntry),
		nextSlot:    make(map[string]time.Time),
		stats:       Statistics{StartTime: time.Now()},
	}
}

// Allowed reports whether robots.txt on the location's host permits the
// configured user agent to fetch it. Missing or unreachable robots.txt
// allows everything.
func (pm *PolitenessManager) Allowed(ctx context.Context, rawURL string) bool {
	allowed := pm.isAllowed(ctx, rawURL)

	pm.mu.Lock()
	if allowed {
		pm.stats.Allowed++
	} else {
		pm.stats.Denied++
	}
	pm.mu.Unlock()

	if !allowed {
		pm.logger.WithField("url", rawURL).Debug("URL blocked by robots.txt")
	}
	return allowed
}

func (pm *PolitenessManager) isAllowed(ctx context.Context, rawURL string) bool {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		return false
	}
	if !pm.config.EnableRobotsCheck {
		return true
	}

	robotsData, err := pm.getRobotsData(ctx, parsedURL)
	if err != nil {
		pm.logger.WithError(err).WithField("domain", parsedURL.Host).Warn("Failed to get robots.txt, allowing request")
		return true
	}
	if robotsData == nil {
		return true
	}

	path := parsedURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	return robotsData.TestAgent(path, pm.config.UserAgent)
}

// Wait blocks until the location's host may be requested again. Concurrent
// callers for one host are given consecutive slots MinDelay apart.
func (pm *PolitenessManager) Wait(ctx context.Context, rawURL string) error {
	if pm.config.MinDelay <= 0 {
		return nil
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	host := parsedURL.Host

	pm.mu.Lock()
	now := time.Now()
	slot := pm.nextSlot[host]
	if slot.Before(now) {
		slot = now
	}
	pm.nextSlot[host] = slot.Add(pm.config.MinDelay)
	pm.mu.Unlock()

	waitTime := time.Until(slot)
	if waitTime <= 0 {
		return nil
	}

	pm.mu.Lock()
	pm.stats.Waits++
	pm.mu.Unlock()

	pm.logger.WithFields(logrus.Fields{
		"domain":    host,
		"wait_time": waitTime,
	}).Debug("Waiting for politeness delay")

	timer := time.NewTimer(waitTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetStatistics returns current statistics
func (pm *PolitenessManager) GetStatistics() Statistics {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.stats
}

// getRobotsData fetches and caches robots.txt data for the location's host
func (pm *PolitenessManager) getRobotsData(ctx context.Context, loc *url.URL) (*robotstxt.RobotsData, error) {
	host := loc.Host

	pm.mu.Lock()
	entry, exists := pm.robotsCache[host]
	pm.mu.Unlock()

	if exists && time.Since(entry.fetchTime) < pm.config.RobotsCacheDuration {
		return entry.robots, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", loc.Scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", pm.config.UserAgent)

	pm.mu.Lock()
	pm.stats.RobotsFetches++
	pm.mu.Unlock()

	resp, err := pm.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	var robotsData *robotstxt.RobotsData
	if resp.StatusCode == http.StatusOK {
		robotsData, err = robotstxt.FromResponse(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
		}
	}

	// cache the result, even if nil for 404s
	pm.mu.Lock()
	pm.robotsCache[host] = &RobotsEntry{
		robots:    robotsData,
		fetchTime: time.Now(),
	}
	pm.mu.Unlock()

	return robotsData, nil
}
