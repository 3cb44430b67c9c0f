package politeness_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-search/backend/internal/config"
	"github.com/course-search/backend/internal/politeness"
)

func init() {
	logrus.SetLevel(logrus.WarnLevel)
}

func testConfig() config.PolitenessConfig {
	return config.PolitenessConfig{
		EnableRobotsCheck:   true,
		RobotsCacheDuration: time.Minute,
		RobotsTimeout:       5 * time.Second,
		UserAgent:           "TestCrawler/1.0",
	}
}

func TestPolitenessManager_RobotsCheck(t *testing.T) {
	robotsContent := `User-agent: *
Disallow: /private/
Allow: /public/
`
	var robotsHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			atomic.AddInt32(&robotsHits, 1)
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(robotsContent))
			return
		}
		w.Write([]byte("Page content"))
	}))
	defer server.Close()

	pm := politeness.NewPolitenessManager(testConfig(), nil)
	ctx := context.Background()

	assert.True(t, pm.Allowed(ctx, server.URL+"/public/page.html"))
	assert.False(t, pm.Allowed(ctx, server.URL+"/private/secret.html"))
	assert.True(t, pm.Allowed(ctx, server.URL+"/other/page.html"))
	assert.True(t, pm.Allowed(ctx, server.URL))

	assert.Equal(t, int32(1), atomic.LoadInt32(&robotsHits), "robots.txt is cached per host")

	stats := pm.GetStatistics()
	assert.Equal(t, int64(3), stats.Allowed)
	assert.Equal(t, int64(1), stats.Denied)
	assert.Equal(t, int64(1), stats.RobotsFetches)
}

func TestPolitenessManager_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	pm := politeness.NewPolitenessManager(testConfig(), nil)
	assert.True(t, pm.Allowed(context.Background(), server.URL+"/private/page.html"))
}

func TestPolitenessManager_UnreachableRobotsAllows(t *testing.T) {
	pm := politeness.NewPolitenessManager(testConfig(), nil)
	assert.True(t, pm.Allowed(context.Background(), "http://127.0.0.1:1/page.html"))
}

func TestPolitenessManager_RobotsCheckDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.EnableRobotsCheck = false
	pm := politeness.NewPolitenessManager(cfg, nil)

	assert.True(t, pm.Allowed(context.Background(), server.URL+"/private/page.html"))
	assert.False(t, pm.Allowed(context.Background(), "not a url"))
}

func TestPolitenessManager_WaitSpacesRequests(t *testing.T) {
	cfg := testConfig()
	cfg.MinDelay = 50 * time.Millisecond
	pm := politeness.NewPolitenessManager(cfg, nil)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, pm.Wait(ctx, "http://catalog.example.edu/page.html"))
		}()
	}
	wg.Wait()

	// three requests need two full delays between them
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int64(2), pm.GetStatistics().Waits)

	// other hosts are not delayed
	start = time.Now()
	require.NoError(t, pm.Wait(ctx, "http://other.example.edu/"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPolitenessManager_WaitCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.MinDelay = time.Hour
	pm := politeness.NewPolitenessManager(cfg, nil)

	require.NoError(t, pm.Wait(context.Background(), "http://catalog.example.edu/a.html"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pm.Wait(ctx, "http://catalog.example.edu/b.html"), context.Canceled)
}
