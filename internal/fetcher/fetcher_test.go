package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-search/backend/internal/fetcher"
)

func TestFetcher_Fetch(t *testing.T) {
	var gotAgent string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<html><head><title>Computer Science</title></head><body>
			<div class="courseblock main"><p class="courseblocktitle">CMSC 15400. Intro.</p></div>
			<a href="/thecollege/">College</a><a href="math.html#top">Math</a><a>none</a>
		</body></html>`))
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	f := fetcher.NewFetcher(5*time.Second, "CourseSearch-Crawler/1.0")

	page, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, ts.URL, page.URL)
	assert.Equal(t, 200, page.StatusCode)
	assert.Equal(t, "Computer Science", page.Title)
	assert.Equal(t, []string{"/thecollege/", "math.html#top"}, page.Links)
	assert.Equal(t, 1, page.Doc.Find("div.courseblock.main").Length())
	assert.Equal(t, "CourseSearch-Crawler/1.0", gotAgent)
}

func TestFetcher_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.html", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.html", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>moved</body></html>"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	page, err := fetcher.NewFetcher(5*time.Second, "").Fetch(context.Background(), ts.URL+"/old.html")
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/new.html", page.URL)
}

func TestFetcher_Failures(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/missing", http.NotFoundHandler())
	mux.HandleFunc("/catalog.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	f := fetcher.NewFetcher(5*time.Second, "")

	for _, path := range []string{"/missing", "/catalog.pdf"} {
		t.Run(path, func(t *testing.T) {
			page, err := f.Fetch(context.Background(), ts.URL+path)
			assert.ErrorIs(t, err, fetcher.ErrFetch)
			assert.Nil(t, page)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/")
		assert.ErrorIs(t, err, fetcher.ErrFetch)
	})
}
