package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrFetch marks a page that could not be retrieved or is not HTML. The
// crawler skips such pages.
var ErrFetch = errors.New("fetch failed")

// maxBodyBytes caps how much of a response is parsed.
const maxBodyBytes = 8 << 20

// Page is a fetched and parsed catalog page
type Page struct {
	URL        string // final location after redirects
	Title      string
	Links      []string // raw href values, in document order
	StatusCode int
	Doc        *goquery.Document
}

type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch downloads and parses a catalog page
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetch, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: network error: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: received non-200 status code: %d", ErrFetch, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return nil, fmt.Errorf("%w: content type %q is not HTML", ErrFetch, ct)
	}

	root, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing error: %v", ErrFetch, err)
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Url = resp.Request.URL

	page := &Page{
		URL:        resp.Request.URL.String(),
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		Links:      extractLinks(doc),
		StatusCode: resp.StatusCode,
		Doc:        doc,
	}
	return page, nil
}

func extractLinks(doc *goquery.Document) []string {
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links
}
