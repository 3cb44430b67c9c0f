// Package frontier holds the crawl queue and the rules deciding which catalog
// locations may enter it.
package frontier

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Scope limits a crawl to one domain and its subdomains.
type Scope struct {
	Domain string
}

// Allows reports whether the absolute location loc may be followed: an
// http(s) location on the domain or a subdomain, without a query string,
// whose path has no extension or ends in .html.
func (s Scope) Allows(loc string) bool {
	if strings.Contains(loc, "@") || strings.HasPrefix(strings.ToLower(loc), "mailto:") {
		return false
	}

	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(s.Domain)
	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return false
	}

	ext := path.Ext(u.Path)
	return ext == "" || ext == ".html"
}

// Resolve makes href absolute against base and drops its fragment. Links
// that cannot be followed at all (javascript:, mailto:, unparsable) are
// rejected.
func Resolve(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return "", false
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	loc, err := normalizeURL(baseURL.ResolveReference(ref).String())
	if err != nil {
		return "", false
	}
	return loc, true
}

// normalizeURL normalizes a URL for consistent handling
func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("URL must have a host")
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return parsed.String(), nil
}
