package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nextlevelbuilder/jobauth/internal/config"
)

const (
	searchTimeout   = 30 * time.Second
	searchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// braveSearchEndpoint is a var (not a const) so tests can redirect it at a
// httptest server without touching the network.
var braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

// ChainSearchProvider tries a priority-ordered list of backends and returns
// the first one that succeeds, falling through on error the same way the
// teacher's web search tool tries Brave before DuckDuckGo.
type ChainSearchProvider struct {
	backends   []namedSearchBackend
	maxResults int
}

type namedSearchBackend interface {
	Name() string
	search(ctx context.Context, query string, maxResults int) ([]searchHit, error)
}

type searchHit struct {
	Title       string
	URL         string
	Description string
}

// NewChainSearchProvider builds the configured search chain (Brave first when
// an API key is present, DuckDuckGo's keyless HTML endpoint as fallback).
func NewChainSearchProvider(cfg config.SearchConfig) *ChainSearchProvider {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	var backends []namedSearchBackend
	if cfg.BraveAPIKey != "" {
		backends = append(backends, &braveBackend{apiKey: cfg.BraveAPIKey, client: &http.Client{Timeout: searchTimeout}})
	}
	if cfg.DDGEnabled {
		backends = append(backends, &duckDuckGoBackend{client: &http.Client{Timeout: searchTimeout}})
	}

	return &ChainSearchProvider{backends: backends, maxResults: maxResults}
}

func (p *ChainSearchProvider) Search(ctx context.Context, query string) (string, error) {
	if len(p.backends) == 0 {
		return "", fmt.Errorf("query-search-engine: no search backend configured")
	}

	var lastErr error
	for _, backend := range p.backends {
		hits, err := backend.search(ctx, query, p.maxResults)
		if err != nil {
			lastErr = err
			continue
		}
		return formatSearchHits(query, hits, backend.Name()), nil
	}
	return "", fmt.Errorf("all search backends failed: %w", lastErr)
}

func formatSearchHits(query string, hits []searchHit, backend string) string {
	if len(hits) == 0 {
		return fmt.Sprintf("no results found for: %s", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "search results for: %s (via %s)\n\n", query, backend)
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, h.Title, h.URL)
		if h.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", h.Description)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// --- Brave backend ---

type braveBackend struct {
	apiKey string
	client *http.Client
}

func (b *braveBackend) Name() string { return "brave" }

func (b *braveBackend) search(ctx context.Context, query string, count int) ([]searchHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveSearchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read brave response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse brave response: %w", err)
	}

	hits := make([]searchHit, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		hits = append(hits, searchHit{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return hits, nil
}

// --- DuckDuckGo backend ---

type duckDuckGoBackend struct {
	client *http.Client
}

func (d *duckDuckGoBackend) Name() string { return "duckduckgo" }

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a class="result__snippet[^"]*".*?>([\s\S]*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func (d *duckDuckGoBackend) search(ctx context.Context, query string, count int) ([]searchHit, error) {
	searchURL := fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read duckduckgo response: %w", err)
	}

	return extractDDGHits(string(body), count), nil
}

func extractDDGHits(html string, count int) []searchHit {
	linkMatches := ddgLinkRe.FindAllStringSubmatch(html, count+5)
	if len(linkMatches) == 0 {
		return nil
	}
	snippetMatches := ddgSnippetRe.FindAllStringSubmatch(html, count+5)

	hits := make([]searchHit, 0, count)
	for i := 0; i < len(linkMatches) && i < count; i++ {
		rawURL := linkMatches[i][1]
		title := strings.TrimSpace(htmlTagRe.ReplaceAllString(linkMatches[i][2], ""))

		if strings.Contains(rawURL, "uddg=") {
			if u, err := url.QueryUnescape(rawURL); err == nil {
				if idx := strings.Index(u, "uddg="); idx != -1 {
					extracted := u[idx+5:]
					if amp := strings.Index(extracted, "&"); amp != -1 {
						extracted = extracted[:amp]
					}
					rawURL = extracted
				}
			}
		}

		desc := ""
		if i < len(snippetMatches) {
			desc = strings.TrimSpace(htmlTagRe.ReplaceAllString(snippetMatches[i][1], ""))
		}

		hits = append(hits, searchHit{Title: title, URL: rawURL, Description: desc})
	}
	return hits
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
