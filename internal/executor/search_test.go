package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/jobauth/internal/config"
	"github.com/nextlevelbuilder/jobauth/internal/job"
)

func Test_ChainSearchProvider_NoBackendsConfigured(t *testing.T) {
	p := NewChainSearchProvider(config.SearchConfig{})
	if _, err := p.Search(context.Background(), "golang"); err == nil {
		t.Fatalf("expected an error when no search backend is configured")
	}
}

func Test_ChainSearchProvider_BraveSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "brave-key" {
			t.Fatalf("expected brave api key forwarded, got %q", got)
		}
		w.Write([]byte(`{"web":{"results":[{"title":"Go","url":"https://go.dev","description":"the go language"}]}}`))
	}))
	defer srv.Close()

	origEndpoint := braveSearchEndpoint
	braveSearchEndpoint = srv.URL
	defer func() { braveSearchEndpoint = origEndpoint }()

	p := NewChainSearchProvider(config.SearchConfig{BraveAPIKey: "brave-key"})
	brave := p.backends[0].(*braveBackend)

	out, err := brave.search(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Go" {
		t.Fatalf("unexpected hits: %+v", out)
	}
}

func Test_QuerySearchEngineHandler_RequiresQuery(t *testing.T) {
	h := NewQuerySearchEngineHandler(NewChainSearchProvider(config.SearchConfig{DDGEnabled: true}))
	if _, err := h.Execute(context.Background(), &job.Job{}); err == nil {
		t.Fatalf("expected an error when the query is empty")
	}
}

func Test_ExtractDDGHits(t *testing.T) {
	html := `<a class="result__a" href="https://duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=1">Go Homepage</a>` +
		`<a class="result__snippet">The Go programming language</a>`
	hits := extractDDGHits(html, 5)
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	if hits[0].URL != "https://go.dev/" {
		t.Fatalf("expected unwrapped url, got %q", hits[0].URL)
	}
	if hits[0].Description != "The Go programming language" {
		t.Fatalf("unexpected description: %q", hits[0].Description)
	}
}
