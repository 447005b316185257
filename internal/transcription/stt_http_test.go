package transcription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/config"
)

func Test_HTTPSTTClient_NoProxyConfigured(t *testing.T) {
	c := NewHTTPSTTClient(config.TranscriptionConfig{})
	_, err := c.Transcribe(context.Background(), uuid.New(), []byte("fake-wav"), "en")
	if err == nil {
		t.Fatalf("expected an error when no proxy URL is configured")
	}
}

func Test_HTTPSTTClient_PostsMultipartAndParsesTranscript(t *testing.T) {
	var gotAuth, gotTenant, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe_audio" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		r.ParseMultipartForm(1 << 20)
		gotTenant = r.FormValue("tenant_id")
		gotLanguage = r.FormValue("language")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transcript":"hello world","duration_seconds":3.0}`))
	}))
	defer srv.Close()

	c := NewHTTPSTTClient(config.TranscriptionConfig{
		ProxyURL: srv.URL,
		APIKey:   "secret-key",
		TenantID: "tenant-1",
	})

	result, err := c.Transcribe(context.Background(), uuid.New(), []byte("fake-wav-bytes"), "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("expected transcript text, got %q", result.Text)
	}
	if len(result.Segments) != 1 || result.Segments[0].Text != "hello world" {
		t.Fatalf("expected one whole-chunk segment, got %+v", result.Segments)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("expected bearer token forwarded, got %q", gotAuth)
	}
	if gotTenant != "tenant-1" {
		t.Fatalf("expected tenant_id forwarded, got %q", gotTenant)
	}
	if gotLanguage != "en" {
		t.Fatalf("expected language forwarded, got %q", gotLanguage)
	}
}

func Test_HTTPSTTClient_UpstreamErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewHTTPSTTClient(config.TranscriptionConfig{ProxyURL: srv.URL})
	_, err := c.Transcribe(context.Background(), uuid.New(), []byte("x"), "")
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("expected error to include upstream body, got %v", err)
	}
}

func Test_ConfigAPIKeyResolver(t *testing.T) {
	r := NewConfigAPIKeyResolver(config.TranscriptionConfig{APIKey: "k"})
	key, err := r.ResolveAPIKey(context.Background(), uuid.New())
	if err != nil || key != "k" {
		t.Fatalf("expected configured key, got %q err=%v", key, err)
	}

	r2 := NewConfigAPIKeyResolver(config.TranscriptionConfig{})
	if _, err := r2.ResolveAPIKey(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error when no API key configured")
	}
}
