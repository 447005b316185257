package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

const (
	websiteFetchTimeout = 30 * time.Second
	websiteMaxChars     = 50000
)

// InfoStoreRecord is a named, resource-scoped blob of text an agent may be
// granted access to — local (e.g. a memory/knowledge file) or external
// (e.g. a registered external API endpoint).
type InfoStoreRecord struct {
	ID   uuid.UUID
	Name string
	Text string
}

// InfoStore resolves and registers InfoStoreRecord resources (§6
// AccessLocalInfoStore / AccessExternalInfoStore / RegisterInfoStore).
type InfoStore interface {
	GetInfoStore(ctx context.Context, id uuid.UUID) (*InfoStoreRecord, error)
	RegisterInfoStore(ctx context.Context, r *InfoStoreRecord) error
}

// AccessInfoStoreHandler implements both AccessLocalInfoStore and
// AccessExternalInfoStore — the distinction is purely in which Grant
// category authorized the request, not in how the resource is fetched.
type AccessInfoStoreHandler struct {
	store InfoStore
}

func NewAccessInfoStoreHandler(store InfoStore) *AccessInfoStoreHandler {
	return &AccessInfoStoreHandler{store: store}
}

func (h *AccessInfoStoreHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	record, err := h.store.GetInfoStore(ctx, j.ResourceID)
	if err != nil || record == nil {
		return "", fmt.Errorf("access-info-store: resolve resource: %w", err)
	}
	return record.Text, nil
}

// RegisterInfoStoreHandler implements §4.5's RegisterInfoStore global-flag
// action: creates a record whose text is the job's ScriptText; the record's
// name is left empty.
type RegisterInfoStoreHandler struct {
	store InfoStore
}

func NewRegisterInfoStoreHandler(store InfoStore) *RegisterInfoStoreHandler {
	return &RegisterInfoStoreHandler{store: store}
}

func (h *RegisterInfoStoreHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	record := &InfoStoreRecord{ID: uuid.New(), Text: j.ScriptText}
	if err := h.store.RegisterInfoStore(ctx, record); err != nil {
		return "", fmt.Errorf("register-info-store: %w", err)
	}
	return fmt.Sprintf("registered info store %s", record.ID), nil
}

// AccessContainerHandler implements §6's AccessContainer: returns the
// container's name and registered root path, the only information a
// non-execution read is entitled to.
type AccessContainerHandler struct {
	containers ContainerStore
}

func NewAccessContainerHandler(containers ContainerStore) *AccessContainerHandler {
	return &AccessContainerHandler{containers: containers}
}

func (h *AccessContainerHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	container, err := h.containers.GetContainer(ctx, j.ResourceID)
	if err != nil || container == nil {
		return "", fmt.Errorf("access-container: resolve: %w", err)
	}
	return fmt.Sprintf("%s (%s)", container.Name, container.RootPath), nil
}

// AccessWebsiteHandler implements §4.5's AccessWebsite: the job's
// ScriptText carries the target URL (resolved/validated upstream by the
// chat loop's tool-call translation).
type AccessWebsiteHandler struct {
	client *http.Client
}

func NewAccessWebsiteHandler() *AccessWebsiteHandler {
	return &AccessWebsiteHandler{client: &http.Client{Timeout: websiteFetchTimeout}}
}

func (h *AccessWebsiteHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	if j.ScriptText == "" {
		return "", fmt.Errorf("access-website: url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.ScriptText, nil)
	if err != nil {
		return "", fmt.Errorf("access-website: build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("access-website: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, websiteMaxChars))
	if err != nil {
		return "", fmt.Errorf("access-website: read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("access-website: %s returned %d", j.ScriptText, resp.StatusCode)
	}
	return string(body), nil
}

// SearchProvider abstracts a web search backend (grounded on the teacher's
// web_search.go SearchProvider interface for the same concern).
type SearchProvider interface {
	Search(ctx context.Context, query string) (string, error)
}

// QuerySearchEngineHandler implements §4.5's QuerySearchEngine.
type QuerySearchEngineHandler struct {
	provider SearchProvider
}

func NewQuerySearchEngineHandler(provider SearchProvider) *QuerySearchEngineHandler {
	return &QuerySearchEngineHandler{provider: provider}
}

func (h *QuerySearchEngineHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	if j.ScriptText == "" {
		return "", fmt.Errorf("query-search-engine: query is required")
	}
	result, err := h.provider.Search(ctx, j.ScriptText)
	if err != nil {
		return "", fmt.Errorf("query-search-engine: %w", err)
	}
	return result, nil
}
