package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPPinger probes an HTTP dependency (an Ollama host's /api/tags, an
// OpenAI-compatible /models) with a GET and expects a 2xx. It costs no tokens.
type HTTPPinger struct {
	name   string
	url    string
	header http.Header
	client *http.Client
}

// NewHTTPPinger returns a pinger for url. header may carry an API key.
func NewHTTPPinger(name, url string, header http.Header) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, header: header, client: http.DefaultClient}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the GET and checks the status.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range p.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// pingFunc is satisfied by *rag.QdrantIndex and *store.SQLiteStore.
type pingFunc interface {
	Ping(ctx context.Context) error
}

// DependencyPinger names any value with a Ping method so it can take part in
// readiness checks.
type DependencyPinger struct {
	name string
	dep  pingFunc
}

// NewDependencyPinger wraps dep under the given label.
func NewDependencyPinger(name string, dep pingFunc) *DependencyPinger {
	return &DependencyPinger{name: name, dep: dep}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping delegates to the wrapped dependency.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.dep.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
