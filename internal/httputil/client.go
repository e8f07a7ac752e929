// Package httputil holds the small HTTP helpers shared by the API server and
// the Signal K REST client.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// maxJSONBody caps how much of a REST response GetJSON will read.
const maxJSONBody = 1 << 20

// HTTPClient is the subset of *http.Client the REST callers need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned by GetJSON for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// GetJSON issues a GET bound to ctx and decodes the JSON body into out.
func GetJSON(ctx context.Context, c HTTPClient, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// MockHTTPClient serves canned responses keyed by request path and records
// every request it sees.
type MockHTTPClient struct {
	mu        sync.Mutex
	requests  []*http.Request
	responses map[string]MockResponse

	// DefaultError, when set, fails every request.
	DefaultError error
}

// MockResponse is a canned reply. A non-nil Error fails the request instead.
type MockResponse struct {
	StatusCode int
	Body       string
	Error      error
}

// NewMockHTTPClient creates a mock with no routes; unknown paths get 404.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{responses: make(map[string]MockResponse)}
}

// On registers a response for a request path.
func (m *MockHTTPClient) On(path string, status int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = MockResponse{StatusCode: status, Body: body}
	return m
}

// OnError makes requests for path fail with err.
func (m *MockHTTPClient) OnError(path string, err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = MockResponse{Error: err}
	return m
}

// Do records the request and returns the response registered for its path.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	resp, ok := m.responses[req.URL.Path]
	if !ok {
		resp = MockResponse{StatusCode: http.StatusNotFound, Body: `{"error":"not found"}`}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(resp.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Paths returns the request paths seen so far, in order.
func (m *MockHTTPClient) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.URL.Path
	}
	return out
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
