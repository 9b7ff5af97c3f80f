package mocks

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// MockHTTPClient implements api.HTTPDoer for testing
type MockHTTPClient struct {
	mu sync.Mutex

	// Control behavior
	DoFunc      func(req *http.Request) (*http.Response, error)
	CallCount   int
	LastRequest *http.Request
	LastBody    []byte
}

// NewMockHTTPClient creates a new mock HTTP client
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// Do records the request and delegates to DoFunc
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	m.mu.Lock()
	m.CallCount++
	m.LastRequest = req
	m.LastBody = body
	doFunc := m.DoFunc
	m.mu.Unlock()

	if doFunc != nil {
		return doFunc(req)
	}

	// Default response
	return NewResponse(req, http.StatusOK, `{"status": "ok"}`), nil
}

// Calls returns how many requests were made
func (m *MockHTTPClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// NewResponse builds a response with a raw body
func NewResponse(req *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
		Request:    req,
	}
}

// NewJSONResponse builds a 200 response with v encoded as JSON
func NewJSONResponse(req *http.Request, v interface{}) *http.Response {
	data, err := json.Marshal(v)
	if err != nil {
		return NewResponse(req, http.StatusInternalServerError, err.Error())
	}
	resp := NewResponse(req, http.StatusOK, string(data))
	resp.Header.Set("Content-Type", "application/json")
	return resp
}
