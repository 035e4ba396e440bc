// Package testutil provides a mock Marvel gateway for tests.
package testutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ComicsPath is the endpoint served by the default handler.
const ComicsPath = "/v1/public/comics"

// MockResponse defines a canned gateway response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockMarvel is a configurable mock gateway. The default handler checks the
// request signature and serves Total comics, one page per request.
type MockMarvel struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	publicKey  string
	privateKey string
	total      int

	requestCount     int
	conditionalCount int
	queries          []url.Values
}

// NewMockMarvel starts a mock gateway accepting the given key pair.
func NewMockMarvel(publicKey, privateKey string) *MockMarvel {
	mock := &MockMarvel{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		publicKey:  publicKey,
		privateKey: privateKey,
		total:      10,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.queries = append(mock.queries, r.URL.Query())
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockMarvel) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockMarvel) Close() {
	m.server.Close()
}

// SetTotal sets how many comics the default handler reports.
func (m *MockMarvel) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// Reset clears all tracking counters.
func (m *MockMarvel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.queries = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockMarvel) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockMarvel) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockMarvel) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockMarvel) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// Queries returns the query string of every request, in order.
func (m *MockMarvel) Queries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.queries))
	copy(out, m.queries)
	return out
}

// Offsets returns the raw offset parameter of every request; "" marks a
// request sent without one.
func (m *MockMarvel) Offsets() []string {
	queries := m.Queries()
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Get("offset")
	}
	return out
}

func (m *MockMarvel) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.URL.Path != ComicsPath {
		writeJSON(w, http.StatusNotFound, `{"code":"ResourceNotFound","message":"We couldn't find that resource."}`)
		return
	}

	q := r.URL.Query()
	if status, body, ok := m.checkAuth(q); !ok {
		writeJSON(w, status, body)
		return
	}

	limit := 20
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeJSON(w, http.StatusConflict, `{"code":409,"status":"You must pass an integer limit greater than 0 and at most 100."}`)
			return
		}
		limit = n
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusConflict, `{"code":409,"status":"You must pass a non-negative integer offset."}`)
			return
		}
		offset = n
	}

	m.mu.RLock()
	total := m.total
	m.mu.RUnlock()

	etag := ComicsETag(offset, limit, total)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, ComicsPage(offset, limit, total))
}

func (m *MockMarvel) checkAuth(q url.Values) (int, string, bool) {
	apiKey := q.Get("apikey")
	if apiKey == "" {
		return http.StatusConflict, `{"code":"MissingParameter","message":"You must provide a user key."}`, false
	}
	if q.Get("hash") == "" {
		return http.StatusConflict, `{"code":"MissingParameter","message":"You must provide a hash."}`, false
	}
	if q.Get("ts") == "" {
		return http.StatusConflict, `{"code":"MissingParameter","message":"You must provide a timestamp."}`, false
	}
	if apiKey != m.publicKey {
		return http.StatusUnauthorized, `{"code":"InvalidCredentials","message":"The passed API key is invalid."}`, false
	}
	sum := md5.Sum([]byte(q.Get("ts") + m.privateKey + m.publicKey))
	if hex.EncodeToString(sum[:]) != q.Get("hash") {
		return http.StatusUnauthorized, `{"code":"InvalidCredentials","message":"That hash, timestamp and key combination is invalid."}`, false
	}
	return 0, "", true
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

type comic struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type dataContainer struct {
	Offset  int     `json:"offset"`
	Limit   int     `json:"limit"`
	Total   int     `json:"total"`
	Count   int     `json:"count"`
	Results []comic `json:"results"`
}

type dataWrapper struct {
	Code            int           `json:"code"`
	Status          string        `json:"status"`
	AttributionText string        `json:"attributionText"`
	ETag            string        `json:"etag"`
	Data            dataContainer `json:"data"`
}

// ComicsETag returns the ETag the default handler sends for a page.
func ComicsETag(offset, limit, total int) string {
	return fmt.Sprintf(`"comics-%d-%d-%d"`, offset, limit, total)
}

// ComicsPage renders the gateway's data wrapper for one page of comics.
func ComicsPage(offset, limit, total int) string {
	results := []comic{}
	for i := offset; i < offset+limit && i < total; i++ {
		results = append(results, comic{ID: 1000 + i, Title: fmt.Sprintf("Comic #%d", i)})
	}

	body, _ := json.Marshal(dataWrapper{
		Code:            200,
		Status:          "Ok",
		AttributionText: "Data provided by Marvel. © 2024 MARVEL",
		ETag:            ComicsETag(offset, limit, total),
		Data: dataContainer{
			Offset:  offset,
			Limit:   limit,
			Total:   total,
			Count:   len(results),
			Results: results,
		},
	})
	return string(body)
}

// NewHealthyResponse creates a 200 response carrying body.
func NewHealthyResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewInvalidCredentialsResponse creates the gateway's 401 for a bad key pair.
func NewInvalidCredentialsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"code":"InvalidCredentials","message":"The passed API key is invalid."}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewQuotaExceededResponse creates the gateway's 429 for a spent daily quota.
func NewQuotaExceededResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code":"RequestThrottled","message":"You have exceeded your rate limit.  Please try again later."}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":"InternalError","message":"Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
