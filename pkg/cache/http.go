package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTTL applies when the gateway sends no Expires header, which is
// the usual case for Marvel responses.
const DefaultTTL = 1 * time.Hour

// FromResponse builds an entry from a 200 response. The body is restored so
// the caller can still read it.
func FromResponse(resp *http.Response) (*Entry, error) {
	if resp == nil || resp.Body == nil {
		return nil, fmt.Errorf("response has no body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("only 200 responses are cached, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &Entry{
		Body:        body,
		ETag:        resp.Header.Get("ETag"),
		ContentType: resp.Header.Get("Content-Type"),
		StoredAt:    now,
		Expires:     ExpiresFrom(resp.Header),
	}

	// Marvel repeats the etag inside the body; use it when the header is absent.
	if entry.ETag == "" {
		entry.ETag = bodyETag(body)
	}
	if entry.Expires.IsZero() {
		entry.Expires = now.Add(DefaultTTL)
	}

	return entry, nil
}

// Response rebuilds the 200 response the entry was stored from, marked with
// X-Cache: HIT.
func (e *Entry) Response() *http.Response {
	header := http.Header{}
	header.Set("X-Cache", "HIT")
	if e.ETag != "" {
		header.Set("ETag", e.ETag)
	}
	if e.ContentType != "" {
		header.Set("Content-Type", e.ContentType)
	}

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
}

// SetIfNoneMatch makes req conditional on the entry's ETag.
func SetIfNoneMatch(req *http.Request, e *Entry) {
	if req == nil || !e.CanRevalidate() {
		return
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("If-None-Match", e.ETag)
}

// ExpiresFrom returns the Expires header time, clamped to now when it lies in
// the past. The zero time means the header is missing or unparseable.
func ExpiresFrom(h http.Header) time.Time {
	v := h.Get("Expires")
	if v == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}
	}
	if now := time.Now(); t.Before(now) {
		return now
	}
	return t
}

func bodyETag(body []byte) string {
	var env struct {
		ETag string `json:"etag"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.ETag
}
