package pagination

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Common errors returned by page parsing and cursor decisions.
var (
	// ErrMalformedPage indicates the response body is not valid JSON.
	ErrMalformedPage = errors.New("malformed page")

	// ErrMissingCursorFields indicates data.offset or data.limit is absent.
	ErrMissingCursorFields = errors.New("page is missing data.offset or data.limit")
)

// Envelope is the part of a Marvel response the paginator reads.
// Pointer fields distinguish an absent key from a zero value.
type Envelope struct {
	Code   json.RawMessage `json:"code,omitempty"`
	Status string          `json:"status,omitempty"`
	ETag   string          `json:"etag,omitempty"`
	Data   *DataContainer  `json:"data,omitempty"`
}

// DataContainer holds the pagination fields of a Marvel result set.
type DataContainer struct {
	Offset *int `json:"offset"`
	Limit  *int `json:"limit"`
	Total  *int `json:"total"`
	Count  *int `json:"count"`
}

// Page is one response body. Raw is yielded as-is; Envelope is only used to
// compute the next cursor.
type Page struct {
	Raw      json.RawMessage
	Envelope Envelope
}

// ParsePage decodes a response body into a Page.
func ParsePage(body []byte) (Page, error) {
	if !json.Valid(body) {
		return Page{}, fmt.Errorf("%w: invalid JSON (%d bytes)", ErrMalformedPage, len(body))
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	raw := make(json.RawMessage, len(body))
	copy(raw, body)

	return Page{Raw: raw, Envelope: env}, nil
}

// Offset returns data.offset and whether it was present.
func (p Page) Offset() (int, bool) {
	if p.Envelope.Data == nil || p.Envelope.Data.Offset == nil {
		return 0, false
	}
	return *p.Envelope.Data.Offset, true
}

// Limit returns data.limit and whether it was present.
func (p Page) Limit() (int, bool) {
	if p.Envelope.Data == nil || p.Envelope.Data.Limit == nil {
		return 0, false
	}
	return *p.Envelope.Data.Limit, true
}

// Total returns data.total and whether it was present.
func (p Page) Total() (int, bool) {
	if p.Envelope.Data == nil || p.Envelope.Data.Total == nil {
		return 0, false
	}
	return *p.Envelope.Data.Total, true
}
