package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/marvel-comics-source/pkg/auth"
	"github.com/Sternrassler/marvel-comics-source/pkg/client"
	"github.com/Sternrassler/marvel-comics-source/pkg/pagination"
	"github.com/Sternrassler/marvel-comics-source/pkg/protocol"
	"github.com/goccy/go-json"
)

const (
	// ComicsStreamName is the only stream this source offers.
	ComicsStreamName = "comics"

	// ComicsPath is the gateway endpoint behind the comics stream.
	ComicsPath = "/v1/public/comics"

	// ParamLimit and ParamOffset are the paging query parameters.
	ParamLimit  = "limit"
	ParamOffset = "offset"
)

// Each record is a whole page envelope, so the schema stays open.
var comicsSchema = json.RawMessage(`{"$schema":"http://json-schema.org/draft-07/schema#","type":"object","additionalProperties":true}`)

// Getter issues a GET against the gateway.
type Getter interface {
	Get(ctx context.Context, path string, params url.Values) (*http.Response, error)
}

// ComicsStream fetches pages of /v1/public/comics. It implements
// pagination.PageFetcher.
type ComicsStream struct {
	getter Getter
	signer *auth.Signer
}

// NewComicsStream creates the comics stream.
func NewComicsStream(getter Getter, signer *auth.Signer) *ComicsStream {
	return &ComicsStream{getter: getter, signer: signer}
}

// Name returns the stream name.
func (s *ComicsStream) Name() string { return ComicsStreamName }

// Path returns the endpoint path.
func (s *ComicsStream) Path() string { return ComicsPath }

// RequestParams builds the query for the page at cursor: the signature,
// limit=1 and, only when cursor is set, its offset.
func (s *ComicsStream) RequestParams(cursor *int, sig auth.Signature) url.Values {
	params := url.Values{}
	sig.Apply(params, s.signer.PublicKey())
	params.Set(ParamLimit, strconv.Itoa(pagination.PageSize))
	if cursor != nil {
		params.Set(ParamOffset, strconv.Itoa(*cursor))
	}
	return params
}

// FetchPage signs and sends one page request and returns the raw body.
// Non-200 responses are returned as *client.APIError.
func (s *ComicsStream) FetchPage(ctx context.Context, cursor *int) ([]byte, error) {
	resp, err := s.getter.Get(ctx, ComicsPath, s.RequestParams(cursor, s.signer.Sign()))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, client.DecodeError(resp)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", ComicsStreamName, err)
	}
	return body, nil
}

// Stream describes the comics stream for discovery.
func (s *ComicsStream) Stream() protocol.Stream {
	return protocol.Stream{
		Name:               ComicsStreamName,
		JSONSchema:         comicsSchema,
		SupportedSyncModes: []protocol.SyncMode{protocol.SyncModeFullRefresh},
	}
}
