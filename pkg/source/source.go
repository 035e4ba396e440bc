// Package source implements the Marvel comics source connector: the
// protocol commands spec, check, discover and read on top of the signed,
// paginated comics endpoint.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/marvel-comics-source/pkg/auth"
	"github.com/Sternrassler/marvel-comics-source/pkg/client"
	"github.com/Sternrassler/marvel-comics-source/pkg/logging"
	"github.com/Sternrassler/marvel-comics-source/pkg/pagination"
	"github.com/Sternrassler/marvel-comics-source/pkg/protocol"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DocumentationURL points at the upstream API documentation.
const DocumentationURL = "https://developer.marvel.com/docs"

var (
	recordsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_records_emitted_total",
		Help: "Total records written to the output by stream",
	}, []string{"stream"})

	connectionChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_connection_checks_total",
		Help: "Connection checks by result",
	}, []string{"result"})
)

const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Marvel API Source Spec",
  "type": "object",
  "required": ["pub_key", "priv_key"],
  "additionalProperties": true,
  "properties": {
    "pub_key": {
      "type": "string",
      "title": "Public Key",
      "description": "Public key from developer.marvel.com.",
      "airbyte_secret": true
    },
    "priv_key": {
      "type": "string",
      "title": "Private Key",
      "description": "Private key from developer.marvel.com. Only used to sign requests.",
      "airbyte_secret": true
    },
    "max_offset": {
      "type": "integer",
      "title": "Max Offset",
      "description": "Stop once the page offset reaches this value. -1 reads until the result set is exhausted.",
      "minimum": -1,
      "default": 3
    },
    "max_pages": {
      "type": "integer",
      "title": "Max Pages",
      "description": "Upper bound on requests per read.",
      "minimum": 0,
      "default": 10000
    },
    "base_url": {
      "type": "string",
      "title": "Base URL",
      "default": "https://gateway.marvel.com"
    }
  }
}`

// Transport is what the source needs from the gateway client.
type Transport interface {
	Getter
	Probe(ctx context.Context, path string, params url.Values) (*http.Response, error)
}

// Source is the Marvel comics source.
type Source struct {
	cfg       Config
	transport Transport
	signer    *auth.Signer
	comics    *ComicsStream
}

// New creates a source after validating cfg.
func New(cfg Config, transport Transport) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}

	signer := auth.NewSigner(cfg.Credentials())
	return &Source{
		cfg:       cfg,
		transport: transport,
		signer:    signer,
		comics:    NewComicsStream(transport, signer),
	}, nil
}

// WithClock replaces the signing clock (for testing).
func (s *Source) WithClock(now func() time.Time) *Source {
	s.signer.WithClock(now)
	return s
}

// Comics returns the comics stream.
func (s *Source) Comics() *ComicsStream {
	return s.comics
}

// Specification describes the accepted config. It needs no credentials.
func Specification() *protocol.ConnectorSpecification {
	return &protocol.ConnectorSpecification{
		DocumentationURL:        DocumentationURL,
		ConnectionSpecification: json.RawMessage(configSchema),
		SupportsIncremental:     false,
	}
}

// Spec returns the connector specification.
func (s *Source) Spec() *protocol.ConnectorSpecification {
	return Specification()
}

// Discover returns the catalog: the comics stream, full refresh only.
func (s *Source) Discover() *protocol.Catalog {
	return &protocol.Catalog{
		Streams: []protocol.Stream{s.comics.Stream()},
	}
}

// CheckResult is the outcome of a connection check. Exactly one of three
// shapes is returned: success; failure with the gateway's status code; or
// failure with a transport error and no status.
type CheckResult struct {
	Succeeded  bool
	StatusCode int
	Err        error
}

// Status converts the result to a protocol connection status.
func (r CheckResult) Status() protocol.ConnectionStatus {
	switch {
	case r.Succeeded:
		return protocol.ConnectionStatus{Status: protocol.StatusSucceeded}
	case r.StatusCode != 0 && r.Err != nil:
		return protocol.ConnectionStatus{
			Status:  protocol.StatusFailed,
			Message: fmt.Sprintf("gateway returned status %d: %v", r.StatusCode, r.Err),
		}
	case r.StatusCode != 0:
		return protocol.ConnectionStatus{
			Status:  protocol.StatusFailed,
			Message: fmt.Sprintf("gateway returned status %d", r.StatusCode),
		}
	default:
		return protocol.ConnectionStatus{
			Status:  protocol.StatusFailed,
			Message: fmt.Sprintf("connection failed: %v", r.Err),
		}
	}
}

// Check makes one signed request for the first comics page.
func (s *Source) Check(ctx context.Context) CheckResult {
	logger := logging.NewLogger("source")

	result := s.check(ctx)
	switch {
	case result.Succeeded:
		connectionChecksTotal.WithLabelValues("succeeded").Inc()
		logger.Info().Msg("Connection check succeeded")
	case result.StatusCode != 0:
		connectionChecksTotal.WithLabelValues("rejected").Inc()
		logger.Warn().Int("status", result.StatusCode).Err(result.Err).Msg("Connection check rejected")
	default:
		connectionChecksTotal.WithLabelValues("error").Inc()
		logger.Warn().Err(result.Err).Msg("Connection check failed")
	}
	return result
}

func (s *Source) check(ctx context.Context) CheckResult {
	resp, err := s.transport.Probe(ctx, ComicsPath, s.comics.RequestParams(nil, s.signer.Sign()))
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
			return CheckResult{StatusCode: apiErr.StatusCode, Err: err}
		}
		return CheckResult{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return CheckResult{StatusCode: resp.StatusCode, Err: client.DecodeError(resp)}
	}
	resp.Body.Close()

	return CheckResult{Succeeded: true, StatusCode: resp.StatusCode}
}

// ReadStats summarises a read.
type ReadStats struct {
	RunID   string
	Pages   int
	Records int
}

// Read walks every selected stream and emits each page as one record.
// Streams the catalog does not select are skipped; a nil catalog selects
// every discovered stream.
func (s *Source) Read(ctx context.Context, catalog *protocol.ConfiguredCatalog, emitter *protocol.Emitter) (ReadStats, error) {
	if catalog == nil {
		catalog = protocol.SelectAll(s.Discover())
	}

	stats := ReadStats{RunID: uuid.NewString()}
	logger := logging.ForRun("source", stats.RunID)
	start := time.Now()

	for _, cs := range catalog.Streams {
		if cs.Stream.Name != ComicsStreamName {
			logger.Warn().Str("stream", cs.Stream.Name).Msg("Unknown stream in catalog, skipping")
		}
	}

	if !catalog.Selected(ComicsStreamName) {
		logger.Info().Str("stream", ComicsStreamName).Msg("Stream not selected, skipping")
		return stats, nil
	}

	logger.Info().
		Str("stream", ComicsStreamName).
		Int("max_offset", s.cfg.MaxOffset).
		Msg("Read started")

	walker := pagination.NewWalker(s.comics, s.cfg.Policy()).WithStream(ComicsStreamName)
	pages, err := walker.Walk(ctx, func(page pagination.Page) error {
		if err := emitter.EmitRecord(ComicsStreamName, page.Raw); err != nil {
			return err
		}
		stats.Records++
		recordsEmittedTotal.WithLabelValues(ComicsStreamName).Inc()
		return nil
	})
	stats.Pages = pages
	if err != nil {
		logger.Error().
			Err(err).
			Int("pages", pages).
			Msg("Read failed")
		return stats, fmt.Errorf("read %s: %w", ComicsStreamName, err)
	}

	logger.Info().
		Str("stream", ComicsStreamName).
		Int("pages", stats.Pages).
		Int("records", stats.Records).
		Dur("duration", time.Since(start)).
		Msg("Read complete")

	return stats, nil
}
