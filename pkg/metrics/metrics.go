// Package metrics serves the default Prometheus registry used by the connector.
// Metrics are defined in their own packages (client, cache, ratelimit,
// pagination, source) and registered through promauto; this package serves
// them and documents the catalogue.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done. A connector run is short
// lived, so the server is tied to the run rather than the process.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger := log.With().Str("component", "metrics").Logger()
	logger.Info().Str("addr", addr).Msg("Serving metrics")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Debug().Msg("Metrics server stopped")
		return nil
	}
}

// Metrics Documentation
//
// Quota Metrics (pkg/ratelimit):
//   - marvel_quota_calls_remaining (Gauge): Calls left in today's quota
//   - marvel_quota_blocks_total (Counter): Requests blocked because the quota is spent
//   - marvel_quota_throttles_total (Counter): Requests delayed because the quota is nearly spent
//
// Cache Metrics (pkg/cache):
//   - marvel_cache_lookups_total{result} (Counter): Lookups by result (hit, miss, expired)
//   - marvel_cache_stored_bytes_total (Counter): Bytes written to Redis
//   - marvel_304_responses_total (Counter): 304 Not Modified responses
//   - marvel_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - marvel_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - marvel_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - marvel_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - marvel_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - marvel_retries_total{error_class} (Counter): Retry attempts by error class
//   - marvel_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - marvel_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination and Source Metrics (pkg/pagination, pkg/source):
//   - marvel_pages_fetched_total{stream} (Counter): Pages fetched per stream
//   - marvel_records_emitted_total{stream} (Counter): Records written to the output
//   - marvel_connection_checks_total{result} (Counter): Connection checks by outcome
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(marvel_cache_lookups_total{result="hit"}[5m])) /
//   sum(rate(marvel_cache_lookups_total[5m]))
//
//   # Quota Headroom
//   marvel_quota_calls_remaining < 150
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(marvel_request_duration_seconds_bucket[5m]))
