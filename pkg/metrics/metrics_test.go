package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/marvel-comics-source/pkg/cache"
)

var testCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "marvel_metrics_test_total",
	Help: "Counter used by the metrics package tests",
})

func TestHandler(t *testing.T) {
	testCounter.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "marvel_metrics_test_total 1") {
		t.Error("Expected metrics output to contain marvel_metrics_test_total")
	}
}

// The catalogued cache metric is exported under the name used in the example
// queries.
func TestHandler_ExposesCacheLookups(t *testing.T) {
	cache.Lookups.WithLabelValues("hit").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `marvel_cache_lookups_total{result="hit"}`) {
		t.Error("Expected metrics output to contain marvel_cache_lookups_total{result=\"hit\"}")
	}
	if strings.Contains(body, "marvel_cache_hits_total") {
		t.Error("marvel_cache_hits_total should not be exported")
	}
}

func TestServe_StopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("metrics endpoint never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestServe_BadAddress(t *testing.T) {
	err := Serve(context.Background(), "256.0.0.1:bad")
	if err == nil {
		t.Error("expected listen error")
	}
}
