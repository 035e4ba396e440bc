package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// PageSize is the limit sent with every request.
	PageSize = 1

	// DefaultMaxOffset stops pagination once the offset reaches 3.
	DefaultMaxOffset = 3

	// Unbounded disables the offset cap; only the upstream total stops the walk.
	Unbounded = -1

	// DefaultMaxPages bounds a walk whose upstream never reports an end.
	DefaultMaxPages = 10000
)

// ErrCursorStalled is returned when the upstream offset does not advance.
var ErrCursorStalled = errors.New("cursor did not advance")

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marvel_pages_fetched_total",
	Help: "Total pages fetched by stream",
}, []string{"stream"})

// Policy decides when pagination ends.
type Policy struct {
	// MaxOffset stops the walk once data.offset >= MaxOffset. Negative disables it.
	MaxOffset int

	// MaxPages caps the number of requests in one walk.
	MaxPages int
}

// DefaultPolicy returns the policy matching the connector's historical behaviour.
func DefaultPolicy() Policy {
	return Policy{
		MaxOffset: DefaultMaxOffset,
		MaxPages:  DefaultMaxPages,
	}
}

// Next returns the offset of the following page, or nil when the walk is done.
func (p Policy) Next(page Page) (*int, error) {
	offset, okOffset := page.Offset()
	limit, okLimit := page.Limit()
	if !okOffset || !okLimit {
		return nil, ErrMissingCursorFields
	}

	if p.MaxOffset >= 0 && offset >= p.MaxOffset {
		return nil, nil
	}

	next := offset + limit
	if total, ok := page.Total(); ok && next >= total {
		return nil, nil
	}

	if next <= offset {
		return nil, fmt.Errorf("%w: offset %d, limit %d", ErrCursorStalled, offset, limit)
	}

	return &next, nil
}

// PageFetcher fetches the raw body of the page starting at cursor.
// A nil cursor requests the first page.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor *int) ([]byte, error)
}

// Walker drives a PageFetcher through the HAS_MORE -> DONE state machine.
type Walker struct {
	fetcher PageFetcher
	policy  Policy
	stream  string
	logger  zerolog.Logger
}

// NewWalker creates a sequential page walker.
func NewWalker(fetcher PageFetcher, policy Policy) *Walker {
	if policy.MaxPages <= 0 {
		policy.MaxPages = DefaultMaxPages
	}
	return &Walker{
		fetcher: fetcher,
		policy:  policy,
		stream:  "default",
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// WithStream labels logs and metrics with a stream name.
func (w *Walker) WithStream(name string) *Walker {
	w.stream = name
	w.logger = w.logger.With().Str("stream", name).Logger()
	return w
}

// Walk fetches pages until the policy reports DONE, calling yield for each
// page in order. It returns the number of pages yielded.
func (w *Walker) Walk(ctx context.Context, yield func(Page) error) (int, error) {
	start := time.Now()

	var cursor *int
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return pages, fmt.Errorf("walk cancelled after %d pages: %w", pages, err)
		}

		if pages >= w.policy.MaxPages {
			w.logger.Warn().Int("max_pages", w.policy.MaxPages).Msg("Page limit reached, stopping")
			return pages, nil
		}

		body, err := w.fetcher.FetchPage(ctx, cursor)
		if err != nil {
			return pages, fmt.Errorf("fetch page %s: %w", describeCursor(cursor), err)
		}

		page, err := ParsePage(body)
		if err != nil {
			return pages, fmt.Errorf("parse page %s: %w", describeCursor(cursor), err)
		}

		if err := yield(page); err != nil {
			return pages, fmt.Errorf("yield page %s: %w", describeCursor(cursor), err)
		}
		pages++
		pagesFetchedTotal.WithLabelValues(w.stream).Inc()

		next, err := w.policy.Next(page)
		if err != nil {
			return pages, fmt.Errorf("next cursor after page %s: %w", describeCursor(cursor), err)
		}

		w.logger.Debug().
			Str("cursor", describeCursor(cursor)).
			Str("next", describeCursor(next)).
			Msg("Page fetched")

		if next == nil {
			break
		}
		cursor = next
	}

	w.logger.Info().
		Int("pages", pages).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return pages, nil
}

func describeCursor(cursor *int) string {
	if cursor == nil {
		return "<first>"
	}
	return fmt.Sprintf("offset=%d", *cursor)
}
