// Package lookup turns free-text input into short candidate lists from the
// backend search endpoints without overwhelming them: typeahead fields are
// debounced, concurrent identical fetches are collapsed, and hot fragments
// are served from a short-lived cache.
package lookup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWait is the input-inactivity window before a search dispatches.
	DefaultWait = 500 * time.Millisecond
	// DefaultMinChars is the minimum fragment length that triggers a search.
	DefaultMinChars = 2
)

// FetchFunc resolves a query fragment into candidates.
type FetchFunc[T any] func(ctx context.Context, query string) ([]T, error)

// Field debounces the input of one typeahead box and maintains its candidate
// list. A new keystroke cancels the pending dispatch and restarts the
// window; once dispatched, an in-flight request is not aborted, but its
// response is discarded if a newer input arrived in the meantime (each
// input bumps a generation counter that is compared at delivery time, so the
// list always reflects the latest query's intent).
//
// Two fields never share timers: client and product lookups run fully
// independently.
type Field[T any] struct {
	fetch    FetchFunc[T]
	wait     time.Duration
	minChars int
	logger   *slog.Logger

	// onResults and onError surface outcomes to the presentation layer;
	// the field itself never assumes a notification mechanism.
	onResults func(query string, results []T)
	onError   func(query string, err error)

	mu         sync.Mutex
	timer      *time.Timer
	gen        uint64
	candidates []T
}

// FieldOption customizes a Field.
type FieldOption[T any] func(*Field[T])

// WithWait overrides the debounce window.
func WithWait[T any](wait time.Duration) FieldOption[T] {
	return func(f *Field[T]) { f.wait = wait }
}

// WithMinChars overrides the minimum fragment length.
func WithMinChars[T any](n int) FieldOption[T] {
	return func(f *Field[T]) { f.minChars = n }
}

// WithFieldLogger sets the logger for fetch failures.
func WithFieldLogger[T any](logger *slog.Logger) FieldOption[T] {
	return func(f *Field[T]) { f.logger = logger }
}

// WithOnResults registers a callback invoked when a fresh candidate list
// lands.
func WithOnResults[T any](fn func(query string, results []T)) FieldOption[T] {
	return func(f *Field[T]) { f.onResults = fn }
}

// WithOnError registers a callback invoked when a dispatched search fails.
// The candidate list is left unchanged on failure.
func WithOnError[T any](fn func(query string, err error)) FieldOption[T] {
	return func(f *Field[T]) { f.onError = fn }
}

// NewField builds a Field around fetch.
func NewField[T any](fetch FetchFunc[T], opts ...FieldOption[T]) *Field[T] {
	f := &Field[T]{
		fetch:    fetch,
		wait:     DefaultWait,
		minChars: DefaultMinChars,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Input feeds the field a new value of the text box. Input below the
// minimum length clears the candidates immediately and dispatches nothing.
func (f *Field[T]) Input(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Invalidate whatever is pending or in flight.
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}

	if len([]rune(query)) < f.minChars {
		f.candidates = nil
		return
	}

	gen := f.gen
	f.timer = time.AfterFunc(f.wait, func() {
		f.dispatch(gen, query)
	})
}

// Stop cancels any pending dispatch. In-flight requests finish on their own
// and are discarded by generation.
func (f *Field[T]) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// Candidates returns a copy of the current candidate list.
func (f *Field[T]) Candidates() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]T, len(f.candidates))
	copy(out, f.candidates)
	return out
}

func (f *Field[T]) dispatch(gen uint64, query string) {
	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	f.mu.Unlock()

	results, err := f.fetch(context.Background(), query)

	f.mu.Lock()
	if gen != f.gen {
		// A newer input superseded this request while it was on the wire.
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.mu.Unlock()
		f.logger.Warn("lookup failed", slog.String("query", query), slog.Any("error", err))
		if f.onError != nil {
			f.onError(query, err)
		}
		return
	}
	f.candidates = results
	f.mu.Unlock()

	if f.onResults != nil {
		f.onResults(query, results)
	}
}
