package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingFetch counts dispatched queries and serves canned results. Gates
// allow a test to hold one query's response on the wire.
type recordingFetch struct {
	mu      sync.Mutex
	queries []string
	results map[string][]string
	errs    map[string]error
	gates   map[string]chan struct{}
}

func newRecordingFetch() *recordingFetch {
	return &recordingFetch{
		results: make(map[string][]string),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *recordingFetch) fetch(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate := f.gates[query]
	results := f.results[query]
	err := f.errs[query]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return results, err
}

func (f *recordingFetch) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

const testWait = 20 * time.Millisecond

func TestDebounceCollapsesRapidKeystrokes(t *testing.T) {
	fetch := newRecordingFetch()
	fetch.results["ab"] = []string{"Abel", "Abigail"}

	field := NewField(fetch.fetch, WithWait[string](testWait))

	// "a" then "ab" inside the debounce window: only "ab" dispatches.
	field.Input("a")
	field.Input("ab")

	require.Eventually(t, func() bool {
		return len(field.Candidates()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(3 * testWait)
	assert.Equal(t, []string{"ab"}, fetch.dispatched())
}

func TestShortInputClearsCandidatesWithoutDispatch(t *testing.T) {
	fetch := newRecordingFetch()
	fetch.results["ana"] = []string{"Ana"}

	field := NewField(fetch.fetch, WithWait[string](testWait))

	field.Input("ana")
	require.Eventually(t, func() bool {
		return len(field.Candidates()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	field.Input("a")
	assert.Empty(t, field.Candidates(), "short input clears immediately")

	time.Sleep(3 * testWait)
	assert.Equal(t, []string{"ana"}, fetch.dispatched(), "short input never dispatches")
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	fetch := newRecordingFetch()
	gate := make(chan struct{})
	fetch.results["ab"] = []string{"stale"}
	fetch.gates["ab"] = gate
	fetch.results["abc"] = []string{"fresh"}

	field := NewField(fetch.fetch, WithWait[string](testWait))

	field.Input("ab")
	require.Eventually(t, func() bool {
		return len(fetch.dispatched()) == 1
	}, 2*time.Second, 5*time.Millisecond, "first request should be on the wire")

	// Newer input while the old request is still in flight.
	field.Input("abc")
	require.Eventually(t, func() bool {
		candidates := field.Candidates()
		return len(candidates) == 1 && candidates[0] == "fresh"
	}, 2*time.Second, 5*time.Millisecond)

	// The old response lands late and must not overwrite the fresh list.
	close(gate)
	time.Sleep(3 * testWait)
	assert.Equal(t, []string{"fresh"}, field.Candidates())
}

func TestFetchErrorLeavesCandidatesUntouched(t *testing.T) {
	fetch := newRecordingFetch()
	fetch.results["ana"] = []string{"Ana"}
	fetch.errs["bob"] = errors.New("connection refused")

	var failed struct {
		mu    sync.Mutex
		query string
	}
	field := NewField(fetch.fetch,
		WithWait[string](testWait),
		WithOnError[string](func(query string, err error) {
			failed.mu.Lock()
			failed.query = query
			failed.mu.Unlock()
		}))

	field.Input("ana")
	require.Eventually(t, func() bool {
		return len(field.Candidates()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	field.Input("bob")
	require.Eventually(t, func() bool {
		failed.mu.Lock()
		defer failed.mu.Unlock()
		return failed.query == "bob"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"Ana"}, field.Candidates(), "failure keeps the previous list")
}

func TestStopCancelsPendingDispatch(t *testing.T) {
	fetch := newRecordingFetch()
	field := NewField(fetch.fetch, WithWait[string](testWait))

	field.Input("ana")
	field.Stop()

	time.Sleep(3 * testWait)
	assert.Empty(t, fetch.dispatched())
}

func TestIndependentFieldsDoNotShareTimers(t *testing.T) {
	clientFetch := newRecordingFetch()
	clientFetch.results["maria"] = []string{"Maria"}
	productFetch := newRecordingFetch()
	productFetch.results["arroz"] = []string{"Arroz 5kg"}

	clients := NewField(clientFetch.fetch, WithWait[string](testWait))
	products := NewField(productFetch.fetch, WithWait[string](testWait))

	clients.Input("maria")
	products.Input("arroz")
	// A keystroke in one field must not cancel the other's pending search.
	clients.Input("maria")

	require.Eventually(t, func() bool {
		return len(clients.Candidates()) == 1 && len(products.Candidates()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}
