package sale

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Gateway is the slice of the remote backend the composer needs: one
// creation call. The backend owns the sale after a successful create.
type Gateway interface {
	CreateSale(ctx context.Context, s Sale) error
}

type builderState int

const (
	stateEditing builderState = iota
	stateSubmitting
)

// Builder owns a single sale draft through its lifecycle: client selection,
// line-item edits, submission and reset. All access is serialized by an
// internal mutex; the network call in Submit runs without the lock held.
type Builder struct {
	gateway Gateway
	logger  *slog.Logger
	now     func() time.Time

	// onCancel notifies the parent scope that the builder was cancelled.
	onCancel func()

	mu     sync.Mutex
	state  builderState
	date   Date
	client *Client
	items  Items
}

// Option customizes a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for submission outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithClock overrides the time source used for the default sale date.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithOnCancel registers the parent notification invoked by Cancel.
func WithOnCancel(fn func()) Option {
	return func(b *Builder) { b.onCancel = fn }
}

// New returns an empty Builder dated today.
func New(gateway Gateway, opts ...Option) *Builder {
	b := &Builder{
		gateway: gateway,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.date = Date{Time: b.now()}
	return b
}

// SelectClient sets the sale's client.
func (b *Builder) SelectClient(c Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = &c
}

// ClearClient drops the selected client.
func (b *Builder) ClearClient() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = nil
}

// SetDate sets the sale date.
func (b *Builder) SetDate(d Date) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.date = d
}

// AddProduct adds the product to the draft, merging into an existing line
// for the same product. See Items.Add for the stock rules.
func (b *Builder) AddProduct(p Product) ([]LineItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Add(p)
}

// RemoveItem removes the line for productID; absent lines are a no-op.
func (b *Builder) RemoveItem(productID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items.Remove(productID)
}

// UpdateUnitPrice edits a line's unit price from raw input.
func (b *Builder) UpdateUnitPrice(productID int64, raw string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.UpdateUnitPrice(productID, raw)
}

// UpdateQuantity edits a line's quantity from raw input, clamping to known
// stock. clamped is informational; the edit applies either way.
func (b *Builder) UpdateQuantity(productID int64, raw string) (applied float64, clamped, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.UpdateQuantity(productID, raw)
}

// Total returns the derived running total.
func (b *Builder) Total() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Total()
}

// Snapshot returns a copy of the current draft.
func (b *Builder) Snapshot() Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Builder) snapshotLocked() Draft {
	var client *Client
	if b.client != nil {
		c := *b.client
		client = &c
	}
	return Draft{
		Date:   b.date,
		Client: client,
		Items:  b.items.List(),
		Total:  b.items.Total(),
	}
}

// Submit builds a Sale from the current draft and posts it through the
// gateway. Preconditions are checked before any network call: a client must
// be selected and the cart must be non-empty. On success the draft resets to
// empty with today's date; on gateway failure the draft is left intact so
// the caller can retry. A Submit arriving while another is outstanding
// returns ErrSubmitInFlight without touching the gateway.
func (b *Builder) Submit(ctx context.Context) error {
	b.mu.Lock()
	if b.state == stateSubmitting {
		b.mu.Unlock()
		return ErrSubmitInFlight
	}
	if b.client == nil {
		b.mu.Unlock()
		return ErrMissingClient
	}
	if b.items.Len() == 0 {
		b.mu.Unlock()
		return ErrEmptyCart
	}
	record := Sale{
		Date:   b.date,
		Client: *b.client,
		Total:  b.items.Total(),
		Items:  b.items.List(),
	}
	b.state = stateSubmitting
	b.mu.Unlock()

	err := b.gateway.CreateSale(ctx, record)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateEditing
	if err != nil {
		b.logger.Warn("sale submission failed",
			slog.Int64("client_id", record.Client.ID),
			slog.Float64("total", record.Total),
			slog.Any("error", err))
		return fmt.Errorf("submit sale: %w", err)
	}
	b.logger.Info("sale submitted",
		slog.Int64("client_id", record.Client.ID),
		slog.Int("items", len(record.Items)),
		slog.Float64("total", record.Total))
	b.resetLocked()
	return nil
}

// Reset clears the draft back to empty with today's date. Callable at any
// time; identical to the post-submission reset.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// Cancel discards the draft and notifies the parent scope. No network call
// is made.
func (b *Builder) Cancel() {
	b.Reset()
	if b.onCancel != nil {
		b.onCancel()
	}
}

func (b *Builder) resetLocked() {
	b.client = nil
	b.items.Clear()
	b.date = Date{Time: b.now()}
}
