package sale

import "errors"

var (
	// ErrMissingClient blocks submission while no client is selected.
	ErrMissingClient = errors.New("no client selected")
	// ErrEmptyCart blocks submission of a sale without line items.
	ErrEmptyCart = errors.New("sale has no items")
	// ErrOutOfStock rejects adding a product whose known stock is zero.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrStockExceeded signals that a mutation would push a quantity past the
	// known stock figure. Informational on quantity edits (the value is
	// clamped), blocking on add.
	ErrStockExceeded = errors.New("quantity exceeds available stock")
	// ErrSubmitInFlight is returned when Submit is called while a previous
	// submission is still outstanding. The first call proceeds alone.
	ErrSubmitInFlight = errors.New("submission already in progress")
)
