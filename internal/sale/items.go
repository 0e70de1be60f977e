package sale

import (
	"math"
	"strconv"
	"strings"
)

// Items is the ordered line-item collection of a draft. It enforces the
// stock invariants: a quantity never goes negative and, when the product's
// stock is known, never above it. Insertion order is preserved for display.
// The zero value is ready to use. Items is not safe for concurrent use; the
// Builder serializes access.
type Items struct {
	list []LineItem
}

// Add merges the product into an existing line (match by product id,
// quantity +1) or appends a new line with quantity 1 and prices copied from
// the product. Returns ErrStockExceeded when the merge would pass the known
// stock, ErrOutOfStock when a new product has known stock zero; state is
// unchanged on either. On success the updated list is returned.
func (it *Items) Add(p Product) ([]LineItem, error) {
	if i := it.index(p.ID); i >= 0 {
		line := &it.list[i]
		next := line.Quantity + 1
		if stock := line.Product.Stock; stock != nil && next > *stock {
			return nil, ErrStockExceeded
		}
		line.Quantity = next
		return it.List(), nil
	}
	if p.Stock != nil && *p.Stock == 0 {
		return nil, ErrOutOfStock
	}
	it.list = append(it.list, LineItem{
		Product:   p,
		UnitPrice: p.Price,
		UnitCost:  p.CostPrice,
		Quantity:  1,
	})
	return it.List(), nil
}

// Remove drops the line referencing productID. Removing an absent product is
// a no-op, not an error.
func (it *Items) Remove(productID int64) {
	i := it.index(productID)
	if i < 0 {
		return
	}
	it.list = append(it.list[:i], it.list[i+1:]...)
}

// UpdateUnitPrice sets the line's unit price to max(0, parsed raw value);
// unparseable input coerces to 0. Reports whether the line exists.
func (it *Items) UpdateUnitPrice(productID int64, raw string) (float64, bool) {
	i := it.index(productID)
	if i < 0 {
		return 0, false
	}
	price := parseAmount(raw)
	it.list[i].UnitPrice = price
	return price, true
}

// UpdateQuantity sets the line's quantity to max(0, parsed raw value),
// clamped to the product's stock when known. clamped reports that the
// requested value exceeded stock; the edit still applies at the clamp.
func (it *Items) UpdateQuantity(productID int64, raw string) (applied float64, clamped, ok bool) {
	i := it.index(productID)
	if i < 0 {
		return 0, false, false
	}
	qty := parseAmount(raw)
	if stock := it.list[i].Product.Stock; stock != nil && qty > *stock {
		qty = *stock
		clamped = true
	}
	it.list[i].Quantity = qty
	return qty, clamped, true
}

// Total is the derived running total: sum of quantity times unit price over
// all lines. It is recomputed on every read and never stored.
func (it *Items) Total() float64 {
	var total float64
	for _, line := range it.list {
		total += line.Subtotal()
	}
	return total
}

// Len returns the number of lines.
func (it *Items) Len() int {
	return len(it.list)
}

// List returns a copy of the lines in insertion order.
func (it *Items) List() []LineItem {
	out := make([]LineItem, len(it.list))
	copy(out, it.list)
	return out
}

// Clear drops all lines.
func (it *Items) Clear() {
	it.list = nil
}

func (it *Items) index(productID int64) int {
	for i, line := range it.list {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

// parseAmount turns raw user input into a non-negative amount. Anything that
// does not parse as a finite number becomes 0, matching the form behavior of
// the screens this feeds.
func parseAmount(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, v)
}
