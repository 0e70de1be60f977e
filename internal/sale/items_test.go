package sale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stock(v float64) *float64 {
	return &v
}

func testProduct(id int64, price float64, stockQty *float64) Product {
	return Product{
		ID:    id,
		Name:  "Produto Teste",
		Price: price,
		Stock: stockQty,
	}
}

func TestAddKeepsTotalConsistent(t *testing.T) {
	items := &Items{}

	products := []Product{
		testProduct(1, 10.0, stock(5)),
		testProduct(2, 3.5, nil),
		testProduct(3, 0.99, stock(100)),
	}

	var want float64
	for i, p := range products {
		list, err := items.Add(p)
		require.NoError(t, err)
		want += p.Price
		assert.InDelta(t, want, items.Total(), 1e-9)
		assert.Len(t, list, i+1)
	}
}

func TestAddMergesSameProduct(t *testing.T) {
	items := &Items{}
	p := testProduct(1, 10.0, stock(5))

	_, err := items.Add(p)
	require.NoError(t, err)
	list, err := items.Add(p)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, 2.0, list[0].Quantity)
	assert.InDelta(t, 20.0, items.Total(), 1e-9)
}

func TestAddRejectsWhenMergeWouldExceedStock(t *testing.T) {
	items := &Items{}
	p := testProduct(1, 10.0, stock(1))

	_, err := items.Add(p)
	require.NoError(t, err)

	_, err = items.Add(p)
	require.ErrorIs(t, err, ErrStockExceeded)

	list := items.List()
	require.Len(t, list, 1)
	assert.Equal(t, 1.0, list[0].Quantity)
	assert.InDelta(t, 10.0, items.Total(), 1e-9)
}

func TestAddRejectsOutOfStockProduct(t *testing.T) {
	items := &Items{}

	_, err := items.Add(testProduct(1, 10.0, stock(0)))
	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Zero(t, items.Len())
}

func TestAddUnknownStockIsUnbounded(t *testing.T) {
	items := &Items{}
	p := testProduct(1, 2.0, nil)

	for i := 0; i < 50; i++ {
		_, err := items.Add(p)
		require.NoError(t, err)
	}
	list := items.List()
	require.Len(t, list, 1)
	assert.Equal(t, 50.0, list[0].Quantity)
}

func TestAddCopiesPricesAtAddTime(t *testing.T) {
	items := &Items{}
	cost := 4.2
	p := testProduct(1, 10.0, stock(5))
	p.CostPrice = &cost

	list, err := items.Add(p)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, 10.0, list[0].UnitPrice)
	require.NotNil(t, list[0].UnitCost)
	assert.Equal(t, 4.2, *list[0].UnitCost)
}

func TestUpdateQuantityClampsToStock(t *testing.T) {
	items := &Items{}
	_, err := items.Add(testProduct(1, 10.0, stock(5)))
	require.NoError(t, err)

	applied, clamped, ok := items.UpdateQuantity(1, "10")
	require.True(t, ok)
	assert.True(t, clamped)
	assert.Equal(t, 5.0, applied)
	assert.InDelta(t, 50.0, items.Total(), 1e-9)
}

func TestUpdateQuantityCoercesInvalidInput(t *testing.T) {
	items := &Items{}
	_, err := items.Add(testProduct(1, 10.0, stock(5)))
	require.NoError(t, err)

	for _, raw := range []string{"abc", "", "-3", "NaN"} {
		applied, clamped, ok := items.UpdateQuantity(1, raw)
		require.True(t, ok, "input %q", raw)
		assert.False(t, clamped, "input %q", raw)
		assert.Equal(t, 0.0, applied, "input %q", raw)
	}
	assert.Equal(t, 1, items.Len(), "zero quantity keeps the row")
}

func TestUpdateUnitPrice(t *testing.T) {
	items := &Items{}
	_, err := items.Add(testProduct(1, 10.0, nil))
	require.NoError(t, err)

	price, ok := items.UpdateUnitPrice(1, "12.50")
	require.True(t, ok)
	assert.Equal(t, 12.5, price)
	assert.InDelta(t, 12.5, items.Total(), 1e-9)

	price, ok = items.UpdateUnitPrice(1, "abc")
	require.True(t, ok)
	assert.Equal(t, 0.0, price)

	price, ok = items.UpdateUnitPrice(1, "-4")
	require.True(t, ok)
	assert.Equal(t, 0.0, price)

	_, ok = items.UpdateUnitPrice(99, "1")
	assert.False(t, ok)
}

func TestRemoveMissingProductIsNoop(t *testing.T) {
	items := &Items{}
	_, err := items.Add(testProduct(1, 10.0, nil))
	require.NoError(t, err)

	items.Remove(99)
	assert.Equal(t, 1, items.Len())
}

func TestRemovePreservesOrder(t *testing.T) {
	items := &Items{}
	for id := int64(1); id <= 3; id++ {
		_, err := items.Add(testProduct(id, float64(id), nil))
		require.NoError(t, err)
	}

	items.Remove(2)
	list := items.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].Product.ID)
	assert.Equal(t, int64(3), list[1].Product.ID)
}

func TestSaleCompositionScenario(t *testing.T) {
	// stock=5: three sequential adds, a clamped quantity edit, then removal.
	items := &Items{}
	p := testProduct(7, 19.9, stock(5))

	for i := 0; i < 3; i++ {
		_, err := items.Add(p)
		require.NoError(t, err)
	}
	list := items.List()
	require.Len(t, list, 1)
	assert.Equal(t, 3.0, list[0].Quantity)
	assert.InDelta(t, 3*19.9, items.Total(), 1e-9)

	applied, clamped, ok := items.UpdateQuantity(7, "10")
	require.True(t, ok)
	assert.True(t, clamped)
	assert.Equal(t, 5.0, applied)

	items.Remove(7)
	assert.Zero(t, items.Len())
	assert.Zero(t, items.Total())
}
