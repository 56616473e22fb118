package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecogrove/market/internal/store"
)

func newTestCart(t *testing.T) *Service {
	t.Helper()

	return New(store.NewMemory())
}

func addUnits(t *testing.T, svc *Service, productID, name, price string, n int) {
	t.Helper()

	p := decimal.RequireFromString(price)

	for range n {
		_, err := svc.AddUnit(t.Context(), productID, name, p)
		require.NoError(t, err)
	}
}

func line(t *testing.T, sum Summary, productID string) Line {
	t.Helper()

	for _, l := range sum.Lines {
		if l.ProductID == productID {
			return l
		}
	}

	t.Fatalf("no line for product %s", productID)

	return Line{}
}

func TestAddUnitAndAggregate_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)
	addUnits(t, svc, "A", "Worm Castings", "10.00", 3)

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)

	l := line(t, sum, "A")
	assert.Equal(t, 3, l.Quantity)
	assert.Equal(t, "Worm Castings", l.Name)
	assert.True(t, l.LineTotal.Equal(decimal.RequireFromString("30.00")), "got %s", l.LineTotal)
	assert.True(t, sum.GrandTotal.Equal(decimal.RequireFromString("30.00")))

	require.NoError(t, svc.SetQuantity(t.Context(), "A", 1))

	sum, err = svc.Aggregate(t.Context())
	require.NoError(t, err)
	l = line(t, sum, "A")
	assert.Equal(t, 1, l.Quantity)
	assert.True(t, l.LineTotal.Equal(decimal.RequireFromString("10.00")))

	// Invalid quantity is rejected and the persisted state is untouched.
	err = svc.SetQuantity(t.Context(), "A", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	sum, err = svc.Aggregate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, line(t, sum, "A").Quantity)
}

func TestAddUnit_ReturnsTotalUnitCount(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)

	n, err := svc.AddUnit(t.Context(), "A", "Guano", decimal.RequireFromString("24.99"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.AddUnit(t.Context(), "B", "Compost", decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := svc.UnitCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAggregate_EmptyCart(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)
	assert.Empty(t, sum.Lines)
	assert.True(t, sum.GrandTotal.IsZero())
}

func TestAggregate_PreservesFirstSeenOrder(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)
	addUnits(t, svc, "B", "Compost", "12.50", 1)
	addUnits(t, svc, "A", "Guano", "24.99", 2)
	addUnits(t, svc, "B", "Compost", "12.50", 1)

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)
	require.Len(t, sum.Lines, 2)

	assert.Equal(t, "B", sum.Lines[0].ProductID)
	assert.Equal(t, 2, sum.Lines[0].Quantity)
	assert.Equal(t, "A", sum.Lines[1].ProductID)
	assert.Equal(t, 2, sum.Lines[1].Quantity)
	assert.True(t, sum.GrandTotal.Equal(decimal.RequireFromString("74.98")), "got %s", sum.GrandTotal)
}

func TestRemoveAllUnits(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)
	addUnits(t, svc, "A", "Guano", "24.99", 3)
	addUnits(t, svc, "B", "Compost", "12.50", 1)

	require.NoError(t, svc.RemoveAllUnits(t.Context(), "A"))

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)
	assert.Equal(t, "B", sum.Lines[0].ProductID)

	// Removing an absent product changes nothing.
	require.NoError(t, svc.RemoveAllUnits(t.Context(), "ghost"))

	count, err := svc.UnitCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetQuantity_UnknownProductIsNoop(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)
	addUnits(t, svc, "A", "Guano", "24.99", 1)

	require.NoError(t, svc.SetQuantity(t.Context(), "ghost", 5))

	count, err := svc.UnitCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetQuantity_ClonesTemplateEntry(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)
	addUnits(t, svc, "A", "Guano", "24.99", 2)

	require.NoError(t, svc.SetQuantity(t.Context(), "A", 5))

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)

	l := line(t, sum, "A")
	assert.Equal(t, 5, l.Quantity)
	assert.Equal(t, "Guano", l.Name)
	assert.True(t, l.UnitPrice.Equal(decimal.RequireFromString("24.99")))
}

func TestIncrementDecrement(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)

	// Increment with no existing entry cannot invent a price: no-op.
	require.NoError(t, svc.IncrementUnit(t.Context(), "A"))

	count, err := svc.UnitCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	addUnits(t, svc, "A", "Guano", "24.99", 1)

	require.NoError(t, svc.IncrementUnit(t.Context(), "A"))

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, line(t, sum, "A").Quantity)

	require.NoError(t, svc.DecrementUnit(t.Context(), "A"))
	require.NoError(t, svc.DecrementUnit(t.Context(), "A"))

	// Decrementing past zero is a no-op, never an error.
	require.NoError(t, svc.DecrementUnit(t.Context(), "A"))

	count, err = svc.UnitCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestClear(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)
	addUnits(t, svc, "A", "Guano", "24.99", 3)

	require.NoError(t, svc.Clear(t.Context()))

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)
	assert.Empty(t, sum.Lines)
	assert.True(t, sum.GrandTotal.IsZero())
}

func TestOnChange_FiresAfterMutations(t *testing.T) {
	t.Parallel()

	svc := newTestCart(t)

	var fired int

	svc.OnChange(func() { fired++ })

	_, err := svc.AddUnit(t.Context(), "A", "Guano", decimal.RequireFromString("24.99"))
	require.NoError(t, err)
	require.NoError(t, svc.IncrementUnit(t.Context(), "A"))
	require.NoError(t, svc.SetQuantity(t.Context(), "A", 4))
	require.NoError(t, svc.DecrementUnit(t.Context(), "A"))
	require.NoError(t, svc.RemoveAllUnits(t.Context(), "A"))

	assert.Equal(t, 5, fired)

	// Rejected input does not notify.
	err = svc.SetQuantity(t.Context(), "A", -1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 5, fired)
}

func TestCorruptCartDocumentTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	require.NoError(t, mem.Save(t.Context(), store.KeyCart, []byte(`{"oops":`)))

	svc := New(mem)

	sum, err := svc.Aggregate(t.Context())
	require.NoError(t, err)
	assert.Empty(t, sum.Lines)
}
