package cart

import (
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shirt(id int64, size, price string) models.CartItem {
	return models.CartItem{
		ID:        id,
		Name:      "Pride Tee",
		UnitPrice: money.MustParse(price),
		Size:      size,
	}
}

func TestAddItemMergesSameLine(t *testing.T) {
	s := NewStore()

	s.AddItem(shirt(1, "M", "$20"))
	s.AddItem(shirt(1, "M", "$20"))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 2, s.TotalItems())
	assert.Equal(t, "$40.00", s.TotalPrice().Format())
}

func TestAddItemDistinctSizes(t *testing.T) {
	s := NewStore()

	s.AddItem(shirt(1, "M", "$20"))
	s.AddItem(shirt(1, "L", "$20"))

	require.Len(t, s.Items(), 2)
	assert.Equal(t, 2, s.TotalItems())
}

func TestAddItemQuantityEqualsCallCount(t *testing.T) {
	s := NewStore()

	for i := 0; i < 5; i++ {
		s.AddItem(shirt(7, "S", "$15"))
	}

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 5, s.TotalItems())
}

func TestRemoveItemExactSize(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(1, "M", "$20"))
	s.AddItem(shirt(1, "L", "$20"))

	s.RemoveItem(1, "M")

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "L", items[0].Size)
}

func TestRemoveItemCoarseMatchesAllSizes(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(1, "M", "$20"))
	s.AddItem(shirt(1, "L", "$20"))
	s.AddItem(shirt(2, "M", "$25"))

	s.RemoveItem(1, "")

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)
}

func TestRemoveItemNoMatchIsNoop(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(1, "M", "$20"))

	s.RemoveItem(99, "")

	assert.Equal(t, 1, s.TotalItems())
}

func TestUpdateQuantitySets(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(1, "M", "$20"))

	s.UpdateQuantity(1, 4, "M")

	assert.Equal(t, 4, s.TotalItems())
	assert.Equal(t, "$80.00", s.TotalPrice().Format())
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(1, "M", "$20"))
	s.AddItem(shirt(1, "L", "$20"))

	s.UpdateQuantity(1, 0, "M")

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "L", items[0].Size)
}

func TestUpdateQuantityZeroNoSizeRemovesAll(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(1, "M", "$20"))
	s.AddItem(shirt(1, "L", "$20"))

	s.UpdateQuantity(1, 0, "")

	assert.True(t, s.IsEmpty())
}

func TestTotalPriceOrderInvariant(t *testing.T) {
	a := NewStore()
	a.AddItem(shirt(1, "M", "$20"))
	a.AddItem(shirt(2, "L", "$25"))
	a.AddItem(shirt(3, "", "$9.99"))

	b := NewStore()
	b.AddItem(shirt(3, "", "$9.99"))
	b.AddItem(shirt(1, "M", "$20"))
	b.AddItem(shirt(2, "L", "$25"))

	assert.Equal(t, a.TotalPrice(), b.TotalPrice())
}

func TestInsertionOrderPreserved(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(3, "", "$10"))
	s.AddItem(shirt(1, "M", "$20"))
	s.AddItem(shirt(3, "", "$10")) // merge, must not reorder

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)
	assert.Equal(t, int64(1), items[1].ID)
}

func TestClearIdempotent(t *testing.T) {
	s := NewStore()
	s.AddItem(shirt(1, "M", "$20"))

	s.Clear()
	assert.True(t, s.IsEmpty())

	s.Clear()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.TotalItems())
	assert.True(t, s.TotalPrice().IsZero())
}
