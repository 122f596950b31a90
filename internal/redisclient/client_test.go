package redisclient

import (
	"context"
	"testing"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineField(t *testing.T) {
	assert.Equal(t, "1|M", lineField(1, "M"))
	assert.Equal(t, "3|", lineField(3, ""))
}

func TestAddLineMergesBySize(t *testing.T) {
	// Integration test - requires Redis
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	session := "sess_addline"
	require.NoError(t, client.DeleteCart(ctx, session))

	tee := models.CartItem{ID: 1, Name: "Pride Tee", UnitPrice: money.MustParse("$20"), Size: "M"}
	pin := models.CartItem{ID: 3, Name: "Flag Pin", UnitPrice: money.MustParse("$5")}

	// Same (id, size) twice merges into one line; a distinct line appends.
	require.NoError(t, client.AddLine(ctx, session, tee, time.Hour))
	require.NoError(t, client.AddLine(ctx, session, pin, time.Hour))
	require.NoError(t, client.AddLine(ctx, session, tee, time.Hour))

	items, err := client.LoadCart(ctx, session)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, int64(3), items[1].ID)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestSaveCartPreservesOrder(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	session := "sess_order"

	saved := []models.CartItem{
		{ID: 2, Name: "Rainbow Hoodie", UnitPrice: money.MustParse("$45"), Quantity: 1, Size: "L"},
		{ID: 1, Name: "Pride Tee", UnitPrice: money.MustParse("$20"), Quantity: 3, Size: "M"},
		{ID: 3, Name: "Flag Pin", UnitPrice: money.MustParse("$5"), Quantity: 2},
	}
	require.NoError(t, client.SaveCart(ctx, session, saved, time.Hour))

	items, err := client.LoadCart(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, saved, items)

	// An empty save clears the key entirely.
	require.NoError(t, client.SaveCart(ctx, session, nil, time.Hour))
	items, err = client.LoadCart(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, items)
}
