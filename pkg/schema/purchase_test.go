package schema

import (
	"testing"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseCompletedV1(t *testing.T) {
	var s avro.Schema
	require.NotPanics(t, func() {
		s = PurchaseCompletedV1Avro()
	})

	t.Run("Regular", func(t *testing.T) {
		v := PurchaseCompletedV1{
			PurchaseID: 7,
			Email:      "buyer@example.com",
			Items: []PurchaseItemV1{
				{ProductID: 1, ProductName: "P", Quantity: 2, UnitPrice: 500},
				{ProductID: 3, ProductName: "Q", Quantity: 1, UnitPrice: 900},
			},
			Total:     1900,
			Delivery:  "sent",
			CreatedAt: time.UnixMilli(1_700_000_000_123).UTC(),
		}

		data, err := avro.Marshal(s, v)
		require.NoError(t, err)

		var got PurchaseCompletedV1
		require.NoError(t, avro.Unmarshal(s, data, &got))

		assert.Equal(t, v.PurchaseID, got.PurchaseID)
		assert.Equal(t, v.Email, got.Email)
		assert.Equal(t, v.Items, got.Items)
		assert.Equal(t, v.Total, got.Total)
		assert.Equal(t, v.Delivery, got.Delivery)
		assert.True(t, v.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("NilItems", func(t *testing.T) {
		v := PurchaseCompletedV1{PurchaseID: 1, CreatedAt: time.UnixMilli(0)}

		data, err := avro.Marshal(s, v)
		require.NoError(t, err)

		var got PurchaseCompletedV1
		require.NoError(t, avro.Unmarshal(s, data, &got))
		assert.Empty(t, got.Items)
	})
}
