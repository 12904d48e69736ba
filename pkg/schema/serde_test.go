package schema_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/keyshop/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSchemaIdentifier struct {
	mock.Mock
}

func (c *MockSchemaIdentifier) DetermineID(
	ctx context.Context, subject string, avroSchemaText string,
) (id int, err error) {
	args := c.Called(ctx, subject, avroSchemaText)
	return args.Int(0), args.Error(1)
}

func TestSerdePurchaseCompletedV1(t *testing.T) {
	const subject = "purchases-value"

	t.Run("NoOpts", func(t *testing.T) {
		_, err := schema.NewSerdePurchaseCompletedV1(t.Context())
		require.ErrorIs(t, err, schema.ErrTooFewOpts)
	})

	t.Run("OneOpt", func(t *testing.T) {
		_, err := schema.NewSerdePurchaseCompletedV1(
			t.Context(),
			schema.SchemaIdentifierOpt(new(MockSchemaIdentifier)),
		)
		require.ErrorIs(t, err, schema.ErrTooFewOpts)
	})

	t.Run("EmptySubject", func(t *testing.T) {
		_, err := schema.NewSerdePurchaseCompletedV1(
			t.Context(),
			schema.SubjectOpt(""),
			schema.SchemaIdentifierOpt(new(MockSchemaIdentifier)),
		)
		require.Error(t, err)
	})

	t.Run("RegistryError", func(t *testing.T) {
		si := new(MockSchemaIdentifier)
		registryErr := errors.New("registry unavailable")
		si.On("DetermineID", t.Context(), subject, schema.PurchaseCompletedSchemaTextV1).
			Return(0, registryErr)

		_, err := schema.NewSerdePurchaseCompletedV1(
			t.Context(),
			schema.SubjectOpt(subject),
			schema.SchemaIdentifierOpt(si),
		)
		require.ErrorIs(t, err, registryErr)
	})

	t.Run("EncodeDecode", func(t *testing.T) {
		si := new(MockSchemaIdentifier)
		si.On("DetermineID", t.Context(), subject, schema.PurchaseCompletedSchemaTextV1).
			Return(1, nil)

		serde, err := schema.NewSerdePurchaseCompletedV1(
			t.Context(),
			schema.SubjectOpt(subject),
			schema.SchemaIdentifierOpt(si),
		)
		require.NoError(t, err)
		si.AssertExpectations(t)

		v := schema.PurchaseCompletedV1{
			PurchaseID: 42,
			Email:      "buyer@example.com",
			Items: []schema.PurchaseItemV1{
				{ProductID: 1, ProductName: "P", Quantity: 3, UnitPrice: 100},
			},
			Total:     300,
			Delivery:  "pending",
			CreatedAt: time.UnixMilli(1_700_000_000_000),
		}

		data, err := serde.Encode(v)
		require.NoError(t, err)
		// Confluent wire format: magic byte and 4-byte schema id.
		require.Greater(t, len(data), 5)
		assert.Equal(t, byte(0), data[0])

		var got schema.PurchaseCompletedV1
		require.NoError(t, serde.Decode(data, &got))
		assert.Equal(t, v.PurchaseID, got.PurchaseID)
		assert.Equal(t, v.Items, got.Items)
		assert.True(t, v.CreatedAt.Equal(got.CreatedAt))
	})
}
