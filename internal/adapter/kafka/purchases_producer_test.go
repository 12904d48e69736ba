package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type MockProducerClient struct {
	mock.Mock
}

func (c *MockProducerClient) ProduceSync(
	ctx context.Context, rs ...*kgo.Record,
) kgo.ProduceResults {
	args := c.Called(ctx, rs)
	return args.Get(0).(kgo.ProduceResults)
}

func (c *MockProducerClient) Close() {
	c.Called()
}

type MockEncoder struct {
	mock.Mock
}

func (e *MockEncoder) Encode(v any) ([]byte, error) {
	args := e.Called(v)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

var purchase = domain.Purchase{
	ID:    17,
	Email: "buyer@example.com",
	Lines: []domain.PurchaseLine{
		{ProductID: 1, ProductName: "P", Quantity: 2, UnitPrice: 500},
	},
	Keys: []domain.RedeemedKey{
		{ProductID: 1, ProductName: "P", Value: "K1"},
		{ProductID: 1, ProductName: "P", Value: "K2"},
	},
	Total:     1000,
	Delivery:  domain.DeliverySent,
	CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
}

func TestNewPurchasesProducer(t *testing.T) {
	t.Run("TooFewOpts", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = NewPurchasesProducer(ProducerEncoderOpt(new(MockEncoder)))
		})
	})

	t.Run("NilEncoder", func(t *testing.T) {
		_, err := NewPurchasesProducer(
			producerClientOpt(new(MockProducerClient)),
			ProducerEncoderOpt(nil),
		)
		require.Error(t, err)
	})
}

func TestPurchasesProducerProducePurchase(t *testing.T) {
	t.Run("KeyedByPurchaseID", func(t *testing.T) {
		cl := new(MockProducerClient)
		enc := new(MockEncoder)

		enc.On("Encode", mock.MatchedBy(func(v schema.PurchaseCompletedV1) bool {
			return v.PurchaseID == 17 && v.Total == 1000 &&
				v.Delivery == "sent" && len(v.Items) == 1 &&
				v.Items[0].Quantity == 2
		})).Return([]byte("payload"), nil).Once()

		var produced []*kgo.Record
		cl.On("ProduceSync", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				produced = args.Get(1).([]*kgo.Record)
			}).
			Return(kgo.ProduceResults{{}}).Once()

		p, err := NewPurchasesProducer(
			producerClientOpt(cl), ProducerEncoderOpt(enc),
		)
		require.NoError(t, err)

		require.NoError(t, p.ProducePurchase(t.Context(), purchase))
		cl.AssertExpectations(t)
		enc.AssertExpectations(t)

		require.Len(t, produced, 1)
		assert.Equal(t, []byte("17"), produced[0].Key)
		assert.Equal(t, []byte("payload"), produced[0].Value)
	})

	t.Run("EncodeError", func(t *testing.T) {
		cl := new(MockProducerClient)
		enc := new(MockEncoder)
		encErr := errors.New("encode failed")
		enc.On("Encode", mock.Anything).Return(nil, encErr)

		p, err := NewPurchasesProducer(
			producerClientOpt(cl), ProducerEncoderOpt(enc),
		)
		require.NoError(t, err)

		require.ErrorIs(t, p.ProducePurchase(t.Context(), purchase), encErr)
		cl.AssertNotCalled(t, "ProduceSync", mock.Anything, mock.Anything)
	})

	t.Run("BrokerError", func(t *testing.T) {
		cl := new(MockProducerClient)
		enc := new(MockEncoder)
		brokerErr := errors.New("not enough replicas")
		enc.On("Encode", mock.Anything).Return([]byte("payload"), nil)
		cl.On("ProduceSync", mock.Anything, mock.Anything).
			Return(kgo.ProduceResults{{Err: brokerErr}})

		p, err := NewPurchasesProducer(
			producerClientOpt(cl), ProducerEncoderOpt(enc),
		)
		require.NoError(t, err)

		require.ErrorIs(t, p.ProducePurchase(t.Context(), purchase), brokerErr)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		p, err := NewPurchasesProducer(
			producerClientOpt(new(MockProducerClient)),
			ProducerEncoderOpt(new(MockEncoder)),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		require.ErrorIs(t, p.ProducePurchase(ctx, purchase), context.Canceled)
	})
}

func TestToSchemaOmitsKeys(t *testing.T) {
	s := toSchema(purchase)
	assert.Equal(t, "buyer@example.com", s.Email)
	assert.True(t, purchase.CreatedAt.Equal(s.CreatedAt))
	assert.Equal(t, []schema.PurchaseItemV1{
		{ProductID: 1, ProductName: "P", Quantity: 2, UnitPrice: 500},
	}, s.Items)
}

func TestProducerCloses(t *testing.T) {
	cl := new(MockProducerClient)
	cl.On("Close").Once()

	p, err := NewPurchasesProducer(
		producerClientOpt(cl), ProducerEncoderOpt(new(MockEncoder)),
	)
	require.NoError(t, err)
	p.Close()
	cl.AssertExpectations(t)
}
