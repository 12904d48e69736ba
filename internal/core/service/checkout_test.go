package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const buyer = "buyer@example.com"

type checkoutDeps struct {
	sessions   *memSessions
	purchases  *MockPurchases
	deliveries *MockDeliveries
	notifier   *MockNotifier
	events     *MockEvents
}

func newCheckoutDeps() checkoutDeps {
	return checkoutDeps{
		sessions:   newMemSessions(),
		purchases:  new(MockPurchases),
		deliveries: new(MockDeliveries),
		notifier:   new(MockNotifier),
		events:     new(MockEvents),
	}
}

func (d checkoutDeps) service(cfg CheckoutConfig) CheckoutService {
	return NewCheckoutService(
		d.sessions, d.purchases, d.deliveries, d.notifier, d.events, cfg,
	)
}

// fillCart stores a session holding two units of product 1.
func (d checkoutDeps) fillCart(t *testing.T) {
	t.Helper()
	sess := domain.NewSession(sid)
	_, err := sess.Cart.Add(domain.Product{
		ID: 1, Name: "Office", Price: 700, Stock: 5,
	}, 2)
	require.NoError(t, err)
	require.NoError(t, d.sessions.Save(t.Context(), sess))
}

func committed() (domain.Purchase, domain.Delivery) {
	p := domain.Purchase{
		ID:    31,
		Email: buyer,
		Lines: []domain.PurchaseLine{
			{ProductID: 1, ProductName: "Office", Quantity: 2, UnitPrice: 700},
		},
		Keys: []domain.RedeemedKey{
			{ProductID: 1, ProductName: "Office", Value: "K1"},
			{ProductID: 1, ProductName: "Office", Value: "K2"},
		},
		Total:    1400,
		Delivery: domain.DeliveryPending,
	}
	d := domain.Delivery{
		ID: 5, PurchaseID: 31, Recipient: buyer,
		Subject: "Your keys", Body: "K1 Office\nK2 Office",
		Status: domain.DeliveryPending,
	}
	return p, d
}

func orderMatcher(t *testing.T) any {
	return mock.MatchedBy(func(o domain.Order) bool {
		return o.Email == buyer &&
			o.Subject == "Your keys" &&
			len(o.Lines) == 1 &&
			o.Lines[0].Quantity == 2 &&
			o.Total() == 1400
	})
}

func TestCheckoutService(t *testing.T) {
	cfg := CheckoutConfig{Subject: "Your keys", SendTimeout: time.Second}

	t.Run("DeliversAndClearsCart", func(t *testing.T) {
		d := newCheckoutDeps()
		d.fillCart(t)
		p, dl := committed()

		d.purchases.On("CommitPurchase", mock.Anything, orderMatcher(t)).
			Return(p, dl, nil).Once()
		d.notifier.On("Notify", mock.Anything, dl.Notification()).
			Return(nil).Once()
		d.deliveries.On("MarkDeliverySent", mock.Anything, int64(5)).
			Return(nil).Once()
		d.events.On("ProducePurchase", mock.Anything, mock.MatchedBy(
			func(p domain.Purchase) bool { return p.ID == 31 },
		)).Return(nil).Once()

		got, err := d.service(cfg).Checkout(t.Context(), sid, buyer)
		require.NoError(t, err)
		assert.Equal(t, domain.DeliverySent, got.Delivery)
		assert.Len(t, got.Keys, 2)

		sess, err := d.sessions.Load(t.Context(), sid)
		require.NoError(t, err)
		assert.True(t, sess.Cart.IsEmpty())

		d.purchases.AssertExpectations(t)
		d.notifier.AssertExpectations(t)
		d.deliveries.AssertExpectations(t)
		d.events.AssertExpectations(t)
	})

	t.Run("NotifierFailureLeavesDeliveryPending", func(t *testing.T) {
		d := newCheckoutDeps()
		d.fillCart(t)
		p, dl := committed()

		d.purchases.On("CommitPurchase", mock.Anything, mock.Anything).
			Return(p, dl, nil).Once()
		d.notifier.On("Notify", mock.Anything, mock.Anything).
			Return(errors.New("smtp refused")).Once()
		d.deliveries.On("MarkDeliveryFailed",
			mock.Anything, int64(5), "smtp refused", false,
		).Return(nil).Once()
		d.events.On("ProducePurchase", mock.Anything, mock.Anything).
			Return(nil).Once()

		got, err := d.service(cfg).Checkout(t.Context(), sid, buyer)
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryPending, got.Delivery)

		sess, err := d.sessions.Load(t.Context(), sid)
		require.NoError(t, err)
		assert.True(t, sess.Cart.IsEmpty())

		d.deliveries.AssertExpectations(t)
		d.deliveries.AssertNotCalled(t, "MarkDeliverySent", mock.Anything, mock.Anything)
	})

	t.Run("SlowNotifierTimesOut", func(t *testing.T) {
		d := newCheckoutDeps()
		d.fillCart(t)
		p, dl := committed()

		d.purchases.On("CommitPurchase", mock.Anything, mock.Anything).
			Return(p, dl, nil).Once()
		d.notifier.On("Notify", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(context.DeadlineExceeded).Once()
		d.deliveries.On("MarkDeliveryFailed",
			mock.Anything, int64(5), mock.Anything, false,
		).Return(nil).Once()
		d.events.On("ProducePurchase", mock.Anything, mock.Anything).
			Return(nil).Once()

		s := d.service(CheckoutConfig{SendTimeout: 20 * time.Millisecond})
		got, err := s.Checkout(t.Context(), sid, buyer)
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryPending, got.Delivery)
	})

	t.Run("ShortageKeepsCart", func(t *testing.T) {
		d := newCheckoutDeps()
		d.fillCart(t)

		shortage := &domain.InsufficientKeysError{
			ProductID: 1, ProductName: "Office", Requested: 2, Available: 1,
		}
		d.purchases.On("CommitPurchase", mock.Anything, mock.Anything).
			Return(domain.Purchase{}, domain.Delivery{}, shortage).Once()

		_, err := d.service(cfg).Checkout(t.Context(), sid, buyer)
		require.ErrorIs(t, err, domain.ErrInsufficientKeys)

		sess, err := d.sessions.Load(t.Context(), sid)
		require.NoError(t, err)
		assert.Equal(t, 2, sess.Cart.Quantity(1))

		d.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
		d.events.AssertNotCalled(t, "ProducePurchase", mock.Anything, mock.Anything)
	})

	t.Run("EmptyCart", func(t *testing.T) {
		d := newCheckoutDeps()

		_, err := d.service(cfg).Checkout(t.Context(), sid, buyer)
		require.ErrorIs(t, err, domain.ErrEmptyCart)
		d.purchases.AssertNotCalled(t, "CommitPurchase", mock.Anything, mock.Anything)
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		d := newCheckoutDeps()
		d.fillCart(t)

		_, err := d.service(cfg).Checkout(t.Context(), sid, "not-an-email")
		require.ErrorIs(t, err, domain.ErrValidation)
		d.purchases.AssertNotCalled(t, "CommitPurchase", mock.Anything, mock.Anything)
	})

	t.Run("EventFailureIgnored", func(t *testing.T) {
		d := newCheckoutDeps()
		d.fillCart(t)
		p, dl := committed()

		d.purchases.On("CommitPurchase", mock.Anything, mock.Anything).
			Return(p, dl, nil).Once()
		d.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()
		d.deliveries.On("MarkDeliverySent", mock.Anything, int64(5)).
			Return(nil).Once()
		d.events.On("ProducePurchase", mock.Anything, mock.Anything).
			Return(errors.New("broker down")).Once()

		got, err := d.service(cfg).Checkout(t.Context(), sid, buyer)
		require.NoError(t, err)
		assert.Equal(t, int64(31), got.ID)
	})

	t.Run("NoEventsProducer", func(t *testing.T) {
		d := newCheckoutDeps()
		d.fillCart(t)
		p, dl := committed()

		d.purchases.On("CommitPurchase", mock.Anything, mock.Anything).
			Return(p, dl, nil).Once()
		d.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()
		d.deliveries.On("MarkDeliverySent", mock.Anything, int64(5)).
			Return(nil).Once()

		s := NewCheckoutService(
			d.sessions, d.purchases, d.deliveries, d.notifier, nil, cfg,
		)
		_, err := s.Checkout(t.Context(), sid, buyer)
		require.NoError(t, err)
	})

	t.Run("DeliveryStatus", func(t *testing.T) {
		d := newCheckoutDeps()
		_, dl := committed()
		d.deliveries.On("PurchaseDelivery", mock.Anything, int64(31)).
			Return(dl, nil).Once()

		got, err := d.service(cfg).Delivery(t.Context(), 31)
		require.NoError(t, err)
		assert.Equal(t, dl, got)
	})
}

func TestNewCheckoutServiceDefaults(t *testing.T) {
	s := NewCheckoutService(nil, nil, nil, nil, nil, CheckoutConfig{})
	assert.Equal(t, defaultSubject, s.cfg.Subject)
	assert.Equal(t, defaultSendTimeout, s.cfg.SendTimeout)
}
