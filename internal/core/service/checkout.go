package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultSubject     = "ProgramStore key"
)

var _ port.CheckoutService = (*CheckoutService)(nil)

type CheckoutConfig struct {
	// Subject of the message carrying the redeemed keys.
	Subject string

	// SendTimeout bounds the delivery attempt made right after commit.
	SendTimeout time.Duration
}

type CheckoutService struct {
	sessions   port.SessionStore
	purchases  port.PurchaseStorage
	deliveries port.DeliveryStorage
	notifier   port.Notifier
	events     port.PurchaseEventsProducer
	cfg        CheckoutConfig
}

// NewCheckoutService returns a checkout service. A nil events producer
// disables purchase events.
func NewCheckoutService(
	sessions port.SessionStore,
	purchases port.PurchaseStorage,
	deliveries port.DeliveryStorage,
	notifier port.Notifier,
	events port.PurchaseEventsProducer,
	cfg CheckoutConfig,
) CheckoutService {
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return CheckoutService{
		sessions:   sessions,
		purchases:  purchases,
		deliveries: deliveries,
		notifier:   notifier,
		events:     events,
		cfg:        cfg,
	}
}

// Checkout buys the session's cart and clears it.
func (s CheckoutService) Checkout(
	ctx context.Context, sessionID, buyerEmail string,
) (domain.Purchase, error) {
	const op = "CheckoutService.Checkout"
	log := slog.With("op", op)

	sess, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.CheckoutCart(ctx, sess.Cart, buyerEmail)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("%s: %w", op, err)
	}

	sess.Cart.Clear()
	if err := s.sessions.Save(ctx, sess); err != nil {
		log.Error("failed to clear cart after purchase",
			"purchaseID", p.ID, "err", err,
		)
	}
	return p, nil
}

// CheckoutCart commits the whole cart or nothing.
//
// A failed delivery does not fail the purchase: the returned purchase
// reports [domain.DeliveryPending] and the delivery worker retries it.
func (s CheckoutService) CheckoutCart(
	ctx context.Context, cart domain.Cart, buyerEmail string,
) (domain.Purchase, error) {
	const op = "CheckoutService.CheckoutCart"
	log := slog.With("op", op)

	if err := domain.ValidateEmail(buyerEmail); err != nil {
		return domain.Purchase{}, fmt.Errorf("%s: %w", op, err)
	}

	if cart.IsEmpty() {
		return domain.Purchase{}, fmt.Errorf("%s: %w", op, domain.ErrEmptyCart)
	}

	order := domain.NewOrder(cart, buyerEmail, s.cfg.Subject)
	purchase, delivery, err := s.purchases.CommitPurchase(ctx, order)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("purchase committed",
		"purchaseID", purchase.ID,
		"lines", len(purchase.Lines),
		"keys", len(purchase.Keys),
		"total", purchase.Total,
	)

	purchase.Delivery = s.deliver(ctx, delivery)
	s.publish(ctx, purchase)

	return purchase, nil
}

// Delivery reports the delivery state of a purchase.
func (s CheckoutService) Delivery(
	ctx context.Context, purchaseID int64,
) (domain.Delivery, error) {
	const op = "CheckoutService.Delivery"

	d, err := s.deliveries.PurchaseDelivery(ctx, purchaseID)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

func (s CheckoutService) deliver(
	ctx context.Context, d domain.Delivery,
) domain.DeliveryStatus {
	const op = "CheckoutService.deliver"
	log := slog.With("op", op, "purchaseID", d.PurchaseID, "deliveryID", d.ID)

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := s.notifier.Notify(sendCtx, d.Notification()); err != nil {
		deliveryErr := &domain.NotificationDeliveryError{
			PurchaseID: d.PurchaseID, Err: err,
		}
		log.Warn("keys allocated, delivery pending", "err", deliveryErr)

		markErr := s.deliveries.MarkDeliveryFailed(ctx, d.ID, err.Error(), false)
		if markErr != nil {
			log.Error("failed to record delivery attempt", "err", markErr)
		}
		return domain.DeliveryPending
	}

	if err := s.deliveries.MarkDeliverySent(ctx, d.ID); err != nil {
		log.Error("failed to mark delivery sent", "err", err)
	}
	return domain.DeliverySent
}

func (s CheckoutService) publish(ctx context.Context, p domain.Purchase) {
	const op = "CheckoutService.publish"

	if s.events == nil {
		return
	}

	if err := s.events.ProducePurchase(ctx, p); err != nil {
		slog.Warn("failed to publish purchase event",
			"op", op, "purchaseID", p.ID, "err", err,
		)
	}
}
