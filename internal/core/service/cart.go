package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

var _ port.CartService = (*CartService)(nil)

// CartService keeps the cart inside the caller's session.
type CartService struct {
	sessions port.SessionStore
	products port.ProductsReader
}

func NewCartService(
	sessions port.SessionStore, products port.ProductsReader,
) CartService {
	return CartService{sessions, products}
}

func (s CartService) Cart(
	ctx context.Context, sessionID string,
) (domain.Cart, error) {
	const op = "CartService.Cart"

	sess, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return sess.Cart, nil
}

func (s CartService) AddToCart(
	ctx context.Context, sessionID string, productID int64, quantity int,
) (domain.Cart, error) {
	const op = "CartService.AddToCart"
	log := slog.With("op", op)

	sess, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	line, err := sess.Cart.Add(p, quantity)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("added to cart",
		"productID", productID,
		"requested", quantity,
		"lineQuantity", line.Quantity,
	)
	return sess.Cart, nil
}

// UpdateCartLine sets the quantity of an existing line, clamped to the
// product's current stock.
func (s CartService) UpdateCartLine(
	ctx context.Context, sessionID string, productID int64, quantity int,
) (domain.Cart, error) {
	const op = "CartService.UpdateCartLine"

	sess, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if sess.Cart.Quantity(productID) == 0 {
		err := domain.NewNotFoundError("cart line", productID)
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := sess.Cart.Update(productID, quantity, p.Stock); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return sess.Cart, nil
}

// RemoveFromCart is a no-op for a product that is not in the cart.
func (s CartService) RemoveFromCart(
	ctx context.Context, sessionID string, productID int64,
) (domain.Cart, error) {
	const op = "CartService.RemoveFromCart"

	sess, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if !sess.Cart.Remove(productID) {
		return sess.Cart, nil
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return sess.Cart, nil
}

func (s CartService) ClearCart(ctx context.Context, sessionID string) error {
	const op = "CartService.ClearCart"

	sess, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sess.Cart.Clear()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// loadSession returns a fresh session when none is stored under id.
func loadSession(
	ctx context.Context, store port.SessionStore, id string,
) (domain.Session, error) {
	if id == "" {
		return domain.Session{}, domain.NewValidationError("session", "missing id")
	}

	sess, err := store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewSession(id), nil
		}
		return domain.Session{}, err
	}
	return sess, nil
}
