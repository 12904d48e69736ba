package storage

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

var (
	_ port.PurchaseStorage = (*PurchasesRepository)(nil)
	_ port.DeliveryStorage = (*PurchasesRepository)(nil)
)

type PurchasesRepository struct {
	db SQLDB
}

func NewPurchasesRepository(db SQLDB) PurchasesRepository {
	return PurchasesRepository{db}
}

// CommitPurchase redeems keys for every order line in one transaction.
//
// All lines are validated against the key pools before anything is
// deleted; a single shortfall rolls the whole order back. Product rows
// are locked in ascending id order so concurrent orders cannot deadlock.
func (r PurchasesRepository) CommitPurchase(
	ctx context.Context, order domain.Order,
) (domain.Purchase, domain.Delivery, error) {
	const op = "PurchasesRepository.CommitPurchase"
	log := slog.With("op", op)

	lines := slices.Clone(order.Lines)
	slices.SortFunc(lines, func(a, b domain.PurchaseLine) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	var (
		purchase domain.Purchase
		delivery domain.Delivery
	)

	err := r.db.inTx(ctx, op, func(tx *sql.Tx) error {
		locked, err := r.validate(ctx, tx, lines)
		if err != nil {
			return err
		}

		keys, err := r.redeem(ctx, tx, order.Lines, locked)
		if err != nil {
			return err
		}

		purchase, err = r.insertPurchase(ctx, tx, order, keys)
		if err != nil {
			return err
		}

		delivery, err = r.insertDelivery(ctx, tx, order, purchase)
		return err
	})
	if err != nil {
		return domain.Purchase{}, domain.Delivery{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("purchase stored", "purchaseID", purchase.ID)
	return purchase, delivery, nil
}

// validate locks every product and collects all shortfalls.
func (r PurchasesRepository) validate(
	ctx context.Context, tx *sql.Tx, lines []domain.PurchaseLine,
) (map[int64]lockedProduct, error) {
	locked := make(map[int64]lockedProduct, len(lines))
	var shortages []error

	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, domain.NewValidationError("quantity", "must be positive")
		}

		p, err := lockProduct(ctx, tx, r.db, l.ProductID)
		if err != nil {
			return nil, err
		}
		locked[p.id] = p

		available, err := countKeys(ctx, tx, p.id)
		if err != nil {
			return nil, err
		}
		if available < l.Quantity {
			shortages = append(shortages, &domain.InsufficientKeysError{
				ProductID:   p.id,
				ProductName: p.name,
				Requested:   l.Quantity,
				Available:   available,
			})
		}
	}

	if len(shortages) != 0 {
		return nil, errors.Join(shortages...)
	}
	return locked, nil
}

// redeem consumes keys and stock line by line in order of the cart.
func (r PurchasesRepository) redeem(
	ctx context.Context,
	tx *sql.Tx,
	lines []domain.PurchaseLine,
	locked map[int64]lockedProduct,
) ([]domain.RedeemedKey, error) {
	var redeemed []domain.RedeemedKey

	for _, l := range lines {
		p := locked[l.ProductID]

		keys, err := takeKeys(ctx, tx, p, l.Quantity)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = CASE WHEN stock > $1 THEN stock - $1 ELSE 0 END
			WHERE id = $2;`,
			l.Quantity, p.id,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}

		for _, k := range keys {
			redeemed = append(redeemed, domain.RedeemedKey{
				ProductID:   p.id,
				ProductName: p.name,
				Value:       k.Value,
			})
		}
	}
	return redeemed, nil
}

func (r PurchasesRepository) insertPurchase(
	ctx context.Context,
	tx *sql.Tx,
	order domain.Order,
	keys []domain.RedeemedKey,
) (domain.Purchase, error) {
	p := domain.Purchase{
		Email:     order.Email,
		Lines:     order.Lines,
		Keys:      keys,
		Total:     order.Total(),
		Delivery:  domain.DeliveryPending,
		CreatedAt: order.CreatedAt,
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO purchases (email, total, created_at)
		VALUES ($1, $2, $3)
		RETURNING id;`,
		p.Email, p.Total, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("failed to insert purchase: %w", err)
	}

	for _, l := range order.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_lines (
				purchase_id, product_id, product_name, quantity, unit_price
			)
			VALUES ($1, $2, $3, $4, $5);`,
			p.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice,
		)
		if err != nil {
			return domain.Purchase{}, fmt.Errorf(
				"failed to insert purchase line: %w", err,
			)
		}
	}
	return p, nil
}

func (r PurchasesRepository) insertDelivery(
	ctx context.Context,
	tx *sql.Tx,
	order domain.Order,
	p domain.Purchase,
) (domain.Delivery, error) {
	d := domain.Delivery{
		PurchaseID: p.ID,
		Recipient:  order.Email,
		Subject:    order.Subject,
		Body:       domain.KeysMessage(p.Keys),
		Status:     domain.DeliverySending,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.CreatedAt,
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO deliveries (
			purchase_id, recipient, subject, body, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;`,
		d.PurchaseID, d.Recipient, d.Subject, d.Body, string(d.Status),
		d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("failed to insert delivery: %w", err)
	}
	return d, nil
}
