package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

var _ port.KeyPool = (*KeysRepository)(nil)

type KeysRepository struct {
	db SQLDB
}

func NewKeysRepository(db SQLDB) KeysRepository {
	return KeysRepository{db}
}

func (r KeysRepository) AvailableCount(
	ctx context.Context, productID int64,
) (int, error) {
	const op = "KeysRepository.AvailableCount"

	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activation_keys WHERE product_id = $1;`,
		productID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (r KeysRepository) AddKeys(
	ctx context.Context, productID int64, values []string,
) error {
	const op = "KeysRepository.AddKeys"

	err := r.db.inTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := lockProduct(ctx, tx, r.db, productID); err != nil {
			return err
		}
		return insertKeys(ctx, tx, productID, values)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Take removes and returns the n oldest keys of the product. If fewer
// than n remain nothing is removed.
func (r KeysRepository) Take(
	ctx context.Context, productID int64, n int,
) ([]domain.ActivationKey, error) {
	const op = "KeysRepository.Take"

	if n <= 0 {
		err := domain.NewValidationError("quantity", "must be positive")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var keys []domain.ActivationKey
	err := r.db.inTx(ctx, op, func(tx *sql.Tx) error {
		locked, err := lockProduct(ctx, tx, r.db, productID)
		if err != nil {
			return err
		}

		available, err := countKeys(ctx, tx, productID)
		if err != nil {
			return err
		}
		if available < n {
			return &domain.InsufficientKeysError{
				ProductID:   productID,
				ProductName: locked.name,
				Requested:   n,
				Available:   available,
			}
		}

		keys, err = takeKeys(ctx, tx, locked, n)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}

type lockedProduct struct {
	id    int64
	name  string
	stock int
}

// lockProduct reads the product row holding a write lock on it until the
// transaction ends.
func lockProduct(
	ctx context.Context, tx *sql.Tx, db SQLDB, id int64,
) (lockedProduct, error) {
	query := `SELECT id, name, stock FROM products WHERE id = $1` +
		db.forUpdate() + `;`

	var p lockedProduct
	err := tx.QueryRowContext(ctx, query, id).Scan(&p.id, &p.name, &p.stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lockedProduct{}, domain.NewNotFoundError("product", id)
		}
		return lockedProduct{}, fmt.Errorf("failed to lock product: %w", err)
	}
	return p, nil
}

func countKeys(ctx context.Context, tx *sql.Tx, productID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activation_keys WHERE product_id = $1;`,
		productID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return n, nil
}

// takeKeys deletes the n oldest keys of a locked product. Every delete
// must hit exactly one row, otherwise a concurrent writer consumed the key
// and the caller's transaction has to abort.
func takeKeys(
	ctx context.Context, tx *sql.Tx, p lockedProduct, n int,
) ([]domain.ActivationKey, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, key_value FROM activation_keys
		WHERE product_id = $1
		ORDER BY id ASC
		LIMIT $2;`,
		p.id, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select keys: %w", err)
	}

	keys := make([]domain.ActivationKey, 0, n)
	for rows.Next() {
		k := domain.ActivationKey{ProductID: p.id}
		if err := rows.Scan(&k.ID, &k.Value); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}

	shortage := func() error {
		return &domain.InsufficientKeysError{
			ProductID:   p.id,
			ProductName: p.name,
			Requested:   n,
			Available:   len(keys),
		}
	}

	if len(keys) < n {
		return nil, shortage()
	}

	for _, k := range keys {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM activation_keys WHERE id = $1;`, k.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to delete key: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to delete key: %w", err)
		}
		if affected != 1 {
			return nil, shortage()
		}
	}
	return keys, nil
}
