package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

var _ port.ProductsStorage = (*ProductsRepository)(nil)

const productColumns = `
	p.id, p.name, p.price, p.stock, p.description,
	p.img_1, p.img_2, p.img_3,
	(SELECT COUNT(*) FROM activation_keys k WHERE k.product_id = p.id)`

type ProductsRepository struct {
	db SQLDB
}

func NewProductsRepository(db SQLDB) ProductsRepository {
	return ProductsRepository{db}
}

func (r ProductsRepository) GetProduct(
	ctx context.Context, id int64,
) (domain.Product, error) {
	const op = "ProductsRepository.GetProduct"

	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1;`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf(
				"%s: %w", op, domain.NewNotFoundError("product", id),
			)
		}
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (r ProductsRepository) ListProducts(
	ctx context.Context,
) ([]domain.Product, error) {
	const op = "ProductsRepository.ListProducts"

	query := `SELECT ` + productColumns + ` FROM products p ORDER BY p.id;`

	ps, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func (r ProductsRepository) ListInStock(
	ctx context.Context,
) ([]domain.Product, error) {
	const op = "ProductsRepository.ListInStock"

	query := `SELECT ` + productColumns + `
		FROM products p WHERE p.stock > 0 ORDER BY p.id;`

	ps, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func (r ProductsRepository) ListFeatured(
	ctx context.Context, limit int,
) ([]domain.Product, error) {
	const op = "ProductsRepository.ListFeatured"

	query := `SELECT ` + productColumns + `
		FROM products p WHERE p.stock > 0
		ORDER BY p.stock ASC, p.id ASC LIMIT $1;`

	ps, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func (r ProductsRepository) SearchProducts(
	ctx context.Context, substr string,
) ([]domain.Product, error) {
	const op = "ProductsRepository.SearchProducts"

	query := `SELECT ` + productColumns + `
		FROM products p WHERE ` + r.db.containsExpr("p.name", "$1") + `
		ORDER BY p.id;`

	ps, err := r.query(ctx, query, substr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

// CreateProduct inserts the product together with its initial keys.
func (r ProductsRepository) CreateProduct(
	ctx context.Context, p domain.Product, keys []string,
) (domain.Product, error) {
	const op = "ProductsRepository.CreateProduct"

	err := r.db.inTx(ctx, op, func(tx *sql.Tx) error {
		img := imageSlots(p.Images)
		query := `
			INSERT INTO products (
				name, price, stock, description, img_1, img_2, img_3
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;`

		err := tx.QueryRowContext(ctx, query,
			p.Name, p.Price, p.Stock, p.Description, img[0], img[1], img[2],
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}

		return insertKeys(ctx, tx, p.ID, keys)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	p.Images = imageSlots(p.Images)
	p.AvailableKeys = len(keys)
	return p, nil
}

// UpdateProduct overwrites every product column and appends keys.
func (r ProductsRepository) UpdateProduct(
	ctx context.Context, p domain.Product, keys []string,
) (domain.Product, error) {
	const op = "ProductsRepository.UpdateProduct"

	err := r.db.inTx(ctx, op, func(tx *sql.Tx) error {
		img := imageSlots(p.Images)
		query := `
			UPDATE products SET
				name = $1, price = $2, stock = $3, description = $4,
				img_1 = $5, img_2 = $6, img_3 = $7
			WHERE id = $8;`

		res, err := tx.ExecContext(ctx, query,
			p.Name, p.Price, p.Stock, p.Description,
			img[0], img[1], img[2], p.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		if err := expectOne(res, "product", p.ID); err != nil {
			return err
		}

		return insertKeys(ctx, tx, p.ID, keys)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := r.GetProduct(ctx, p.ID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// DeleteProduct removes the product and the keys it owns.
func (r ProductsRepository) DeleteProduct(ctx context.Context, id int64) error {
	const op = "ProductsRepository.DeleteProduct"

	err := r.db.inTx(ctx, op, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM activation_keys WHERE product_id = $1;`, id,
		)
		if err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1;`, id)
		if err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return expectOne(res, "product", id)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReconcileStock sets stock to the number of keys the product owns.
func (r ProductsRepository) ReconcileStock(
	ctx context.Context, id int64,
) (domain.Product, error) {
	const op = "ProductsRepository.ReconcileStock"

	query := `
		UPDATE products SET stock = (
			SELECT COUNT(*) FROM activation_keys WHERE product_id = $1
		)
		WHERE id = $1;`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, "product", id); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (r ProductsRepository) query(
	ctx context.Context, query string, args ...any,
) ([]domain.Product, error) {
	log := slog.With("op", "ProductsRepository.query")

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "err", err)
		}
	}()

	ps := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p   domain.Product
		img [domain.MaxProductImages]string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Stock, &p.Description,
		&img[0], &img[1], &img[2],
		&p.AvailableKeys,
	)
	if err != nil {
		return domain.Product{}, err
	}
	p.Images = img[:]
	return p, nil
}

// imageSlots pads or truncates refs to exactly MaxProductImages entries.
func imageSlots(refs []string) []string {
	slots := make([]string, domain.MaxProductImages)
	copy(slots, refs)
	return slots
}

func insertKeys(
	ctx context.Context, tx *sql.Tx, productID int64, keys []string,
) error {
	if len(keys) == 0 {
		return nil
	}

	query := `INSERT INTO activation_keys (key_value, product_id) VALUES ($1, $2);`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare stmt: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Error("failed to close prepared stmt", "err", err)
		}
	}()

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k, productID); err != nil {
			return fmt.Errorf("failed to insert key: %w", err)
		}
	}
	return nil
}
