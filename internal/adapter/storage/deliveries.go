package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
)

// PendingDeliveries lists deliveries due for a send: pending ones and
// in-flight ones whose claim was last touched before staleBefore.
func (r PurchasesRepository) PendingDeliveries(
	ctx context.Context, limit int, staleBefore time.Time,
) ([]domain.Delivery, error) {
	const op = "PurchasesRepository.PendingDeliveries"
	log := slog.With("op", op)

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, purchase_id, recipient, subject, body, status,
			attempts, last_error, created_at, updated_at
		FROM deliveries
		WHERE status = $1 OR (status = $2 AND updated_at < $3)
		ORDER BY id ASC
		LIMIT $4;`,
		string(domain.DeliveryPending), string(domain.DeliverySending),
		staleBefore.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "err", err)
		}
	}()

	var ds []domain.Delivery
	for rows.Next() {
		var (
			d      domain.Delivery
			status string
		)
		err := rows.Scan(
			&d.ID, &d.PurchaseID, &d.Recipient, &d.Subject, &d.Body, &status,
			&d.Attempts, &d.LastError, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.Status = domain.DeliveryStatus(status)
		ds = append(ds, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ds, nil
}

// ClaimDelivery moves a due delivery to sending. It reports false when
// another sender holds a live claim or the delivery is already settled.
func (r PurchasesRepository) ClaimDelivery(
	ctx context.Context, id int64, staleBefore time.Time,
) (bool, error) {
	const op = "PurchasesRepository.ClaimDelivery"

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1, updated_at = $2
		WHERE id = $3 AND (status = $4 OR (status = $5 AND updated_at < $6));`,
		string(domain.DeliverySending), time.Now().UTC(), id,
		string(domain.DeliveryPending), string(domain.DeliverySending),
		staleBefore.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// MarkDeliverySent settles a claimed delivery. A delivery that is not in
// flight is left as is and reported as not found.
func (r PurchasesRepository) MarkDeliverySent(ctx context.Context, id int64) error {
	const op = "PurchasesRepository.MarkDeliverySent"

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1, attempts = attempts + 1, last_error = '', updated_at = $2
		WHERE id = $3 AND status = $4;`,
		string(domain.DeliverySent), time.Now().UTC(), id,
		string(domain.DeliverySending),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, "in-flight delivery", id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkDeliveryFailed records a failed attempt of a claimed delivery and
// returns it to the pending queue. A final failure takes it out for good.
func (r PurchasesRepository) MarkDeliveryFailed(
	ctx context.Context, id int64, reason string, final bool,
) error {
	const op = "PurchasesRepository.MarkDeliveryFailed"

	status := domain.DeliveryPending
	if final {
		status = domain.DeliveryFailed
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1, attempts = attempts + 1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5;`,
		string(status), reason, time.Now().UTC(), id,
		string(domain.DeliverySending),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, "in-flight delivery", id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r PurchasesRepository) PurchaseDelivery(
	ctx context.Context, purchaseID int64,
) (domain.Delivery, error) {
	const op = "PurchasesRepository.PurchaseDelivery"

	var (
		d      domain.Delivery
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT
			id, purchase_id, recipient, subject, body, status,
			attempts, last_error, created_at, updated_at
		FROM deliveries
		WHERE purchase_id = $1
		ORDER BY id ASC
		LIMIT 1;`,
		purchaseID,
	).Scan(
		&d.ID, &d.PurchaseID, &d.Recipient, &d.Subject, &d.Body, &status,
		&d.Attempts, &d.LastError, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.NewNotFoundError("purchase delivery", purchaseID)
		}
		return domain.Delivery{}, fmt.Errorf("%s: %w", op, err)
	}
	d.Status = domain.DeliveryStatus(status)
	return d, nil
}
