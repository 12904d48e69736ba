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

var _ port.UsersStorage = (*UsersRepository)(nil)

type UsersRepository struct {
	db SQLDB
}

func NewUsersRepository(db SQLDB) UsersRepository {
	return UsersRepository{db}
}

// CreateUser stores u. The admin flag is granted to the first user only.
func (r UsersRepository) CreateUser(
	ctx context.Context, u domain.User,
) (domain.User, error) {
	const op = "UsersRepository.CreateUser"

	query := `
		INSERT INTO users (name, email, password_hash, admin, created_at)
		VALUES ($1, $2, $3, (SELECT COUNT(*) = 0 FROM users), $4)
		RETURNING id, admin;`

	err := r.db.QueryRowContext(ctx, query,
		u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID, &u.Admin)
	if err != nil {
		if r.db.isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf(
				"%s: email %q: %w", op, u.Email, domain.ErrConflict,
			)
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (r UsersRepository) GetUser(
	ctx context.Context, id int64,
) (domain.User, error) {
	const op = "UsersRepository.GetUser"

	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, admin, created_at
		FROM users WHERE id = $1;`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.NewNotFoundError("user", id)
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (r UsersRepository) GetUserByEmail(
	ctx context.Context, email string,
) (domain.User, error) {
	const op = "UsersRepository.GetUserByEmail"

	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, admin, created_at
		FROM users WHERE email = $1;`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.NewNotFoundError("user", email)
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (r UsersRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	const op = "UsersRepository.ListUsers"
	log := slog.With("op", op)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, admin, created_at
		FROM users ORDER BY id;`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "err", err)
		}
	}()

	us := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		us = append(us, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return us, nil
}

func (r UsersRepository) DeleteUser(ctx context.Context, id int64) error {
	const op = "UsersRepository.DeleteUser"

	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, "user", id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Admin, &u.CreatedAt,
	)
	return u, err
}
