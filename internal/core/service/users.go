package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 64
	maxNameLen     = 70
)

var _ port.UserService = (*UserService)(nil)

type UserService struct {
	users  port.UsersStorage
	hasher port.PasswordHasher
	tokens port.TokenIssuer
}

func NewUserService(
	users port.UsersStorage,
	hasher port.PasswordHasher,
	tokens port.TokenIssuer,
) UserService {
	return UserService{users, hasher, tokens}
}

// Register creates an account. The first account ever created is the
// admin.
func (s UserService) Register(
	ctx context.Context, name, email, password string,
) (domain.User, error) {
	const op = "UserService.Register"
	log := slog.With("op", op)

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if err := validateRegistration(name, email, password); err != nil {
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.users.CreateUser(ctx, domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", "userID", u.ID, "admin", u.Admin)
	return u, nil
}

func validateRegistration(name, email, password string) error {
	if name == "" {
		return domain.NewValidationError("name", "required")
	}
	if len(name) > maxNameLen {
		return domain.NewValidationError("name", "too long")
	}
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return domain.NewValidationError(
			"password",
			fmt.Sprintf("length must be %d..%d", minPasswordLen, maxPasswordLen),
		)
	}
	return nil
}

// Authenticate does not reveal whether the email is registered.
func (s UserService) Authenticate(
	ctx context.Context, email, password string,
) (domain.User, error) {
	const op = "UserService.Authenticate"

	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf(
				"%s: %w", op, domain.ErrInvalidCredentials,
			)
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return domain.User{}, fmt.Errorf(
			"%s: %w", op, domain.ErrInvalidCredentials,
		)
	}
	return u, nil
}

func (s UserService) User(ctx context.Context, id int64) (domain.User, error) {
	const op = "UserService.User"

	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s UserService) Users(ctx context.Context) ([]domain.User, error) {
	const op = "UserService.Users"

	us, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return us, nil
}

func (s UserService) DeleteUser(ctx context.Context, id int64) error {
	const op = "UserService.DeleteUser"

	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	slog.Info("user deleted", "op", op, "userID", id)
	return nil
}

// IssueToken authenticates the credentials and returns a signed token.
func (s UserService) IssueToken(
	ctx context.Context, email, password string,
) (string, error) {
	const op = "UserService.IssueToken"

	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.IssueToken(u)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

func (s UserService) ParseToken(token string) (domain.Claims, error) {
	const op = "UserService.ParseToken"

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}
