package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
	"golang.org/x/crypto/bcrypt"
)

var (
	_ port.PasswordHasher = (*BcryptHasher)(nil)
	_ port.TokenIssuer    = (*JWTIssuer)(nil)
)

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost, falling back to
// [bcrypt.DefaultCost] when cost is out of range.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{cost}
}

func (h BcryptHasher) Hash(password string) ([]byte, error) {
	const op = "BcryptHasher.Hash"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return hash, nil
}

// Compare returns [domain.ErrInvalidCredentials] on mismatch.
func (h BcryptHasher) Compare(hash []byte, password string) error {
	const op = "BcryptHasher.Compare"

	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("%s: %w", op, domain.ErrInvalidCredentials)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// A JWTIssuer signs HS256 access tokens.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret, issuer string, ttl time.Duration) JWTIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return JWTIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i JWTIssuer) IssueToken(u domain.User) (string, error) {
	const op = "JWTIssuer.IssueToken"

	now := i.now()
	c := claims{
		Admin: u.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken returns [domain.ErrUnauthorized] for any token it does not
// accept.
func (i JWTIssuer) ParseToken(token string) (domain.Claims, error) {
	const op = "JWTIssuer.ParseToken"

	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return domain.Claims{}, fmt.Errorf(
			"%s: %w", op, errors.Join(domain.ErrUnauthorized, err),
		)
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return domain.Claims{}, fmt.Errorf(
			"%s: %w: bad subject", op, domain.ErrUnauthorized,
		)
	}
	return domain.Claims{UserID: id, Admin: c.Admin}, nil
}
