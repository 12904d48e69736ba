package service

import (
	"context"
	"fmt"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

var _ port.SessionService = (*SessionService)(nil)

type SessionService struct {
	sessions port.SessionStore
}

func NewSessionService(sessions port.SessionStore) SessionService {
	return SessionService{sessions}
}

// Session returns a fresh unsaved session for an unknown id.
func (s SessionService) Session(
	ctx context.Context, id string,
) (domain.Session, error) {
	const op = "SessionService.Session"

	sess, err := loadSession(ctx, s.sessions, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// Login binds the user to the session and keeps its cart.
func (s SessionService) Login(
	ctx context.Context, sessionID string, userID int64,
) error {
	const op = "SessionService.Login"

	sess, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sess.UserID = userID
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Logout drops the whole session, cart included.
func (s SessionService) Logout(ctx context.Context, sessionID string) error {
	const op = "SessionService.Logout"

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
