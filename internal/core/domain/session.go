package domain

import "time"

// A Session is the server side state of one browser session.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id,omitempty"`
	Cart      Cart      `json:"cart"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSession(id string) Session {
	return Session{ID: id, CreatedAt: time.Now().UTC()}
}

func (s Session) Authenticated() bool {
	return s.UserID != 0
}
