package domain

import "time"

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Admin        bool
	CreatedAt    time.Time
}

// A Review is a free form customer comment.
type Review struct {
	ID        int64
	Username  string
	Text      string
	CreatedAt time.Time
}

// Claims is what an access token asserts about its bearer.
type Claims struct {
	UserID int64
	Admin  bool
}
