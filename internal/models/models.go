package models

import "time"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	PassHash []byte `json:"-"`
}

type Contact struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// Identity is the decoded content of a session token.
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// * IsExpired reports whether the token lifetime has elapsed at now.
func (i Identity) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

const (
	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
	EventUserLoggedOut  = "user.logged_out"
)

type Event struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}
