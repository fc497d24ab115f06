package models

import "time"

// Session binds an issued token to an authenticated user.
type Session struct {
	ID        string
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
