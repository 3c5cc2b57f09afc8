package models

import "time"

// Session links a browser's session token to a calendar connection.
type Session struct {
	Token        string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Usable reports whether the session can be used to reach a calendar.
func (s *Session) Usable() bool {
	return s != nil && s.ConnectionID != ""
}

// Expired reports whether the session has an expiry that lies before now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
