package session

import (
	"context"
	"errors"
	"time"

	"meetingviewer/internal/models"
)

// CookieName is the cookie carrying the session token.
const CookieName = "session_id"

// ErrInvalidSession is returned by Put for records without a token or connection.
var ErrInvalidSession = errors.New("session: missing token or connection id")

// Store maps opaque session tokens to connection records.
// Get returns nil, nil when the token is unknown or expired.
type Store interface {
	Put(ctx context.Context, s models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
}

// prepare validates a record and fills its timestamps.
func prepare(s models.Session, now time.Time, ttl time.Duration) (models.Session, error) {
	if s.Token == "" || s.ConnectionID == "" {
		return s, ErrInvalidSession
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.CreatedAt = s.CreatedAt.UTC()
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(ttl)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}
