package session

import (
	"context"

	"go.uber.org/zap"

	"meetingviewer/internal/models"
)

// Resolve returns the session for token only when it can reach a calendar.
// Store failures are logged and reported the same way as a missing session.
func Resolve(ctx context.Context, store Store, token string, logger *zap.Logger) (*models.Session, bool) {
	if token == "" || store == nil {
		return nil, false
	}
	sess, err := store.Get(ctx, token)
	if err != nil {
		if logger != nil {
			logger.Error("session lookup failed", zap.Error(err))
		}
		return nil, false
	}
	if !sess.Usable() {
		return nil, false
	}
	return sess, true
}
