package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meetingviewer/internal/models"
	"meetingviewer/internal/storage"
)

// SQLStore persists sessions in the oauth_sessions table.
type SQLStore struct {
	db      *sql.DB
	dialect storage.Dialect
	ttl     time.Duration
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, driver string, ttl time.Duration) (*SQLStore, error) {
	dialect, err := storage.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SQLStore{db: db, dialect: dialect, ttl: ttl, now: time.Now}, nil
}

func (s *SQLStore) Put(ctx context.Context, sess models.Session) error {
	sess, err := prepare(sess, s.now(), s.ttl)
	if err != nil {
		return err
	}

	var query string
	switch s.dialect {
	case storage.DialectMySQL:
		query = `INSERT INTO oauth_sessions (session_id, user_id, connection_id, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), connection_id = VALUES(connection_id),
				created_at = VALUES(created_at), expires_at = VALUES(expires_at)`
	default:
		query = `INSERT INTO oauth_sessions (session_id, user_id, connection_id, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET user_id = excluded.user_id, connection_id = excluded.connection_id,
				created_at = excluded.created_at, expires_at = excluded.expires_at`
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		sess.Token, sess.UserID, sess.ConnectionID, sess.CreatedAt, sess.ExpiresAt,
	); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, nil
	}
	sess := models.Session{Token: token}
	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT user_id, connection_id, created_at, expires_at FROM oauth_sessions WHERE session_id = ?`),
		token,
	).Scan(&sess.UserID, &sess.ConnectionID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess.Expired(s.now()) {
		_, _ = s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM oauth_sessions WHERE session_id = ?`), token)
		return nil, nil
	}
	return &sess, nil
}

func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`DELETE FROM oauth_sessions WHERE expires_at <= ?`), s.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
