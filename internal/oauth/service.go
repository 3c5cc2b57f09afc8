package oauth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meetingviewer/internal/composio"
	"meetingviewer/internal/config"
	"meetingviewer/internal/models"
	"meetingviewer/internal/session"
)

// Completion failure codes, surfaced to the browser as /?error=<code>.
const (
	CodeNoUserID       = "no_user_id"
	CodeFetchFailed    = "fetch_failed"
	CodeNoConnection   = "no_connection"
	CodeCallbackFailed = "callback_failed"
)

// Connector is the slice of the Composio API used by the OAuth flow.
type Connector interface {
	CreateAuthLink(ctx context.Context, authConfigID, userID, callbackURL string) (*composio.AuthLink, error)
	ListConnections(ctx context.Context, userID string) ([]composio.Connection, error)
}

// Initiation is the outcome of a started authorization.
type Initiation struct {
	UserID     string
	Session    models.Session
	ConsentURL string
}

// CompletionError carries the code reported to the browser.
type CompletionError struct {
	Code string
	Err  error
}

func (e *CompletionError) Error() string {
	if e.Err == nil {
		return "oauth completion: " + e.Code
	}
	return fmt.Sprintf("oauth completion: %s: %v", e.Code, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Service starts authorizations and finalizes sessions from provider callbacks.
type Service struct {
	cfg       *config.Config
	connector Connector
	store     session.Store
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(cfg *config.Config, connector Connector, store session.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		connector: connector,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// SessionTTL is the lifetime given to new sessions and their cookie.
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL()
}

// Start creates an authorization link for a fresh user id and persists the
// session pointing at the connection the provider reserved for it.
func (s *Service) Start(ctx context.Context) (*Initiation, error) {
	if err := s.checkConfig(); err != nil {
		return nil, err
	}

	userID := newUserID()
	link, err := s.connector.CreateAuthLink(ctx, s.cfg.Composio.AuthConfigID, userID, s.cfg.CallbackURL())
	if err != nil {
		return nil, fmt.Errorf("create auth link: %w", err)
	}

	token, err := session.NewToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := models.Session{
		Token:        token,
		UserID:       userID,
		ConnectionID: link.ConnectionID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.SessionTTL()),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info("oauth started",
		zap.String("user_id", userID),
		zap.String("connection_id", link.ConnectionID),
	)
	return &Initiation{UserID: userID, Session: sess, ConsentURL: link.RedirectURL}, nil
}

// Finalize binds the user's most recent connection to a session. The token is
// reused only when the store already holds it for the same user, otherwise a
// new one is minted.
func (s *Service) Finalize(ctx context.Context, userID, token string) (*models.Session, error) {
	if userID == "" {
		return nil, &CompletionError{Code: CodeNoUserID}
	}
	conns, err := s.connector.ListConnections(ctx, userID)
	if err != nil {
		return nil, &CompletionError{Code: CodeFetchFailed, Err: err}
	}
	if len(conns) == 0 {
		return nil, &CompletionError{Code: CodeNoConnection}
	}
	latest := LatestConnection(conns)

	if !s.ownsToken(ctx, userID, token) {
		if token, err = session.NewToken(); err != nil {
			return nil, &CompletionError{Code: CodeCallbackFailed, Err: err}
		}
	}
	now := s.now().UTC()
	sess := models.Session{
		Token:        token,
		UserID:       userID,
		ConnectionID: latest.ID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.SessionTTL()),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, &CompletionError{Code: CodeCallbackFailed, Err: err}
	}
	s.logger.Info("oauth completed",
		zap.String("user_id", userID),
		zap.String("connection_id", latest.ID),
	)
	return &sess, nil
}

func (s *Service) ownsToken(ctx context.Context, userID, token string) bool {
	if token == "" {
		return false
	}
	existing, err := s.store.Get(ctx, token)
	if err != nil {
		s.logger.Warn("session lookup failed during completion", zap.Error(err))
		return false
	}
	return existing != nil && existing.UserID == userID
}

// SecureCookies reports whether cookies carry the Secure attribute, which
// follows the scheme of the public base URL.
func (s *Service) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(s.cfg.BasicConfig.PublicBaseURL), "https://")
}

// LatestConnection picks the newest connection by creation time. Ties keep
// the provider's order; connections without a timestamp sort last.
func LatestConnection(conns []composio.Connection) composio.Connection {
	sorted := slices.Clone(conns)
	slices.SortStableFunc(sorted, func(a, b composio.Connection) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sorted[0]
}

func (s *Service) checkConfig() error {
	var missing []string
	if s.cfg.Composio.APIKey == "" {
		missing = append(missing, "COMPOSIO_API_KEY")
	}
	if s.cfg.Composio.AuthConfigID == "" {
		missing = append(missing, "COMPOSIO_AUTH_CONFIG_ID")
	}
	if s.cfg.BasicConfig.PublicBaseURL == "" {
		missing = append(missing, "PUBLIC_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", config.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

func newUserID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsConfigurationError reports whether err came from an incomplete setup.
func IsConfigurationError(err error) bool {
	return errors.Is(err, config.ErrConfiguration)
}
