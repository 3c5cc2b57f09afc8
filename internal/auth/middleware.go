package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetingviewer/internal/calendar"
	"meetingviewer/internal/models"
	"meetingviewer/internal/session"
)

const sessionContextKey = "auth_session"

// Service resolves the session cookie of incoming requests.
type Service struct {
	store      session.Store
	logger     *zap.Logger
	cookieName string
}

// NewService constructs an auth service backed by the session store.
func NewService(store session.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		logger:     logger,
		cookieName: session.CookieName,
	}
}

// Middleware rejects requests without a usable session and stores the session in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": calendar.ErrUnauthenticated.Error()})
			return
		}
		sess, ok := session.Resolve(c.Request.Context(), s.store, token, s.logger)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": calendar.ErrUnauthenticated.Error()})
			return
		}
		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// SessionFromContext retrieves the session captured by the middleware.
func SessionFromContext(c *gin.Context) (*models.Session, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := val.(*models.Session)
	return sess, ok && sess != nil
}

func (s *Service) extractToken(c *gin.Context) string {
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
