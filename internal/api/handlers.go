package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetingviewer/internal/auth"
	"meetingviewer/internal/calendar"
	"meetingviewer/internal/composio"
	"meetingviewer/internal/config"
	"meetingviewer/internal/models"
	"meetingviewer/internal/oauth"
)

// EventFetcher returns the upcoming and past windows for a connection.
type EventFetcher interface {
	Fetch(ctx context.Context, connectionID string) (models.Events, error)
}

// Handler wires HTTP routes to the OAuth flow and calendar retrieval.
type Handler struct {
	cfg       *config.Config
	auth      *auth.Service
	oauth     *oauth.Service
	completer oauth.Completer
	events    EventFetcher
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg *config.Config, authService *auth.Service, oauthService *oauth.Service, completer oauth.Completer, events EventFetcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		auth:      authService,
		oauth:     oauthService,
		completer: completer,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	api := router.Group("/api")
	api.GET("/oauth/start", h.startOAuth)
	api.GET("/oauth/callback", h.completeOAuth)

	eventRoutes := api.Group("")
	if !h.cfg.IsMock() {
		eventRoutes.Use(h.auth.Middleware())
	}
	eventRoutes.GET("/events", h.listEvents)
	eventRoutes.GET("/events.ics", h.exportEvents)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": h.cfg.BasicConfig.Mode})
}

func (h *Handler) startOAuth(c *gin.Context) {
	if h.cfg.IsMock() {
		// nothing to connect, sample data is always available
		c.Redirect(http.StatusTemporaryRedirect, "/")
		return
	}

	in, err := h.oauth.Start(c.Request.Context())
	if err != nil {
		h.logger.Error("oauth start failed", zap.Error(err))
		var apiErr *composio.APIError
		switch {
		case oauth.IsConfigurationError(err):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server configuration incomplete"})
		case errors.As(err, &apiErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create auth link", "details": apiErr.Body})
		case errors.Is(err, composio.ErrMissingConnection):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no connection id returned"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start oauth"})
		}
		return
	}

	h.oauth.SetSessionCookie(c, in.Session.Token)
	h.completer.Begin(c, in)
	c.Redirect(http.StatusTemporaryRedirect, in.ConsentURL)
}

func (h *Handler) completeOAuth(c *gin.Context) {
	if h.cfg.IsMock() {
		c.Redirect(http.StatusTemporaryRedirect, "/")
		return
	}
	h.completer.Complete(c)
}

func (h *Handler) listEvents(c *gin.Context) {
	events, ok := h.loadEvents(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) exportEvents(c *gin.Context) {
	events, ok := h.loadEvents(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := calendar.WriteICS(&buf, events, h.now()); err != nil {
		h.logger.Error("ics export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render calendar"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="meetings.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// loadEvents writes the error response itself and reports false on failure.
func (h *Handler) loadEvents(c *gin.Context) (models.Events, bool) {
	if h.cfg.IsMock() {
		return calendar.MockEvents(h.now()), true
	}

	sess, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": calendar.ErrUnauthenticated.Error()})
		return models.Events{}, false
	}
	events, err := h.events.Fetch(c.Request.Context(), sess.ConnectionID)
	if err != nil {
		if errors.Is(err, calendar.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return models.Events{}, false
		}
		h.logger.Error("fetch events failed",
			zap.String("connection_id", sess.ConnectionID),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch calendar events"})
		return models.Events{}, false
	}
	return events, true
}
