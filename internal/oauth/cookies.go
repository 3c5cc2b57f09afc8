package oauth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meetingviewer/internal/session"
)

// UserCookieName holds the pending user id between initiation and a full-page callback.
const UserCookieName = "composio_user_id"

const userCookieTTL = 10 * time.Minute

// SetSessionCookie stores the session token for the lifetime of the session.
func (s *Service) SetSessionCookie(c *gin.Context, token string) {
	maxAge := int(s.SessionTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int((24 * time.Hour).Seconds())
	}
	setCookie(c, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   s.SecureCookies(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) setUserCookie(c *gin.Context, userID string) {
	setCookie(c, &http.Cookie{
		Name:     UserCookieName,
		Value:    userID,
		MaxAge:   int(userCookieTTL.Seconds()),
		Path:     "/",
		Secure:   s.SecureCookies(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) clearUserCookie(c *gin.Context) {
	setCookie(c, &http.Cookie{
		Name:     UserCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   s.SecureCookies(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
