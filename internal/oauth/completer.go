package oauth

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetingviewer/internal/config"
	"meetingviewer/internal/session"
)

// Completer is one way of finishing an authorization in the browser.
type Completer interface {
	// Begin runs after a successful Start, before the consent redirect.
	Begin(c *gin.Context, in *Initiation)
	// Complete handles the provider callback.
	Complete(c *gin.Context)
}

// NewCompleter returns the strategy for the configured completion mode.
func NewCompleter(mode string, svc *Service) (Completer, error) {
	switch mode {
	case "", config.CompletionRedirect:
		return &RedirectCompleter{svc: svc}, nil
	case config.CompletionPopup:
		return &PopupCompleter{svc: svc, origin: originOf(svc.cfg.BasicConfig.PublicBaseURL)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown completion mode %q", config.ErrConfiguration, mode)
	}
}

// RedirectCompleter finishes a full-page flow: it looks up the user's newest
// connection, finalizes the session and sends the browser home.
type RedirectCompleter struct {
	svc *Service
}

func (r *RedirectCompleter) Begin(c *gin.Context, in *Initiation) {
	r.svc.setUserCookie(c, in.UserID)
}

func (r *RedirectCompleter) Complete(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		r.svc.logger.Warn("oauth provider returned error", zap.String("error", providerErr))
		redirectHome(c, providerErr)
		return
	}

	userID, _ := c.Cookie(UserCookieName)
	token, _ := c.Cookie(session.CookieName)
	sess, err := r.svc.Finalize(c.Request.Context(), userID, token)
	if err != nil {
		code := CodeCallbackFailed
		var completionErr *CompletionError
		if errors.As(err, &completionErr) {
			code = completionErr.Code
		}
		r.svc.logger.Warn("oauth completion failed", zap.String("code", code), zap.Error(err))
		redirectHome(c, code)
		return
	}

	if sess.Token != token {
		r.svc.SetSessionCookie(c, sess.Token)
	}
	r.svc.clearUserCookie(c)
	redirectHome(c, "")
}

// PopupCompleter answers the callback inside the consent popup. The session
// already exists since Start, so it only notifies the opener and closes.
type PopupCompleter struct {
	svc    *Service
	origin string
}

func (p *PopupCompleter) Begin(*gin.Context, *Initiation) {}

func (p *PopupCompleter) Complete(c *gin.Context) {
	msg := popupMessage{Type: "oauth_success", Text: "Calendar connected. You can close this window.", Origin: p.origin}
	if providerErr := c.Query("error"); providerErr != "" {
		p.svc.logger.Warn("oauth provider returned error", zap.String("error", providerErr))
		msg = popupMessage{Type: "oauth_error", Error: providerErr, Text: "Authorization failed. You can close this window.", Origin: p.origin}
	}

	var buf bytes.Buffer
	if err := popupPage.Execute(&buf, msg); err != nil {
		p.svc.logger.Error("render popup page", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render page"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

type popupMessage struct {
	Type   string
	Error  string
	Text   string
	Origin string
}

var popupPage = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Meeting Viewer</title></head>
<body>
<p>{{.Text}}</p>
<script>
(function () {
  var message = {type: {{.Type}}{{if .Error}}, error: {{.Error}}{{end}}};
  if (window.opener) {
    window.opener.postMessage(message, {{.Origin}});
  }
  window.close();
})();
</script>
</body>
</html>
`))

func redirectHome(c *gin.Context, code string) {
	target := "/"
	if code != "" {
		target += "?" + url.Values{"error": {code}}.Encode()
	}
	c.Redirect(http.StatusTemporaryRedirect, target)
}

// originOf reduces a base URL to scheme://host for postMessage targeting.
func originOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return base
	}
	return u.Scheme + "://" + u.Host
}
