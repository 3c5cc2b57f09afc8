package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetingviewer/internal/composio"
	"meetingviewer/internal/config"
	"meetingviewer/internal/models"
	"meetingviewer/internal/session"
)

type fakeConnector struct {
	mu           sync.Mutex
	link         *composio.AuthLink
	linkErr      error
	conns        []composio.Connection
	listErr      error
	linkCalls    int
	listCalls    int
	lastUserID   string
	lastCallback string
}

func (f *fakeConnector) CreateAuthLink(_ context.Context, _, userID, callbackURL string) (*composio.AuthLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls++
	f.lastUserID = userID
	f.lastCallback = callbackURL
	return f.link, f.linkErr
}

func (f *fakeConnector) ListConnections(_ context.Context, userID string) ([]composio.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastUserID = userID
	return f.conns, f.listErr
}

type failingStore struct{}

func (failingStore) Put(context.Context, models.Session) error { return errors.New("disk full") }
func (failingStore) Get(context.Context, string) (*models.Session, error) {
	return nil, errors.New("disk full")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.BasicConfig.PublicBaseURL = "https://app.example.com"
	cfg.Composio.APIKey = "key"
	cfg.Composio.AuthConfigID = "ac_1"
	cfg.Session.Backend = config.BackendMemory
	return cfg
}

func newTestService(cfg *config.Config, conn *fakeConnector, store session.Store) *Service {
	svc := NewService(cfg, conn, store, nil)
	// the stores read the wall clock, so the fixed instant has to be current
	now := time.Now().UTC().Truncate(time.Second)
	svc.now = func() time.Time { return now }
	return svc
}

func TestStartPersistsSession(t *testing.T) {
	conn := &fakeConnector{link: &composio.AuthLink{ConnectionID: "ca_1", RedirectURL: "https://consent.example.com"}}
	store := session.NewMemoryStore(time.Hour)
	svc := newTestService(testConfig(), conn, store)

	in, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(in.UserID, "user_"))
	assert.Equal(t, in.UserID, conn.lastUserID)
	assert.Equal(t, "https://app.example.com/api/oauth/callback", conn.lastCallback)
	assert.Equal(t, "https://consent.example.com", in.ConsentURL)
	assert.Len(t, in.Session.Token, 64)

	stored, err := store.Get(context.Background(), in.Session.Token)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ca_1", stored.ConnectionID)
	assert.Equal(t, in.UserID, stored.UserID)
}

func TestStartUserIDsAreUnique(t *testing.T) {
	conn := &fakeConnector{link: &composio.AuthLink{ConnectionID: "ca_1", RedirectURL: "u"}}
	svc := newTestService(testConfig(), conn, session.NewMemoryStore(time.Hour))
	first, err := svc.Start(context.Background())
	require.NoError(t, err)
	second, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.Session.Token, second.Session.Token)
}

func TestStartRequiresConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.Composio.APIKey = ""
	cfg.BasicConfig.PublicBaseURL = ""
	conn := &fakeConnector{}
	_, err := newTestService(cfg, conn, session.NewMemoryStore(time.Hour)).Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "COMPOSIO_API_KEY")
	assert.Contains(t, err.Error(), "PUBLIC_BASE_URL")
	assert.Zero(t, conn.linkCalls)
}

func TestStartProviderFailureStoresNothing(t *testing.T) {
	conn := &fakeConnector{linkErr: &composio.APIError{Op: "create auth link", Status: http.StatusForbidden, Body: "nope"}}
	_, err := newTestService(testConfig(), conn, failingStore{}).Start(context.Background())
	var apiErr *composio.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestLatestConnection(t *testing.T) {
	t1 := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	got := LatestConnection([]composio.Connection{{ID: "old", CreatedAt: t1}, {ID: "new", CreatedAt: t2}})
	assert.Equal(t, "new", got.ID)

	got = LatestConnection([]composio.Connection{{ID: "undated"}, {ID: "a", CreatedAt: t1}, {ID: "b", CreatedAt: t1}})
	assert.Equal(t, "a", got.ID)
}

func TestFinalizeErrors(t *testing.T) {
	cases := []struct {
		name   string
		userID string
		conn   *fakeConnector
		store  session.Store
		code   string
	}{
		{"no user", "", &fakeConnector{}, session.NewMemoryStore(time.Hour), CodeNoUserID},
		{"list fails", "user_1", &fakeConnector{listErr: errors.New("timeout")}, session.NewMemoryStore(time.Hour), CodeFetchFailed},
		{"no connections", "user_1", &fakeConnector{}, session.NewMemoryStore(time.Hour), CodeNoConnection},
		{"store fails", "user_1", &fakeConnector{conns: []composio.Connection{{ID: "ca"}}}, failingStore{}, CodeCallbackFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestService(testConfig(), tc.conn, tc.store).Finalize(context.Background(), tc.userID, "")
			var completionErr *CompletionError
			require.True(t, errors.As(err, &completionErr))
			assert.Equal(t, tc.code, completionErr.Code)
		})
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func callback(t *testing.T, completer Completer, query string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodGet, "/api/oauth/callback"+query, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	c.Request = req
	completer.Complete(c)
	return rec
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestRedirectCompleterSelectsLatestConnection(t *testing.T) {
	t1 := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	conn := &fakeConnector{conns: []composio.Connection{
		{ID: "ca_t1", CreatedAt: t1},
		{ID: "ca_t2", CreatedAt: t1.Add(time.Minute)},
	}}
	store := session.NewMemoryStore(time.Hour)
	completer, err := NewCompleter(config.CompletionRedirect, newTestService(testConfig(), conn, store))
	require.NoError(t, err)

	rec := callback(t, completer, "", &http.Cookie{Name: UserCookieName, Value: "user_1"})
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, "user_1", conn.lastUserID)

	sessCookie := cookieByName(rec, session.CookieName)
	require.NotNil(t, sessCookie)
	assert.True(t, sessCookie.HttpOnly)
	assert.True(t, sessCookie.Secure)
	stored, err := store.Get(context.Background(), sessCookie.Value)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ca_t2", stored.ConnectionID)

	cleared := cookieByName(rec, UserCookieName)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestRedirectCompleterReusesOwnSessionToken(t *testing.T) {
	conn := &fakeConnector{conns: []composio.Connection{{ID: "ca_2"}}}
	store := session.NewMemoryStore(time.Hour)
	require.NoError(t, store.Put(context.Background(), models.Session{Token: "tok-own", UserID: "user_1", ConnectionID: "ca_1"}))
	completer, err := NewCompleter(config.CompletionRedirect, newTestService(testConfig(), conn, store))
	require.NoError(t, err)

	rec := callback(t, completer, "",
		&http.Cookie{Name: UserCookieName, Value: "user_1"},
		&http.Cookie{Name: session.CookieName, Value: "tok-own"},
	)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Nil(t, cookieByName(rec, session.CookieName))

	stored, err := store.Get(context.Background(), "tok-own")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ca_2", stored.ConnectionID)
}

func TestRedirectCompleterIgnoresForeignSessionToken(t *testing.T) {
	cases := map[string]*models.Session{
		"unknown token":       nil,
		"token of other user": {Token: "a", UserID: "user_other", ConnectionID: "ca_other"},
	}
	for name, seeded := range cases {
		t.Run(name, func(t *testing.T) {
			conn := &fakeConnector{conns: []composio.Connection{{ID: "victim_conn"}}}
			store := session.NewMemoryStore(time.Hour)
			if seeded != nil {
				require.NoError(t, store.Put(context.Background(), *seeded))
			}
			completer, err := NewCompleter(config.CompletionRedirect, newTestService(testConfig(), conn, store))
			require.NoError(t, err)

			rec := callback(t, completer, "",
				&http.Cookie{Name: UserCookieName, Value: "user_victim"},
				&http.Cookie{Name: session.CookieName, Value: "a"},
			)
			assert.Equal(t, "/", rec.Header().Get("Location"))

			minted := cookieByName(rec, session.CookieName)
			require.NotNil(t, minted)
			assert.NotEqual(t, "a", minted.Value)
			assert.Len(t, minted.Value, 64)

			stored, err := store.Get(context.Background(), "a")
			require.NoError(t, err)
			if seeded == nil {
				assert.Nil(t, stored)
			} else {
				require.NotNil(t, stored)
				assert.Equal(t, "ca_other", stored.ConnectionID)
			}

			fresh, err := store.Get(context.Background(), minted.Value)
			require.NoError(t, err)
			require.NotNil(t, fresh)
			assert.Equal(t, "user_victim", fresh.UserID)
			assert.Equal(t, "victim_conn", fresh.ConnectionID)
		})
	}
}

func TestCookiesSecureFollowsBaseURL(t *testing.T) {
	for base, secure := range map[string]bool{
		"https://app.example.com": true,
		"http://localhost:3000":   false,
	} {
		cfg := testConfig()
		cfg.BasicConfig.PublicBaseURL = base
		svc := newTestService(cfg, &fakeConnector{}, session.NewMemoryStore(time.Hour))

		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		svc.SetSessionCookie(c, "tok")
		svc.setUserCookie(c, "user_1")

		for _, ck := range rec.Result().Cookies() {
			assert.Equal(t, secure, ck.Secure, "%s cookie for %s", ck.Name, base)
			assert.True(t, ck.HttpOnly)
		}
	}
}

func TestRedirectCompleterFailures(t *testing.T) {
	cases := []struct {
		name     string
		conn     *fakeConnector
		query    string
		cookies  []*http.Cookie
		location string
	}{
		{"missing user cookie", &fakeConnector{}, "", nil, "/?error=no_user_id"},
		{"lookup fails", &fakeConnector{listErr: errors.New("502")}, "", []*http.Cookie{{Name: UserCookieName, Value: "u"}}, "/?error=fetch_failed"},
		{"no connection", &fakeConnector{}, "", []*http.Cookie{{Name: UserCookieName, Value: "u"}}, "/?error=no_connection"},
		{"provider error", &fakeConnector{}, "?error=access_denied", nil, "/?error=access_denied"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			completer, err := NewCompleter(config.CompletionRedirect, newTestService(testConfig(), tc.conn, session.NewMemoryStore(time.Hour)))
			require.NoError(t, err)
			rec := callback(t, completer, tc.query, tc.cookies...)
			assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
		})
	}
}

func TestPopupCompleter(t *testing.T) {
	conn := &fakeConnector{}
	cfg := testConfig()
	cfg.BasicConfig.PublicBaseURL = "https://app.example.com/base"
	completer, err := NewCompleter(config.CompletionPopup, newTestService(cfg, conn, failingStore{}))
	require.NoError(t, err)

	rec := callback(t, completer, "?status=success")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "oauth_success")
	assert.Contains(t, body, "app.example.com")
	assert.NotContains(t, body, "/base")
	assert.Contains(t, body, "window.close()")
	assert.Zero(t, conn.listCalls)

	rec = callback(t, completer, "?error=access_denied")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "oauth_error")
}

func TestNewCompleterRejectsUnknownMode(t *testing.T) {
	_, err := NewCompleter("iframe", newTestService(testConfig(), &fakeConnector{}, session.NewMemoryStore(time.Hour)))
	assert.True(t, IsConfigurationError(err))
}
