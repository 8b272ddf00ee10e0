package middleware

import (
	"net/http"
	"testing"

	"github.com/hitoshi/board/internal/auth"
	"github.com/hitoshi/board/internal/session"
)

// newTestManager はテスト用のセッションマネージャーを生成する。
func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	m := session.NewManager(auth.NewClient(nil, nil, "http://127.0.0.1:0"), session.DefaultManagerConfig())
	t.Cleanup(m.Stop)
	return m
}

// withSession はリクエストにセッションを注入する。
func withSession(r *http.Request, s *session.Session) *http.Request {
	return r.WithContext(session.NewContext(r.Context(), s))
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
