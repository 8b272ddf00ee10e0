// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/board/internal/session"
)

const sessionCookieName = "session_id"

// SessionStore はセッションの検索と作成に必要なインターフェース。
// session.Managerが実装する。
type SessionStore interface {
	Get(id string) (*session.Session, bool)
	Create() *session.Session
}

// SessionCreationLimiter はセッション発行の可否を判定する。
// falseを返す場合はレスポンスを書き込み済みであること。RateLimiterが実装する。
type SessionCreationLimiter interface {
	AllowSessionCreation(w http.ResponseWriter, r *http.Request) bool
}

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	MaxAge       int // Cookieの有効期間（秒）
	CookieSecure bool
	CookieDomain string
	// Limiter はnilなら発行数を制限しない。
	Limiter SessionCreationLimiter
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、または期限切れの場合は新しいセッションを作成してCookieを発行する。
// 未ログインでもリクエストは拒否しない（ログイン画面もセッションを必要とするため）。
func NewSessionMiddleware(store SessionStore, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var s *session.Session
			if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				s, _ = store.Get(cookie.Value)
			}

			if s == nil {
				if config.Limiter != nil && !config.Limiter.AllowSessionCreation(w, r) {
					return
				}
				s = store.Create()
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookieName,
					Value:    s.ID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
				slog.Debug("session created", slog.String("session_id", s.ID))
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
		})
	}
}

// sessionKey はレート制限のキーに使うセッションIDを返す。
// セッションミドルウェアを通過していない場合はリモートアドレスを使う。
func sessionKey(r *http.Request) string {
	if s, ok := session.FromContext(r.Context()); ok {
		return s.ID
	}
	return r.RemoteAddr
}

// sessionUserID はセッションに設定されたユーザーIDを返す。
func sessionUserID(r *http.Request) (string, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return "", false
	}
	return s.User.ID()
}
