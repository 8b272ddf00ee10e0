// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/board/internal/middleware"
	"github.com/hitoshi/board/internal/model"
	"github.com/hitoshi/board/internal/session"
)

// AuthHandler はログアウトとログイン状態の確認を扱う。
// ログインと会員登録は画面（/login, /signup）が扱う。
type AuthHandler struct {
	logger *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{logger: logger}
}

// Logout は認証トークンとユーザーIDを破棄する。常に成功する。
// セッション自体は破棄しない。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	userID, _ := s.User.ID()
	result := s.Auth.Logout()
	s.User.Clear()

	h.logger.Info("logged out", slog.String("user_id", userID))
	middleware.WriteJSON(w, http.StatusOK, result)
}

// meResponse はGET /auth/me のレスポンス。
type meResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
}

// Me は現在のログイン状態を返す。未ログインの場合は401。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := session.FromContext(r.Context())
	if !ok || !s.Auth.Authenticated() {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	userID, _ := s.User.ID()
	middleware.WriteJSON(w, http.StatusOK, meResponse{Authenticated: true, UserID: userID})
}
