package view

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/board/internal/metrics"
	"github.com/hitoshi/board/internal/middleware"
	"github.com/hitoshi/board/internal/model"
	"github.com/hitoshi/board/internal/route"
	"github.com/hitoshi/board/internal/session"
)

// loginFields, signupFields はログイン・会員登録画面が入力として受け付けるフィールド。
var (
	loginFields  = []string{"userId", "userPwd"}
	signupFields = []string{"userId", "userPwd", "userName"}
)

// newHomeView はトップ画面。
func newHomeView(deps Deps) http.Handler {
	return methods{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			writePage(w, r, http.StatusOK, route.Home, nil)
		},
	}
}

// newLoginView はログイン画面。GETで入力項目を、POSTでログイン結果を返す。
func newLoginView(deps Deps) http.Handler {
	return methods{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			writePage(w, r, http.StatusOK, route.Login, map[string]any{"fields": loginFields})
		},
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) {
			s, ok := currentSession(w, r)
			if !ok {
				return
			}
			var cred model.Credentials
			if err := decodeBody(w, r, &cred); err != nil {
				middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
				return
			}
			result, err := s.Auth.Login(r.Context(), cred)
			finishAuth(w, r, deps, s, "login", route.Login, cred.Normalize().ID, result, err, http.StatusUnauthorized)
		},
	}
}

// newSignupView は会員登録画面。成功した場合はそのままログイン状態になる。
func newSignupView(deps Deps) http.Handler {
	return methods{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			writePage(w, r, http.StatusOK, route.Signup, map[string]any{"fields": signupFields})
		},
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) {
			s, ok := currentSession(w, r)
			if !ok {
				return
			}
			var profile model.Profile
			if err := decodeBody(w, r, &profile); err != nil {
				middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
				return
			}
			result, err := s.Auth.Signup(r.Context(), profile)
			finishAuth(w, r, deps, s, "signup", route.Signup, profile.Normalize().ID, result, err, http.StatusBadRequest)
		},
	}
}

// finishAuth はログイン・会員登録の結果を記録し、レスポンスを書き込む。
// 成功時はトークンのsubクレーム（なければ入力されたID）をユーザーIDとして保存する。
func finishAuth(w http.ResponseWriter, r *http.Request, deps Deps, s *session.Session,
	op, name, submittedID string, result model.Result, err error, failureStatus int) {
	logger := deps.logger()
	if err != nil {
		deps.recordAuth(op, metrics.OutcomeError)
		var be *model.BackendError
		if errors.As(err, &be) {
			middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
			return
		}
		logger.Error("認証処理に失敗しました", slog.String("op", op), slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !result.Success {
		deps.recordAuth(op, metrics.OutcomeFailure)
		logger.Info("認証に失敗しました", slog.String("op", op), slog.String("session_id", s.ID))
		writePage(w, r, failureStatus, name, result)
		return
	}

	deps.recordAuth(op, metrics.OutcomeSuccess)
	userID := submittedID
	if token, ok := s.Auth.Token(); ok {
		if sub, ok := token.Subject(); ok {
			userID = sub
		}
	}
	s.User.SetID(userID)
	logger.Info("認証に成功しました", slog.String("op", op), slog.String("user_id", userID))
	writePage(w, r, http.StatusOK, name, result)
}
