package view

import (
	"errors"
	"net/http"

	"github.com/hitoshi/board/internal/article"
	"github.com/hitoshi/board/internal/middleware"
	"github.com/hitoshi/board/internal/model"
	"github.com/hitoshi/board/internal/route"
)

// newBoardView は記事一覧画面。
func newBoardView(deps Deps) http.Handler {
	return methods{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			summaries, err := deps.Articles.List(r.Context())
			if err != nil {
				writeBackendFailure(w, deps.logger(), 0, err)
				return
			}
			writePage(w, r, http.StatusOK, route.Board, map[string]any{"articles": summaries})
		},
	}
}

// newDetailView は記事詳細画面。DELETEで記事を削除する。
func newDetailView(deps Deps) http.Handler {
	return methods{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			no, ok := articleNo(w, r)
			if !ok {
				return
			}
			s, ok := currentSession(w, r)
			if !ok {
				return
			}
			a, err := deps.Articles.Get(r.Context(), no)
			if err != nil {
				writeBackendFailure(w, deps.logger(), no, err)
				return
			}
			userID, loggedIn := s.User.ID()
			writePage(w, r, http.StatusOK, route.Detail, map[string]any{
				"article": a,
				"canEdit": loggedIn && userID == a.UserID,
			})
		},
		http.MethodDelete: func(w http.ResponseWriter, r *http.Request) {
			no, ok := articleNo(w, r)
			if !ok {
				return
			}
			s, ok := currentSession(w, r)
			if !ok {
				return
			}
			b, ok := bearer(w, deps.logger(), s)
			if !ok {
				return
			}
			if err := deps.Articles.Delete(r.Context(), b, no); err != nil {
				writeBackendFailure(w, deps.logger(), no, err)
				return
			}
			writePage(w, r, http.StatusOK, route.Detail, map[string]any{"deleted": no})
		},
	}
}

// newCreateFormView は記事作成画面。
func newCreateFormView(deps Deps) http.Handler {
	return methods{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			writePage(w, r, http.StatusOK, route.CreateForm, map[string]any{"form": model.ArticleInput{}})
		},
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) {
			s, ok := currentSession(w, r)
			if !ok {
				return
			}
			b, ok := bearer(w, deps.logger(), s)
			if !ok {
				return
			}
			var in model.ArticleInput
			if err := decodeBody(w, r, &in); err != nil {
				middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
				return
			}
			if err := deps.Articles.Create(r.Context(), b, in); err != nil {
				if writeValidationFailure(w, err) {
					return
				}
				writeBackendFailure(w, deps.logger(), 0, err)
				return
			}
			writePage(w, r, http.StatusCreated, route.CreateForm, map[string]any{"created": true})
		},
	}
}

// newUpdateFormView は記事修正画面。GETで現在の内容を、POST/PUTで更新結果を返す。
func newUpdateFormView(deps Deps) http.Handler {
	update := func(w http.ResponseWriter, r *http.Request) {
		no, ok := articleNo(w, r)
		if !ok {
			return
		}
		s, ok := currentSession(w, r)
		if !ok {
			return
		}
		b, ok := bearer(w, deps.logger(), s)
		if !ok {
			return
		}
		var in model.ArticleInput
		if err := decodeBody(w, r, &in); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
			return
		}
		if err := deps.Articles.Update(r.Context(), b, no, in); err != nil {
			if writeValidationFailure(w, err) {
				return
			}
			writeBackendFailure(w, deps.logger(), no, err)
			return
		}
		writePage(w, r, http.StatusOK, route.UpdateForm, map[string]any{"updated": no})
	}

	return methods{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			no, ok := articleNo(w, r)
			if !ok {
				return
			}
			a, err := deps.Articles.Get(r.Context(), no)
			if err != nil {
				writeBackendFailure(w, deps.logger(), no, err)
				return
			}
			writePage(w, r, http.StatusOK, route.UpdateForm, map[string]any{
				"article": a,
				"form":    model.ArticleInput{Subject: a.Subject, Content: a.Content},
			})
		},
		http.MethodPost: update,
		http.MethodPut:  update,
	}
}

// writeValidationFailure は入力エラーであれば400を書き込んでtrueを返す。
func writeValidationFailure(w http.ResponseWriter, err error) bool {
	if errors.Is(err, article.ErrEmptySubject) || errors.Is(err, article.ErrEmptyContent) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return true
	}
	return false
}
