package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/board/internal/middleware"
	"github.com/hitoshi/board/internal/model"
	"github.com/hitoshi/board/internal/route"
)

// NavigationRecorder は画面遷移の結果を受け取る。メトリクス収集用。
type NavigationRecorder interface {
	RecordNavigation(route string)
	RecordNavigationMiss()
}

// NavigationHandler はリクエストパスを画面遷移テーブルで解決し、対応する画面に処理を委譲する。
// 一致した画面は最初の遷移時に生成される。
type NavigationHandler struct {
	table    *route.Table
	recorder NavigationRecorder
	logger   *slog.Logger
}

// NewNavigationHandler はNavigationHandlerを生成する。recorderはnil可。
func NewNavigationHandler(table *route.Table, recorder NavigationRecorder, logger *slog.Logger) *NavigationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NavigationHandler{table: table, recorder: recorder, logger: logger}
}

// ServeHTTP は画面遷移を行う。
//   - 一致するルートがない: 404 ROUTE_NOT_FOUND
//   - 画面の生成に失敗: 500
func (h *NavigationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m, err := h.table.Resolve(r.URL.EscapedPath())
	if err != nil {
		if h.recorder != nil {
			h.recorder.RecordNavigationMiss()
		}
		if !errors.Is(err, route.ErrNotFound) {
			h.logger.Error("route resolution failed", slog.String("error", err.Error()))
		}
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError(r.URL.Path))
		return
	}

	view, err := m.View()
	if err != nil {
		h.logger.Error("failed to load view",
			slog.String("route", m.Name()),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordNavigation(m.Name())
	}
	view.ServeHTTP(w, r.WithContext(route.NewContext(r.Context(), m)))
}
