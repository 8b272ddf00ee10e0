// Package view は画面遷移テーブルに登録する7つの画面を提供する。
// 各画面はHTMLではなく、画面名・パラメータ・セッション状態・データからなる
// JSONのページモデルを返す。
package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/hitoshi/board/internal/middleware"
	"github.com/hitoshi/board/internal/model"
	"github.com/hitoshi/board/internal/route"
	"github.com/hitoshi/board/internal/session"
)

// maxFormBytes は画面が受け付けるリクエストボディの最大バイト数。
const maxFormBytes = 1 << 20

// ArticleService は掲示板画面が使う記事操作。article.Serviceが実装する。
type ArticleService interface {
	List(ctx context.Context) ([]model.ArticleSummary, error)
	Get(ctx context.Context, no int64) (*model.Article, error)
	Create(ctx context.Context, bearer string, in model.ArticleInput) error
	Update(ctx context.Context, bearer string, no int64, in model.ArticleInput) error
	Delete(ctx context.Context, bearer string, no int64) error
}

// AuthRecorder はログイン・会員登録の試行結果を受け取る。メトリクス収集用。
type AuthRecorder interface {
	RecordAuthAttempt(op, outcome string)
}

// Deps は画面の生成に必要な依存。
type Deps struct {
	Articles ArticleService
	Logger   *slog.Logger
	Metrics  AuthRecorder // nil可
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) recordAuth(op, outcome string) {
	if d.Metrics != nil {
		d.Metrics.RecordAuthAttempt(op, outcome)
	}
}

// Entries は画面遷移テーブルに登録するエントリを返す。
// 各画面は最初の遷移時にLoaderで生成される。
func Entries(deps Deps) []route.Entry {
	return []route.Entry{
		{Path: "/", Name: route.Home, Load: func() (http.Handler, error) { return newHomeView(deps), nil }},
		{Path: "/login", Name: route.Login, Load: func() (http.Handler, error) { return newLoginView(deps), nil }},
		{Path: "/signup", Name: route.Signup, Load: func() (http.Handler, error) { return newSignupView(deps), nil }},
		{Path: "/articles", Name: route.Board, Load: articleLoader(deps, newBoardView)},
		{Path: "/articles/:id", Name: route.Detail, Load: articleLoader(deps, newDetailView)},
		{Path: "/articles/create", Name: route.CreateForm, Load: articleLoader(deps, newCreateFormView)},
		{Path: "/articles/update/:id", Name: route.UpdateForm, Load: articleLoader(deps, newUpdateFormView)},
	}
}

// articleLoader は記事サービスを必要とする画面のLoaderを返す。
func articleLoader(deps Deps, build func(Deps) http.Handler) route.Loader {
	return func() (http.Handler, error) {
		if deps.Articles == nil {
			return nil, errors.New("article service is not configured")
		}
		return build(deps), nil
	}
}

// Page は画面が返すページモデル。
type Page struct {
	View    string            `json:"view"`
	Params  map[string]string `json:"params"`
	Session SessionState      `json:"session"`
	Data    any               `json:"data,omitempty"`
}

// SessionState はページモデルに含めるセッションの状態。
type SessionState struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
}

// writePage は現在のセッション状態でページモデルを書き込む。
func writePage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	page := Page{View: name, Params: map[string]string{}, Data: data}
	if m, ok := route.FromContext(r.Context()); ok {
		page.Params = m.Params
	}
	if s, ok := session.FromContext(r.Context()); ok {
		page.Session.Authenticated = s.Auth.Authenticated()
		page.Session.UserID, _ = s.User.ID()
	}
	middleware.WriteJSON(w, status, page)
}

// methods はHTTPメソッドごとの処理。登録されていないメソッドには405を返す。
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := m[r.Method]
	if !ok && r.Method == http.MethodHead {
		h, ok = m[http.MethodGet]
	}
	if !ok {
		w.Header().Set("Allow", m.allow())
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError(r.Method))
		return
	}
	h(w, r)
}

func (m methods) allow() string {
	names := make([]string, 0, len(m)+1)
	for method := range m {
		names = append(names, method)
	}
	if _, ok := m[http.MethodGet]; ok {
		if _, ok := m[http.MethodHead]; !ok {
			names = append(names, http.MethodHead)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// currentSession はリクエストのセッションを返す。
// セッションミドルウェアを通過していない場合は500を書き込んでfalseを返す。
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		slog.Error("session missing from request context", slog.String("path", r.URL.Path))
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return s, true
}

// bearer はセッションのトークンからAuthorizationヘッダー用の資格情報を返す。
// 未ログインの場合は401を書き込んでfalseを返す。
// ログイン済みでもトークンから資格情報を取り出せない場合は、
// バックエンドの応答が想定外の形式なので502を書き込む。
func bearer(w http.ResponseWriter, logger *slog.Logger, s *session.Session) (string, bool) {
	token, ok := s.Auth.Token()
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return "", false
	}
	b := token.Bearer()
	if b == "" {
		logger.Error("stored token carries no credential",
			slog.String("session_id", s.ID),
			slog.Int("payload_bytes", len(token.Bytes())),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
		return "", false
	}
	return b, true
}

// articleNo はルートパラメータidを正の整数として解釈する。
// 不正な値の場合は400を書き込んでfalseを返す。
func articleNo(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var raw string
	if m, ok := route.FromContext(r.Context()); ok {
		raw = m.Param("id")
	}
	no, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || no <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidArticleIDError(raw))
		return 0, false
	}
	return no, true
}

// decodeBody はJSONまたはフォームのリクエストボディをvに読み込む。
// フォームの場合は各フィールドの最初の値をJSONのキーとして扱う。
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	// フォームの解析も含め、本文の読み取りはmaxFormBytesまで
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return fmt.Errorf("フォームの解析に失敗しました: %w", err)
		}
		fields := make(map[string]string, len(r.PostForm))
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				fields[k] = vs[0]
			}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, v)
	default:
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("リクエストボディが空です")
			}
			return fmt.Errorf("JSONの解析に失敗しました: %w", err)
		}
		return nil
	}
}

// writeBackendFailure は記事APIのエラーをHTTPレスポンスに変換する。
func writeBackendFailure(w http.ResponseWriter, logger *slog.Logger, no int64, err error) {
	var be *model.BackendError
	switch {
	case errors.Is(err, model.ErrArticleNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewArticleNotFoundError(no))
	case errors.Is(err, model.ErrPermissionDenied):
		reason := "この記事を変更する権限がありません。"
		if errors.As(err, &be) && be.Message != "" {
			reason = be.Message
		}
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError(reason))
	case errors.As(err, &be):
		logger.Error("記事APIの呼び出しに失敗しました",
			slog.String("op", be.Op),
			slog.Int("http_status", be.Status),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
	default:
		logger.Error("記事の処理に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
