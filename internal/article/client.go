// Package article は掲示板バックエンドの記事APIクライアントと、
// 画面向けに記事を整形するサービスを提供する。
package article

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/board/internal/model"
)

const (
	articlesPath = "/articles"
	maxBodySize  = 4 << 20
	// missingArticleMessage はバックエンドが存在しない記事に対して500で返すメッセージ。
	missingArticleMessage = "Article does not exist"
)

// Observer はバックエンド呼び出しの結果を受け取る。メトリクス収集用。
type Observer interface {
	RecordBackendCall(op string, statusCode int, duration time.Duration)
}

// Client は記事APIのクライアント。リトライは行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	observer   Observer
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾のスラッシュを含まない形式（例: http://localhost:8080/api）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// WithObserver はバックエンド呼び出しの観測先を設定する。
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// List は全記事を取得する。
func (c *Client) List(ctx context.Context) ([]model.Article, error) {
	var articles []model.Article
	if err := c.do(ctx, "list_articles", http.MethodGet, articlesPath, "", nil, &articles); err != nil {
		return nil, err
	}
	if articles == nil {
		articles = []model.Article{}
	}
	return articles, nil
}

// Get は記事を1件取得する。
func (c *Client) Get(ctx context.Context, no int64) (*model.Article, error) {
	var a model.Article
	if err := c.do(ctx, "get_article", http.MethodGet, articlePath(no), "", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create は記事を作成する。作成者はバックエンドがトークンから決定する。
func (c *Client) Create(ctx context.Context, bearer string, in model.ArticleInput) error {
	return c.do(ctx, "create_article", http.MethodPost, articlesPath, bearer, in, nil)
}

// Update は記事を更新する。
func (c *Client) Update(ctx context.Context, bearer string, no int64, in model.ArticleInput) error {
	return c.do(ctx, "update_article", http.MethodPut, articlePath(no), bearer, in, nil)
}

// Delete は記事を削除する。
func (c *Client) Delete(ctx context.Context, bearer string, no int64) error {
	return c.do(ctx, "delete_article", http.MethodDelete, articlePath(no), bearer, nil, nil)
}

func articlePath(no int64) string {
	return articlesPath + "/" + strconv.FormatInt(no, 10)
}

// do は1回のリクエストを送信する。
// payloadがnilでなければJSONで送信し、outがnilでなければ2xxのボディをデコードする。
func (c *Client) do(ctx context.Context, op, method, path, bearer string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return &model.BackendError{Op: op, Err: fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)}
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &model.BackendError{Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		c.logger.Error("記事APIの呼び出しに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return &model.BackendError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &model.BackendError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		be := &model.BackendError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
		if be.Message == missingArticleMessage {
			be.Err = model.ErrArticleNotFound
		}
		c.logger.Warn("記事APIがエラーステータスを返しました",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", be.Message),
		)
		return be
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("記事APIのレスポンスのパースに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return &model.BackendError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}
	return nil
}

// errorMessage はエラーレスポンスからメッセージを取り出す。
// JSONの {"message": ...} とプレーンテキストの両方を受け付ける。
func errorMessage(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}
	var eb struct {
		Message string `json:"message"`
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &eb); err == nil {
			return eb.Message
		}
	}
	return string(trimmed)
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.RecordBackendCall(op, status, time.Since(start))
	}
}
