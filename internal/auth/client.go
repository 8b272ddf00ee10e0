package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/board/internal/model"
)

const (
	loginPath  = "/members/login"
	signupPath = "/members/signup"
	// maxBodySize はバックエンドのレスポンスとして読み込む最大バイト数。
	maxBodySize = 1 << 20
)

// Observer はバックエンド呼び出しの結果を受け取る。メトリクス収集用。
type Observer interface {
	RecordBackendCall(op string, statusCode int, duration time.Duration)
}

// Client は会員APIのクライアント。
// 1回の呼び出しにつき1回だけリクエストを送り、リトライは行わない。
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

// reply はバックエンド呼び出しの結果。
// okがtrueのときbodyはトークンのペイロード、falseのときmessageが失敗理由。
type reply struct {
	ok      bool
	body    []byte
	message string
}

// login はPOST /members/login を呼び出す。
func (c *Client) login(ctx context.Context, cred model.Credentials) (reply, error) {
	return c.post(ctx, "login", loginPath, cred)
}

// signup はPOST /members/signup を呼び出す。
func (c *Client) signup(ctx context.Context, profile model.Profile) (reply, error) {
	return c.post(ctx, "signup", signupPath, profile)
}

// errorBody はバックエンドのエラーレスポンス。
type errorBody struct {
	Message *string `json:"message"`
}

func (c *Client) post(ctx context.Context, op, path string, payload any) (reply, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return reply{}, &model.BackendError{Op: op, Err: fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return reply{}, &model.BackendError{Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		c.logger.Error("会員APIの呼び出しに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return reply{}, &model.BackendError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return reply{}, &model.BackendError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return reply{ok: true, body: body}, nil
	}

	// 失敗時はバックエンドが {"message": "..."} を返す前提。
	// 構造化されていない失敗は呼び出し元にエラーとして返す。
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Message == nil {
		c.logger.Error("会員APIが解釈できないエラーレスポンスを返しました",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
		)
		if err == nil {
			err = errors.New("error body has no message field")
		}
		return reply{}, &model.BackendError{Op: op, Status: resp.StatusCode, Err: err}
	}

	c.logger.Info("会員APIが失敗を返しました",
		slog.String("op", op),
		slog.Int("http_status", resp.StatusCode),
	)
	return reply{ok: false, message: *eb.Message}, nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.RecordBackendCall(op, status, time.Since(start))
	}
}
