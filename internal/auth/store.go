// Package auth はログイン・会員登録・ログアウトの認証フローと、
// セッションごとの認証トークン保持を提供する。
package auth

import (
	"context"
	"sync"

	"github.com/hitoshi/board/internal/model"
)

// Store は1セッション分の認証トークンを保持する。
// トークンは「あり」か「なし」のどちらかで、有効期限や更新は扱わない。
// プロセス再起動をまたいだ永続化は行わない。
type Store struct {
	client *Client

	mu    sync.RWMutex
	token *Token
}

// NewStore はトークンを持たない状態のStoreを生成する。
// clientは複数のStoreで共有してよい。
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// Login はバックエンドにログインを要求する。
//   - 2xx: レスポンスボディをトークンとして保存し、成功結果を返す
//   - 失敗レスポンス（{"message": ...}）: トークンを変更せず、失敗結果を返す
//   - 通信エラーや解釈できないレスポンス: トークンを変更せず、*model.BackendError を返す
func (s *Store) Login(ctx context.Context, cred model.Credentials) (model.Result, error) {
	r, err := s.client.login(ctx, cred.Normalize())
	if err != nil {
		return model.Result{}, err
	}
	return s.apply(r, model.MessageLoginSucceeded), nil
}

// Signup はバックエンドに会員登録を要求する。
// 結果の扱いはLoginと同じで、成功時は同じトークン枠に保存する。
func (s *Store) Signup(ctx context.Context, profile model.Profile) (model.Result, error) {
	r, err := s.client.signup(ctx, profile.Normalize())
	if err != nil {
		return model.Result{}, err
	}
	return s.apply(r, model.MessageSignupSucceeded), nil
}

// Logout はトークンを無条件に破棄する。常に成功する。
func (s *Store) Logout() model.Result {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
	return model.Result{Success: true, Message: model.MessageLogoutSucceeded}
}

// Token は保持しているトークンを返す。未ログインの場合はfalse。
func (s *Store) Token() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return Token{}, false
	}
	return *s.token, true
}

// Authenticated はトークンを保持しているかどうかを返す。
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil
}

func (s *Store) apply(r reply, successMessage string) model.Result {
	if !r.ok {
		return model.Result{Success: false, Message: r.message}
	}
	token := NewToken(r.body)
	s.mu.Lock()
	s.token = &token
	s.mu.Unlock()
	return model.Result{Success: true, Message: successMessage}
}
