// Package session はセッションごとの状態（認証トークンとユーザーID）を管理する。
// 画面はプロセス全体の共有状態ではなく、リクエストコンテキスト経由で
// 自分のセッションを受け取る。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/board/internal/auth"
	"github.com/hitoshi/board/internal/user"
)

// Session は1利用者分の状態。
// AuthとUserは互いに独立しており、同時に変更されることは保証しない。
type Session struct {
	ID        string
	Auth      *auth.Store
	User      *user.Store
	CreatedAt time.Time

	mu         sync.Mutex
	lastAccess time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// LastAccess は最終アクセス時刻を返す。
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// ManagerConfig はセッション管理の設定。
type ManagerConfig struct {
	MaxIdle          time.Duration // 最終アクセスからの有効期間
	AnonymousMaxIdle time.Duration // 未ログインセッションの有効期間。0以下またはMaxIdle超ならMaxIdle
	CleanupInterval  time.Duration // 期限切れセッションの掃除間隔
}

// DefaultManagerConfig はデフォルト設定を返す。
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxIdle:          24 * time.Hour,
		AnonymousMaxIdle: 30 * time.Minute,
		CleanupInterval:  5 * time.Minute,
	}
}

// Manager はメモリ上のセッションレジストリ。
// プロセス再起動をまたいだ永続化は行わない。
type Manager struct {
	config ManagerConfig
	client *auth.Client
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager は新しいManagerを生成し、バックグラウンドで期限切れセッションの掃除を開始する。
// clientは全セッションのauth.Storeで共有する。
func NewManager(client *auth.Client, config ManagerConfig) *Manager {
	if config.MaxIdle <= 0 {
		config.MaxIdle = DefaultManagerConfig().MaxIdle
	}
	if config.AnonymousMaxIdle <= 0 || config.AnonymousMaxIdle > config.MaxIdle {
		config.AnonymousMaxIdle = config.MaxIdle
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultManagerConfig().CleanupInterval
	}
	m := &Manager{
		config:   config,
		client:   client,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// Stop は掃除のバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Create は空のセッションを新規作成する。
func (m *Manager) Create() *Session {
	now := m.now()
	s := &Session{
		ID:         uuid.NewString(),
		Auth:       auth.NewStore(m.client),
		User:       user.NewStore(),
		CreatedAt:  now,
		lastAccess: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s
}

// Get はセッションを取得し、最終アクセス時刻を更新する。
// 存在しない、または期限切れの場合はfalseを返す。
func (m *Manager) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := m.now()
	if m.expired(s, now) {
		m.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Delete はセッションを破棄する。存在しない場合は何もしない。
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count は現在管理しているセッション数を返す。
// テストおよびメトリクス用。
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cleanupLoop はバックグラウンドで期限切れセッションを定期的に削除する。
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCh:
			return
		}
	}
}

// cleanup は有効期間を過ぎたセッションを削除する。
func (m *Manager) cleanup() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
		}
	}
}

// expired はセッションが有効期間を過ぎたかを返す。
// 未ログインのセッションはAnonymousMaxIdleで判定する。
func (m *Manager) expired(s *Session, now time.Time) bool {
	limit := m.config.MaxIdle
	if !s.Auth.Authenticated() {
		limit = m.config.AnonymousMaxIdle
	}
	return now.Sub(s.LastAccess()) > limit
}

// contextKey はコンテキストにセッションを格納するための型安全なキー。
type contextKey struct{}

// NewContext はセッションをコンテキストに格納する。
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext はコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
