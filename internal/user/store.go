// Package user は表示用のログインユーザー識別子を保持する。
package user

import "sync"

// Store は1セッション分のユーザーIDを保持する。
// 値の設定は画面などの外部の呼び出し元が行い、検証やフックは持たない。
type Store struct {
	mu sync.RWMutex
	id *string
}

// NewStore は値を持たない状態のStoreを生成する。
func NewStore() *Store {
	return &Store{}
}

// ID は保持しているユーザーIDを返す。未設定の場合はfalse。
func (s *Store) ID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.id == nil {
		return "", false
	}
	return *s.id, true
}

// SetID はユーザーIDを設定する。
func (s *Store) SetID(id string) {
	s.mu.Lock()
	s.id = &id
	s.mu.Unlock()
}

// Clear はユーザーIDを未設定に戻す。
func (s *Store) Clear() {
	s.mu.Lock()
	s.id = nil
	s.mu.Unlock()
}
