package user

import (
	"sync"
	"testing"
)

func TestStore_InitiallyEmpty(t *testing.T) {
	s := NewStore()

	if id, ok := s.ID(); ok {
		t.Errorf("ID() = %q, want unset", id)
	}
}

func TestStore_SetID_ThenID(t *testing.T) {
	s := NewStore()
	s.SetID("ssafy")

	id, ok := s.ID()
	if !ok || id != "ssafy" {
		t.Errorf("ID() = %q (ok=%v), want ssafy", id, ok)
	}
}

func TestStore_SetID_EmptyStringIsStillSet(t *testing.T) {
	s := NewStore()
	s.SetID("")

	if _, ok := s.ID(); !ok {
		t.Error("空文字列も値として保持されるべき")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.SetID("ssafy")
	s.Clear()

	if _, ok := s.ID(); ok {
		t.Error("Clear後に値が残っている")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetID("u")
		}()
		go func() {
			defer wg.Done()
			s.ID()
		}()
	}
	wg.Wait()

	if id, ok := s.ID(); !ok || id != "u" {
		t.Errorf("ID() = %q (ok=%v)", id, ok)
	}
}
