package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/board/internal/session"
)

func newLimitedHandler(mw func(http.Handler) http.Handler) http.Handler {
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func serveWithSession(h http.Handler, method string, s *session.Session) *httptest.ResponseRecorder {
	req := withSession(httptest.NewRequest(method, "/login", nil), s)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_General_AllowsBurstThenReturns429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 2, AuthRate: 1, AuthBurst: 10, CleanupInterval: time.Minute})
	defer rl.Stop()
	h := newLimitedHandler(rl.GeneralMiddleware())
	s := newTestManager(t).Create()

	for i := 0; i < 2; i++ {
		if w := serveWithSession(h, http.MethodGet, s); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := serveWithSession(h, http.MethodGet, s)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("429レスポンスがJSONではない: %v", err)
	}
	if body.Code != "RATE_LIMITED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimiter_General_IsolatesSessions(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, AuthRate: 1, AuthBurst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()
	h := newLimitedHandler(rl.GeneralMiddleware())
	m := newTestManager(t)
	a, b := m.Create(), m.Create()

	serveWithSession(h, http.MethodGet, a)
	if w := serveWithSession(h, http.MethodGet, a); w.Code != http.StatusTooManyRequests {
		t.Errorf("session a: status = %d, want 429", w.Code)
	}
	if w := serveWithSession(h, http.MethodGet, b); w.Code != http.StatusOK {
		t.Errorf("session b: status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_Auth_OnlyLimitsSubmissions(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 100, GeneralBurst: 100, AuthRate: rate10PerMinute, AuthBurst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()
	h := newLimitedHandler(rl.AuthMiddleware())
	s := newTestManager(t).Create()

	for i := 0; i < 5; i++ {
		if w := serveWithSession(h, http.MethodGet, s); w.Code != http.StatusOK {
			t.Fatalf("GET %d: status = %d, フォーム表示は制限しない", i, w.Code)
		}
	}
	for i := 0; i < 2; i++ {
		if w := serveWithSession(h, http.MethodPost, s); w.Code != http.StatusOK {
			t.Errorf("POST %d: status = %d, want 200", i, w.Code)
		}
	}
	w := serveWithSession(h, http.MethodPost, s)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	// 10 req/min なので1トークンの補充に6秒
	if w.Header().Get("Retry-After") != "6" {
		t.Errorf("Retry-After = %q, want 6", w.Header().Get("Retry-After"))
	}
	if rl.AuthLimiterCount() != 1 {
		t.Errorf("AuthLimiterCount = %d, want 1", rl.AuthLimiterCount())
	}
}

func TestRateLimiter_Auth_SharedAcrossSessionsFromSameAddress(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 100, GeneralBurst: 100, AuthRate: rate10PerMinute, AuthBurst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()
	h := newLimitedHandler(rl.AuthMiddleware())
	m := newTestManager(t)

	submit := func(addr string) int {
		// Cookieを返さないクライアントは毎回新しいセッションを得る
		req := withSession(httptest.NewRequest(http.MethodPost, "/login", nil), m.Create())
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if code := submit("198.51.100.7:40001"); code != http.StatusOK {
		t.Fatalf("1回目: status = %d, want 200", code)
	}
	for i, port := range []string{"40002", "40003", "40004"} {
		if code := submit("198.51.100.7:" + port); code != http.StatusTooManyRequests {
			t.Errorf("request %d: status = %d, セッションやポートが変わっても同じアドレスは制限されるべき", i, code)
		}
	}
	if code := submit("198.51.100.8:40001"); code != http.StatusOK {
		t.Errorf("別アドレス: status = %d, want 200", code)
	}
	if rl.AuthLimiterCount() != 2 {
		t.Errorf("AuthLimiterCount = %d, want 2", rl.AuthLimiterCount())
	}
}

func TestRateLimiter_AllowSessionCreation_LimitsPerAddress(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{SessionRate: rate10PerMinute, SessionBurst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()

	allow := func(addr string) (bool, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		return rl.AllowSessionCreation(w, req), w
	}

	for i := 0; i < 2; i++ {
		if ok, _ := allow("203.0.113.5:5000"); !ok {
			t.Fatalf("request %d: バースト内は許可されるべき", i)
		}
	}
	ok, w := allow("203.0.113.5:5001")
	if ok {
		t.Fatal("バーストを超えた発行は拒否されるべき")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "6" {
		t.Errorf("Retry-After = %q, want 6", w.Header().Get("Retry-After"))
	}
	if ok, _ := allow("203.0.113.6:5000"); !ok {
		t.Error("別アドレスは独立して許可されるべき")
	}
	if rl.SessionLimiterCount() != 2 {
		t.Errorf("SessionLimiterCount = %d, want 2", rl.SessionLimiterCount())
	}
}

func TestClientAddr_StripsPort(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"unix-socket", "unix-socket"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remote
		if got := clientAddr(req); got != tc.want {
			t.Errorf("clientAddr(%q) = %q, want %q", tc.remote, got, tc.want)
		}
	}
}

func TestRateLimiter_NoSession_FallsBackToRemoteAddr(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()
	h := newLimitedHandler(rl.GeneralMiddleware())

	serve := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if serve("192.0.2.1:1000") != http.StatusOK {
		t.Error("1回目は許可されるべき")
	}
	if serve("192.0.2.1:1000") != http.StatusTooManyRequests {
		t.Error("同じアドレスの2回目は拒否されるべき")
	}
	if serve("192.0.2.2:1000") != http.StatusOK {
		t.Error("別アドレスは独立して許可されるべき")
	}
}

func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 10, GeneralBurst: 10, AuthRate: 10, AuthBurst: 10, CleanupInterval: time.Minute})
	defer rl.Stop()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }
	h := newLimitedHandler(rl.GeneralMiddleware())
	serveWithSession(h, http.MethodGet, newTestManager(t).Create())

	rl.now = func() time.Time { return base.Add(90 * time.Second) }
	rl.cleanup()
	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("TTL内のエントリが削除された: count = %d", rl.GeneralLimiterCount())
	}

	rl.now = func() time.Time { return base.Add(3 * time.Minute) }
	rl.cleanup()
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("期限切れエントリが残っている: count = %d", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestNewRateLimiterConfig_ConvertsPerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)

	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d, want 2/120", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthBurst != 10 {
		t.Errorf("AuthBurst = %d, want 10", cfg.AuthBurst)
	}
	if cfg.SessionRate != 0.5 || cfg.SessionBurst != 30 {
		t.Errorf("session = %v/%d, want 0.5/30", cfg.SessionRate, cfg.SessionBurst)
	}
	if DefaultRateLimiterConfig() != cfg {
		t.Error("DefaultRateLimiterConfig は 120/10 と一致するべき")
	}
}

const rate10PerMinute = 10.0 / 60.0
