package article

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/board/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewClient(server.Client(), logger, server.URL+"/api/")
}

type stubObserver struct {
	mu    sync.Mutex
	ops   []string
	codes []int
}

func (o *stubObserver) RecordBackendCall(op string, statusCode int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
	o.codes = append(o.codes, statusCode)
}

func TestClient_List_DecodesArticles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/articles" {
			t.Errorf("request = %s %s, want GET /api/articles", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("一覧取得にAuthorizationヘッダーは不要")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"articleNo":2,"userId":"ssafy","subject":"둘째","content":"b","hit":3,"registerTime":"2024-05-01T10:00:00"},
			{"articleNo":1,"userId":"kim","subject":"첫째","content":"a","hit":0,"registerTime":null}
		]`))
	})

	articles, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len = %d, want 2", len(articles))
	}
	if articles[0].No != 2 || articles[0].Subject != "둘째" || articles[0].Hit != 3 {
		t.Errorf("articles[0] = %+v", articles[0])
	}
	if articles[0].RegisterTime.Hour() != 10 {
		t.Errorf("registerTime = %v", articles[0].RegisterTime)
	}
	if !articles[1].RegisterTime.IsZero() {
		t.Error("nullの登録日時はゼロ値であるべき")
	}
}

func TestClient_List_EmptyBodyReturnsEmptySlice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	articles, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if articles == nil || len(articles) != 0 {
		t.Errorf("articles = %#v, want empty non-nil slice", articles)
	}
}

func TestClient_Get_NotFoundStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("게시글을 찾을 수 없습니다"))
	})

	_, err := client.Get(context.Background(), 99)
	if !errors.Is(err, model.ErrArticleNotFound) {
		t.Fatalf("error = %v, want ErrArticleNotFound", err)
	}
	var be *model.BackendError
	if !errors.As(err, &be) || be.Message != "게시글을 찾을 수 없습니다" {
		t.Errorf("BackendError = %+v", be)
	}
}

func TestClient_Get_MissingArticleMessageIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/articles/7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"Article does not exist"}`))
	})

	_, err := client.Get(context.Background(), 7)
	if !errors.Is(err, model.ErrArticleNotFound) {
		t.Errorf("error = %v, want ErrArticleNotFound", err)
	}
}

func TestClient_Get_MalformedJSON_ReturnsBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"articleNo":`))
	})

	_, err := client.Get(context.Background(), 1)
	var be *model.BackendError
	if !errors.As(err, &be) || be.Op != "get_article" {
		t.Fatalf("error = %v, want *model.BackendError for get_article", err)
	}
}

func TestClient_Create_SendsBearerAndJSON(t *testing.T) {
	var got model.ArticleInput
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/articles" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := client.Create(context.Background(), "tok", model.ArticleInput{Subject: "제목", Content: "내용"})
	if err != nil {
		t.Fatalf("Create がエラーを返した: %v", err)
	}
	if got.Subject != "제목" || got.Content != "내용" {
		t.Errorf("送信ボディ = %+v", got)
	}
}

func TestClient_Update_PermissionDenied(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/articles/3" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("권한이 없습니다"))
	})

	err := client.Update(context.Background(), "tok", 3, model.ArticleInput{Subject: "s", Content: "c"})
	if !errors.Is(err, model.ErrPermissionDenied) {
		t.Errorf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestClient_Delete_RecordsObserver(t *testing.T) {
	obs := &stubObserver{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/articles/5" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}).WithObserver(obs)

	if err := client.Delete(context.Background(), "tok", 5); err != nil {
		t.Fatalf("Delete がエラーを返した: %v", err)
	}
	if len(obs.ops) != 1 || obs.ops[0] != "delete_article" || obs.codes[0] != http.StatusOK {
		t.Errorf("observer ops = %v codes = %v", obs.ops, obs.codes)
	}
}

func TestClient_TransportError_ReturnsBackendError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(&http.Client{Timeout: time.Second}, nil, url)
	_, err := client.List(context.Background())

	var be *model.BackendError
	if !errors.As(err, &be) || be.Status != 0 {
		t.Fatalf("error = %v, want transport BackendError", err)
	}
}

func TestErrorMessage_AcceptsJSONAndPlainText(t *testing.T) {
	cases := map[string]string{
		`{"message":"Subject cannot be empty"}`: "Subject cannot be empty",
		"  Invalid token \n":                    "Invalid token",
		"":                                      "",
		`{"error":"x"}`:                         "",
	}
	for body, want := range cases {
		if got := errorMessage([]byte(body)); got != want {
			t.Errorf("errorMessage(%q) = %q, want %q", body, got, want)
		}
	}
}
