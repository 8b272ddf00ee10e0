package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestCredentials_Normalize_ComposesHangulAndTrims(t *testing.T) {
	// "한" をNFD（字母分解）で表現したもの
	decomposed := "\u1112\u1161\u11ab"
	c := Credentials{ID: "  " + decomposed + "  ", Password: " secret "}

	got := c.Normalize()

	if got.ID != "한" {
		t.Errorf("ID = %q, want %q", got.ID, "한")
	}
	if got.Password != " secret " {
		t.Errorf("Password = %q, should be left untouched", got.Password)
	}
}

func TestProfile_Normalize_TrimsIDAndName(t *testing.T) {
	p := Profile{ID: " ssafy ", Password: "pw", Name: " 김싸피 "}

	got := p.Normalize()

	if got.ID != "ssafy" {
		t.Errorf("ID = %q, want %q", got.ID, "ssafy")
	}
	if got.Name != "김싸피" {
		t.Errorf("Name = %q, want %q", got.Name, "김싸피")
	}
}

func TestCredentials_JSONFieldNames(t *testing.T) {
	body, err := json.Marshal(Credentials{ID: "u1", Password: "p1"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(body) != `{"userId":"u1","userPwd":"p1"}` {
		t.Errorf("body = %s", body)
	}
}

func TestLocalTime_UnmarshalJSON_AcceptsZonelessTimestamp(t *testing.T) {
	var a Article
	raw := `{"articleNo":3,"userId":"ssafy","subject":"s","content":"c","hit":7,"registerTime":"2024-05-01T09:30:15"}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)
	if !a.RegisterTime.Equal(want) {
		t.Errorf("RegisterTime = %v, want %v", a.RegisterTime.Time, want)
	}
	if a.No != 3 || a.Hit != 7 {
		t.Errorf("No/Hit = %d/%d, want 3/7", a.No, a.Hit)
	}
}

func TestLocalTime_UnmarshalJSON_AcceptsFractionAndRFC3339(t *testing.T) {
	for _, in := range []string{`"2024-05-01T09:30:15.123456"`, `"2024-05-01T09:30:15Z"`} {
		var lt LocalTime
		if err := json.Unmarshal([]byte(in), &lt); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", in, err)
		}
	}
}

func TestLocalTime_UnmarshalJSON_NullIsZero(t *testing.T) {
	var lt LocalTime
	if err := json.Unmarshal([]byte(`null`), &lt); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !lt.IsZero() {
		t.Errorf("expected zero time, got %v", lt.Time)
	}
}

func TestLocalTime_UnmarshalJSON_RejectsGarbage(t *testing.T) {
	var lt LocalTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &lt); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestBackendError_Is_NotFound(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &BackendError{Op: "get_article", Status: http.StatusNotFound, Message: "게시글을 찾을 수 없습니다"})

	if !errors.Is(err, ErrArticleNotFound) {
		t.Error("expected errors.Is(err, ErrArticleNotFound) to be true for 404")
	}

	other := &BackendError{Op: "get_article", Status: http.StatusUnauthorized}
	if errors.Is(other, ErrArticleNotFound) {
		t.Error("401 must not be treated as not found")
	}
}

func TestBackendError_Is_PermissionDenied(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		err := &BackendError{Op: "update_article", Status: status, Message: "권한이 없습니다"}
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("status %d: expected ErrPermissionDenied", status)
		}
	}
	if errors.Is(&BackendError{Op: "update_article", Status: http.StatusNotFound}, ErrPermissionDenied) {
		t.Error("404 must not be treated as permission denied")
	}
}

func TestBackendError_WrappedNotFoundCause(t *testing.T) {
	err := &BackendError{Op: "get_article", Status: http.StatusInternalServerError, Err: ErrArticleNotFound}
	if !errors.Is(err, ErrArticleNotFound) {
		t.Error("expected wrapped ErrArticleNotFound to match")
	}
}

func TestBackendError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &BackendError{Op: "login", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected BackendError to unwrap to its cause")
	}
	if err.Error() != "login: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}
