package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedJWT(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	s, err := token.SignedString([]byte("test-secret-key-test-secret-key!"))
	if err != nil {
		t.Fatalf("JWTの生成に失敗: %v", err)
	}
	return s
}

func TestNewToken_TrimsWhitespace(t *testing.T) {
	tok := NewToken([]byte("  {\"jwt\":\"abc\"}\n"))
	if tok.String() != `{"jwt":"abc"}` {
		t.Errorf("String() = %q", tok.String())
	}
}

func TestToken_Bytes_ReturnsCopy(t *testing.T) {
	tok := NewToken([]byte("abc"))
	b := tok.Bytes()
	b[0] = 'x'
	if tok.String() != "abc" {
		t.Errorf("Bytes() の変更がTokenに影響した: %q", tok.String())
	}
}

func TestToken_Bearer(t *testing.T) {
	cases := map[string]string{
		`{"jwt":"abc"}`:         "abc",
		`{"token":"t1"}`:        "t1",
		`{"accessToken":"t2"}`:  "t2",
		`{"access_token":"t3"}`: "t3",
		`{"other":"x"}`:         "",
		`"quoted"`:              "quoted",
		`plain.jwt.text`:        "plain.jwt.text",
		``:                      "",
	}
	for in, want := range cases {
		if got := NewToken([]byte(in)).Bearer(); got != want {
			t.Errorf("Bearer(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestToken_Subject_FromRawJWT(t *testing.T) {
	raw := signedJWT(t, "ssafy")

	sub, ok := NewToken([]byte(raw)).Subject()
	if !ok {
		t.Fatal("subクレームを取得できなかった")
	}
	if sub != "ssafy" {
		t.Errorf("sub = %q, want %q", sub, "ssafy")
	}
}

func TestToken_Subject_FromJSONObject(t *testing.T) {
	raw := signedJWT(t, "u1")

	sub, ok := NewToken([]byte(`{"jwt":"` + raw + `"}`)).Subject()
	if !ok || sub != "u1" {
		t.Errorf("sub = %q (ok=%v), want u1", sub, ok)
	}
}

func TestToken_Subject_NotAJWT(t *testing.T) {
	if _, ok := NewToken([]byte(`{"jwt":"abc"}`)).Subject(); ok {
		t.Error("JWTでないトークンからsubを取得できてはならない")
	}
}
