package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Token はバックエンドが返した認証ペイロード。
// 形式はバックエンドが決めるため、レスポンスボディをそのまま保持する。
type Token struct {
	raw []byte
}

// NewToken はレスポンスボディからTokenを生成する。前後の空白は除去する。
func NewToken(body []byte) Token {
	trimmed := bytes.TrimSpace(body)
	raw := make([]byte, len(trimmed))
	copy(raw, trimmed)
	return Token{raw: raw}
}

// Bytes は保持しているペイロードのコピーを返す。
func (t Token) Bytes() []byte {
	out := make([]byte, len(t.raw))
	copy(out, t.raw)
	return out
}

// String はペイロードを文字列で返す。
func (t Token) String() string { return string(t.raw) }

// bearerFields はJSONオブジェクトのペイロードから資格情報を探すフィールド名。
var bearerFields = []string{"jwt", "token", "accessToken", "access_token"}

// Bearer はAuthorizationヘッダーに載せる資格情報を返す。
//   - JSON文字列: アンクォートした値
//   - JSONオブジェクト: jwt / token / accessToken / access_token のいずれか
//   - それ以外: ペイロードそのもの
func (t Token) Bearer() string {
	if len(t.raw) == 0 {
		return ""
	}
	switch t.raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t.raw, &s); err == nil {
			return s
		}
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(t.raw, &obj); err == nil {
			for _, field := range bearerFields {
				if s, ok := obj[field].(string); ok && s != "" {
					return s
				}
			}
			return ""
		}
	}
	return string(t.raw)
}

// Subject はJWTのsubクレームを返す。
// 署名はバックエンドが検証するため、ここでは検証せずに読み取るだけ。
func (t Token) Subject() (string, bool) {
	bearer := strings.TrimPrefix(t.Bearer(), "Bearer ")
	if strings.Count(bearer, ".") != 2 {
		return "", false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearer, claims); err != nil {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}
