package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// 認証操作の成功メッセージ。画面にそのまま表示される。
const (
	MessageLoginSucceeded  = "로그인에 성공했습니다."
	MessageSignupSucceeded = "회원가입에 성공했습니다."
	MessageLogoutSucceeded = "로그아웃에 성공했습니다."
)

// Result は認証操作の結果を表す。
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Credentials はログイン要求の資格情報。
type Credentials struct {
	ID       string `json:"userId"`
	Password string `json:"userPwd"`
}

// Normalize はIDの前後空白を除去しNFC正規化したコピーを返す。
// パスワードは変更しない。
func (c Credentials) Normalize() Credentials {
	c.ID = normalizeText(c.ID)
	return c
}

// Profile は会員登録要求のプロフィール。
type Profile struct {
	ID       string `json:"userId"`
	Password string `json:"userPwd"`
	Name     string `json:"userName"`
}

// Normalize はIDと名前の前後空白を除去しNFC正規化したコピーを返す。
func (p Profile) Normalize() Profile {
	p.ID = normalizeText(p.ID)
	p.Name = normalizeText(p.Name)
	return p
}

// normalizeText はNFD入力（macOSのハングル入力など）をNFCに揃える。
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
