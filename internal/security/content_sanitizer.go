// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は掲示板記事の本文をサニタイズする。
// bluemondayの許可リストポリシーで、安全なタグと属性のみを通過させる。
// Egressはバックエンド向けHTTPクライアントの接続先を制限する。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// httpsOnly はimgのsrcに許可するURLの形式。
var httpsOnly = regexp.MustCompile(`^https://`)

// ContentSanitizer は記事本文のサニタイズ機能のインターフェース。
type ContentSanitizer interface {
	// Sanitize は本文を安全なHTMLにして返す。同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerの実装。
// bluemondayのPolicyはSanitize呼び出しに対してスレッドセーフ。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は記事本文向けのポリシーでContentSanitizerを生成する。
//   - 許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em, b, i, u, s, del, h2-h4, a, img
//   - aのhrefは相対URL（記事間リンク）を許可し、外部リンクにはtarget="_blank"とrelを付与する
//   - imgのsrcはhttpsのみ
//   - script, iframe, style, on*属性は許可リストにないため除去される
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u", "s", "del",
		"h2", "h3", "h4",
	)

	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	p.AllowAttrs("href").OnElements("a")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(httpsOnly).OnElements("img")

	return &contentSanitizer{policy: p}
}

// Sanitize は本文を安全なHTMLにして返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
