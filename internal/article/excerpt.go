package article

import (
	"strings"

	"golang.org/x/net/html"
)

// Excerpt はHTML本文からテキストだけを取り出し、空白を1つに畳んでn文字以内に切り詰める。
// 改行とブロック要素の境界は空白として扱う。
func Excerpt(content string, n int) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return truncateRunes(strings.Join(strings.Fields(b.String()), " "), n)
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br", "p", "li", "blockquote", "h2", "h3", "h4", "pre":
				b.WriteByte(' ')
			}
		}
	}
}
