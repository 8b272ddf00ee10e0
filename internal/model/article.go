package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Article は掲示板の記事を表す。
type Article struct {
	No           int64     `json:"articleNo"`
	UserID       string    `json:"userId"`
	Subject      string    `json:"subject"`
	Content      string    `json:"content"`
	Hit          int64     `json:"hit"`
	RegisterTime LocalTime `json:"registerTime"`
}

// ArticleSummary は一覧表示用の記事要約。
type ArticleSummary struct {
	No           int64     `json:"articleNo"`
	UserID       string    `json:"userId"`
	Subject      string    `json:"subject"`
	Excerpt      string    `json:"excerpt"`
	Hit          int64     `json:"hit"`
	RegisterTime LocalTime `json:"registerTime"`
}

// ArticleInput は記事の作成・更新リクエストの本文。
type ArticleInput struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// localTimeLayouts はバックエンドが返す日時の形式。
// タイムゾーンなしの形式はUTCとして解釈する。
var localTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// LocalTime はタイムゾーン表記のない日時も受け付けるtime.Time。
type LocalTime struct {
	time.Time
}

// UnmarshalJSON はnull、RFC 3339、タイムゾーンなしの日時を受け付ける。
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("registerTime must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range localTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported registerTime format: %q", s)
}

// MarshalJSON はRFC 3339で出力する。ゼロ値はnull。
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}
