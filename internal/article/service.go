package article

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/hitoshi/board/internal/model"
	"github.com/hitoshi/board/internal/security"
)

// ExcerptLength は一覧に表示する本文抜粋の最大文字数（rune単位）。
const ExcerptLength = 100

var (
	ErrEmptySubject = errors.New("subject cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
)

// Backend は記事APIの操作。*Clientが実装する。
type Backend interface {
	List(ctx context.Context) ([]model.Article, error)
	Get(ctx context.Context, no int64) (*model.Article, error)
	Create(ctx context.Context, bearer string, in model.ArticleInput) error
	Update(ctx context.Context, bearer string, no int64, in model.ArticleInput) error
	Delete(ctx context.Context, bearer string, no int64) error
}

// Service は画面向けの記事操作を提供する。
// 本文はバックエンドから受け取った時点でサニタイズする。
type Service struct {
	backend   Backend
	sanitizer security.ContentSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(backend Backend, sanitizer security.ContentSanitizer) *Service {
	return &Service{backend: backend, sanitizer: sanitizer}
}

// List は記事一覧を本文の抜粋付きで返す。順序はバックエンドの返した順。
func (s *Service) List(ctx context.Context) ([]model.ArticleSummary, error) {
	articles, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.ArticleSummary, 0, len(articles))
	for _, a := range articles {
		summaries = append(summaries, model.ArticleSummary{
			No:           a.No,
			UserID:       a.UserID,
			Subject:      a.Subject,
			Excerpt:      Excerpt(s.sanitizer.Sanitize(a.Content), ExcerptLength),
			Hit:          a.Hit,
			RegisterTime: a.RegisterTime,
		})
	}
	return summaries, nil
}

// Get は記事を1件返す。本文はサニタイズ済み。
func (s *Service) Get(ctx context.Context, no int64) (*model.Article, error) {
	a, err := s.backend.Get(ctx, no)
	if err != nil {
		return nil, err
	}
	a.Content = s.sanitizer.Sanitize(a.Content)
	return a, nil
}

// Create は入力を検証してから記事を作成する。
func (s *Service) Create(ctx context.Context, bearer string, in model.ArticleInput) error {
	in, err := normalizeInput(in)
	if err != nil {
		return err
	}
	return s.backend.Create(ctx, bearer, in)
}

// Update は入力を検証してから記事を更新する。
func (s *Service) Update(ctx context.Context, bearer string, no int64, in model.ArticleInput) error {
	in, err := normalizeInput(in)
	if err != nil {
		return err
	}
	return s.backend.Update(ctx, bearer, no, in)
}

// Delete は記事を削除する。
func (s *Service) Delete(ctx context.Context, bearer string, no int64) error {
	return s.backend.Delete(ctx, bearer, no)
}

// normalizeInput は件名の前後空白を除去してNFCに揃え、空の件名・本文を拒否する。
// 本文は書式を保つため空白を含めてそのまま送る。
func normalizeInput(in model.ArticleInput) (model.ArticleInput, error) {
	in.Subject = norm.NFC.String(strings.TrimSpace(in.Subject))
	in.Content = norm.NFC.String(in.Content)
	if in.Subject == "" {
		return in, ErrEmptySubject
	}
	if strings.TrimSpace(in.Content) == "" {
		return in, ErrEmptyContent
	}
	return in, nil
}

// truncateRunes はsをn文字以内に切り詰め、切り詰めた場合は末尾に「…」を付ける。
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " ") + "…"
}
