// Package route は画面遷移のルートテーブルを提供する。
// パスを名前付きの画面に解決し、画面の生成は最初の遷移まで遅延させる。
package route

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// 登録済みルート名
const (
	Home       = "home"
	Login      = "login"
	Signup     = "signup"
	Board      = "board"
	Detail     = "detail"
	CreateForm = "createForm"
	UpdateForm = "updateForm"
)

// ErrNotFound はどのルートにも一致しないパスを示す。
var ErrNotFound = errors.New("route not found")

// Loader は画面を生成する。ルートごとに最初の遷移時に1回だけ呼ばれる。
type Loader func() (http.Handler, error)

// Entry はパスと画面の対応を表す。
// Pathの ":name" セグメントは名前付きパラメータとして扱う。
type Entry struct {
	Path string
	Name string
	Load Loader
}

// lazyView は画面の遅延生成結果をキャッシュする。
type lazyView struct {
	once    sync.Once
	load    Loader
	handler http.Handler
	err     error
}

func (v *lazyView) get() (http.Handler, error) {
	v.once.Do(func() {
		v.handler, v.err = v.load()
		if v.err == nil && v.handler == nil {
			v.err = errors.New("loader returned nil view")
		}
	})
	return v.handler, v.err
}

// Table は起動時に1回だけ構築され、以後変更されないルートテーブル。
// パターンの照合はchiのルーティングツリーで行うため、
// 静的セグメントがパラメータセグメントより優先される。
type Table struct {
	entries   []Entry
	byPattern map[string]int
	byName    map[string]int
	views     []*lazyView
	mux       *chi.Mux
}

// New はルートテーブルを構築する。
// 名前・パスの重複、"/" で始まらないパス、nilのLoaderはエラーとする。
func New(entries ...Entry) (*Table, error) {
	t := &Table{
		entries:   make([]Entry, 0, len(entries)),
		byPattern: make(map[string]int, len(entries)),
		byName:    make(map[string]int, len(entries)),
		views:     make([]*lazyView, 0, len(entries)),
		mux:       chi.NewRouter(),
	}

	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("route %q: empty name", e.Path)
		}
		if !strings.HasPrefix(e.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with '/': %q", e.Name, e.Path)
		}
		if e.Load == nil {
			return nil, fmt.Errorf("route %q: nil loader", e.Name)
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate route name: %q", e.Name)
		}
		pattern := Pattern(e.Path)
		if _, dup := t.byPattern[pattern]; dup {
			return nil, fmt.Errorf("duplicate route path: %q", e.Path)
		}

		idx := len(t.entries)
		t.entries = append(t.entries, e)
		t.byName[e.Name] = idx
		t.byPattern[pattern] = idx
		t.views = append(t.views, &lazyView{load: e.Load})

		// ハンドラーは照合にのみ使う。実際の画面はMatch.Viewで遅延生成する。
		t.mux.Handle(pattern, http.NotFoundHandler())
	}

	return t, nil
}

// Pattern は ":id" 形式のパスをchiの "{id}" 形式に変換する。
func Pattern(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// Match はパスの解決結果。
type Match struct {
	Entry  Entry
	Params map[string]string
	view   *lazyView
}

// Name は一致したルート名を返す。
func (m *Match) Name() string { return m.Entry.Name }

// Param は名前付きパラメータの値を返す。存在しない場合は空文字列。
func (m *Match) Param(key string) string { return m.Params[key] }

// View は画面を返す。初回呼び出し時にLoaderを実行し、以後は結果を再利用する。
// Loaderのエラーもキャッシュされる。
func (m *Match) View() (http.Handler, error) {
	return m.view.get()
}

// Resolve はパスを登録済みルートに解決する。
// 末尾のスラッシュは無視し、クエリ文字列は照合に使わない。
// 一致しない場合はErrNotFoundを返す。
func (t *Table) Resolve(path string) (*Match, error) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	rctx := chi.NewRouteContext()
	pattern := t.mux.Find(rctx, http.MethodGet, path)
	if pattern == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	idx, ok := t.byPattern[pattern]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		value := rctx.URLParams.Values[i]
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		params[key] = value
	}

	return &Match{
		Entry:  t.entries[idx],
		Params: params,
		view:   t.views[idx],
	}, nil
}

// Path はルート名とパラメータからパスを組み立てる。
// 必要なパラメータが足りない場合はエラーを返す。
func (t *Table) Path(name string, params map[string]string) (string, error) {
	idx, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: name %q", ErrNotFound, name)
	}

	segments := strings.Split(t.entries[idx].Path, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		key := seg[1:]
		value, ok := params[key]
		if !ok || value == "" {
			return "", fmt.Errorf("route %q: missing param %q", name, key)
		}
		segments[i] = url.PathEscape(value)
	}
	return strings.Join(segments, "/"), nil
}

// Entries は登録順のルート一覧を返す。
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// matchContextKey はリクエストコンテキストに解決結果を格納するためのキー。
type matchContextKey struct{}

// NewContext は解決結果をコンテキストに格納する。
func NewContext(ctx context.Context, m *Match) context.Context {
	return context.WithValue(ctx, matchContextKey{}, m)
}

// FromContext はコンテキストから解決結果を取得する。
func FromContext(ctx context.Context) (*Match, bool) {
	m, ok := ctx.Value(matchContextKey{}).(*Match)
	return m, ok && m != nil
}
