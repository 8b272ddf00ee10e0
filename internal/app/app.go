package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/board/internal/article"
	"github.com/hitoshi/board/internal/auth"
	"github.com/hitoshi/board/internal/config"
	"github.com/hitoshi/board/internal/handler"
	"github.com/hitoshi/board/internal/logger"
	"github.com/hitoshi/board/internal/metrics"
	"github.com/hitoshi/board/internal/middleware"
	"github.com/hitoshi/board/internal/route"
	"github.com/hitoshi/board/internal/security"
	"github.com/hitoshi/board/internal/session"
	"github.com/hitoshi/board/internal/view"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と routes は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandRoutes:
		return runRoutes(w)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend_url", cfg.BackendURL),
	)

	return runServe(cfg)
}

// Server はHTTPサーバーとして動かすための依存関係一式。
type Server struct {
	Handler     http.Handler
	Sessions    *session.Manager
	RateLimiter *middleware.RateLimiter
}

// Close はバックグラウンドのクリーンアップを停止する。
func (s *Server) Close() {
	s.RateLimiter.Stop()
	s.Sessions.Stop()
}

// NewServer は設定から全依存関係をワイヤリングし、ルーターを構築する。
// メトリクスはregに登録する。
func NewServer(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	// 1. バックエンド用HTTPクライアント
	httpClient, err := security.NewBackendHTTPClient(security.EgressConfig{
		BackendURL: cfg.BackendURL,
		Timeout:    cfg.BackendTimeout,
		Strict:     cfg.BackendStrictEgress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build backend client: %w", err)
	}

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. バックエンドクライアントとサービス
	authClient := auth.NewClient(httpClient, log, cfg.BackendURL).WithObserver(collector)
	articleClient := article.NewClient(httpClient, log, cfg.BackendURL).WithObserver(collector)
	articles := article.NewService(articleClient, security.NewContentSanitizer())

	// 4. セッション
	sessionCfg := session.DefaultManagerConfig()
	sessionCfg.MaxIdle = time.Duration(cfg.SessionMaxAge) * time.Second
	sessions := session.NewManager(authClient, sessionCfg)
	collector.RegisterActiveSessions(sessions.Count)

	// 5. 画面遷移テーブル
	table, err := route.New(view.Entries(view.Deps{
		Articles: articles,
		Logger:   log,
		Metrics:  collector,
	})...)
	if err != nil {
		sessions.Stop()
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}

	// 6. ルーター
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Routes:            table,
		Sessions:          sessions,
		RateLimiter:       rl,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieSecure:      cfg.CookieSecure,
		CookieDomain:      cfg.CookieDomain,
		SessionMaxAge:     cfg.SessionMaxAge,
		Observer:          collector,
		Gatherer:          reg,
	})

	return &Server{Handler: router, Sessions: sessions, RateLimiter: rl}, nil
}

// runServe はHTTPサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := NewServer(cfg, slog.Default(), reg)
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runRoutes は画面遷移テーブルの名前とパスを表示する。
func runRoutes(w io.Writer) error {
	table, err := route.New(view.Entries(view.Deps{})...)
	if err != nil {
		return fmt.Errorf("failed to build route table: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATH")
	for _, e := range table.Entries() {
		fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Path)
	}
	return tw.Flush()
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
