package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agropulse/agropulse/internal/advisor"
	"github.com/agropulse/agropulse/internal/auth"
	"github.com/agropulse/agropulse/internal/config"
	"github.com/agropulse/agropulse/internal/database"
	"github.com/agropulse/agropulse/internal/handler"
	"github.com/agropulse/agropulse/internal/logger"
	"github.com/agropulse/agropulse/internal/markdown"
	"github.com/agropulse/agropulse/internal/metrics"
	"github.com/agropulse/agropulse/internal/middleware"
	"github.com/agropulse/agropulse/internal/news"
	"github.com/agropulse/agropulse/internal/repository"
	"github.com/agropulse/agropulse/internal/security"
	"github.com/agropulse/agropulse/internal/weather"
	"github.com/agropulse/agropulse/internal/worker/cleanup"
)

// newsFetchTimeout はニュースフィード取得1回あたりのHTTPタイムアウト。
const newsFetchTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "5321"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// stores は起動モードに応じて選択されたリポジトリ一式。
type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	history  repository.HistoryRepository
	db       *sql.DB // インメモリ構成の場合はnil
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// buildStores はDATABASE_URLの有無でPostgresとインメモリを切り替える。
func buildStores(cfg *config.Config) (*stores, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, using in-memory stores (data is lost on restart)")
		return &stores{
			users:    repository.NewMemoryUserRepo(),
			sessions: repository.NewMemorySessionRepo(),
			history:  repository.NewMemoryHistoryRepo(),
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	return &stores{
		users:    repository.NewPostgresUserRepo(db),
		sessions: repository.NewPostgresSessionRepo(db),
		history:  repository.NewPostgresHistoryRepo(db),
		db:       db,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを選択し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. ストアの初期化
	st, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 上流クライアントの初期化
	weatherClient := weather.NewClient(
		cfg.OpenWeatherAPIKey,
		&http.Client{Timeout: cfg.WeatherTimeout},
		log,
	)
	geminiClient := advisor.NewGeminiClient(
		cfg.GeminiAPIKey, cfg.GeminiModel,
		&http.Client{Timeout: cfg.GeminiTimeout},
		log,
	)

	fallback := weather.Fallback{
		Lat:  cfg.DefaultLat,
		Lon:  cfg.DefaultLon,
		City: cfg.DefaultCity,
	}

	// 4. ドメインサービスの初期化
	authService := auth.NewService(
		st.users, st.sessions,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	advisorService := advisor.NewService(
		weatherClient, geminiClient, markdown.NewRenderer(),
		st.history, collector, fallback, log,
	)

	feedGuard := security.NewFeedGuard()
	newsService := news.NewService(
		cfg.NewsFeedURL, cfg.NewsCacheTTL, newsFetchTimeout,
		feedGuard, log,
	)
	if !newsService.Configured() {
		slog.Info("NEWS_FEED_URL is not set, news feed is disabled")
	}

	// 5. レートリミッターの初期化
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralPerMinute:  cfg.RateLimitGeneral,
		AdvisoryPerMinute: cfg.RateLimitAdvisory,
		CleanupInterval:   5 * time.Minute,
	}, log)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     st.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
		StatusRecorder:    collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		SessionMetrics: collector,

		AdvisorService: advisorService,
		UserFinder:     st.users,
		Fallback:       fallback,

		WeatherFetcher: weatherClient,
		NewsService:    newsService,

		MetricsHandler: metrics.Handler(registry),
	})

	// 7. バックグラウンドジョブ（Postgres構成のみ）
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	if st.db != nil {
		cleanupJob := cleanup.NewSessionCleanupJob(st.db, log)
		go cleanupJob.Start(jobCtx, 24*time.Hour)
	}

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/ping エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/api/ping", port)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
