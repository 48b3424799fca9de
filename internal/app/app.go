// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/coursebox/internal/auth"
	"github.com/hitoshi/coursebox/internal/config"
	"github.com/hitoshi/coursebox/internal/course"
	"github.com/hitoshi/coursebox/internal/database"
	"github.com/hitoshi/coursebox/internal/handler"
	"github.com/hitoshi/coursebox/internal/logger"
	"github.com/hitoshi/coursebox/internal/material"
	"github.com/hitoshi/coursebox/internal/metrics"
	"github.com/hitoshi/coursebox/internal/middleware"
	"github.com/hitoshi/coursebox/internal/repository"
	"github.com/hitoshi/coursebox/internal/storage"
	"github.com/hitoshi/coursebox/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

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
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	materialRepo := repository.NewPostgresMaterialRepo(db)

	// 3. 外部サービスクライアントの初期化
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	verifier, err := auth.NewGoogleVerifier(ctx, cfg.GoogleClientID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize id token verifier: %w", err)
	}

	store, err := storage.NewS3Store(storage.S3Config{
		Endpoint:       cfg.S3EndpointHost(),
		Region:         cfg.S3Region,
		Bucket:         cfg.S3Bucket,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		UseSSL:         cfg.S3UseSSL(),
		UploadMaxSize:  cfg.UploadMaxSize,
		UploadURLTTL:   cfg.UploadURLTTL,
		DownloadURLTTL: cfg.DownloadURLTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// 4. ドメインサービスの初期化
	authService := auth.NewService(verifier, userRepo, sessionRepo, auth.ServiceConfig{
		SessionTTL:    cfg.SessionTTL,
		SessionSecret: cfg.SessionSecret,
	})
	courseService := course.NewService(courseRepo)
	materialService := material.NewService(materialRepo, courseRepo, store)
	userService := user.NewService(userRepo, sessionRepo)

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. レートリミッターの初期化
	ipLimiter := middleware.NewIPRateLimiter(middleware.IPRateLimiterConfig{
		Limit:           cfg.RateLimitRPM,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	})
	defer ipLimiter.Stop()

	uploadLimiter := middleware.NewUploadRateLimiter(middleware.UploadRateLimiterConfig{
		Rate:            rate.Limit(float64(cfg.UploadRateLimitRPM) / 60.0),
		Burst:           cfg.UploadRateLimitRPM,
		CleanupInterval: 5 * time.Minute,
	})
	defer uploadLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		SessionResolver:   authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		SessionSecret:     cfg.SessionSecret,
		IPRateLimiter:     ipLimiter,
		UploadRateLimiter: uploadLimiter,
		Logger:            slog.Default(),

		AuthService:     authService,
		CourseService:   courseService,
		MaterialService: materialService,
		UserService:     userService,

		Metrics:  collector,
		Gatherer: registry,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
