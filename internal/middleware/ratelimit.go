package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/coursebox/internal/model"
)

// IPRateLimiterConfig はIP単位のレート制限の設定。
type IPRateLimiterConfig struct {
	Limit           int           // ウィンドウあたりの許容リクエスト数
	Window          time.Duration // スライディングウィンドウの幅
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultIPRateLimiterConfig はデフォルトのIPレート制限設定を返す。
// 60秒のスライディングウィンドウで30リクエストまで。
func DefaultIPRateLimiterConfig() IPRateLimiterConfig {
	return IPRateLimiterConfig{
		Limit:           30,
		Window:          60 * time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// IPRateLimiter はIPアドレス単位のスライディングウィンドウレート制限を管理する。
// 固定ウィンドウと異なり、ウィンドウ境界でのバースト（境界の前後で
// 2倍のリクエストが通る問題）が発生しない。
type IPRateLimiter struct {
	config IPRateLimiterConfig

	mu      sync.Mutex
	history map[string][]time.Time // IPごとのリクエスト時刻（昇順）

	stopCh chan struct{}
}

// NewIPRateLimiter は新しいIPRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewIPRateLimiter(config IPRateLimiterConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		config:  config,
		history: make(map[string][]time.Time),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *IPRateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware はIP単位のレート制限ミドルウェアを返す。
// 認証の前段に配置し、未認証リクエストも制限の対象にする。
func (rl *IPRateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			allowed, retryAfter := rl.allow(ip, time.Now())
			if !allowed {
				slog.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				writeRateLimitResponse(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allow はリクエストを許可するかどうかを判定する。
// 拒否する場合、最古のリクエストがウィンドウから外れるまでの時間も返す。
func (rl *IPRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	cutoff := now.Add(-rl.config.Window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// ウィンドウ外の記録を落とす
	times := rl.history[ip]
	start := 0
	for start < len(times) && !times[start].After(cutoff) {
		start++
	}
	times = times[start:]

	if len(times) >= rl.config.Limit {
		retryAfter := times[0].Add(rl.config.Window).Sub(now)
		rl.history[ip] = times
		return false, retryAfter
	}

	rl.history[ip] = append(times, now)
	return true, 0
}

// EntryCount は現在管理されているIPエントリ数を返す。テストおよびメトリクス用。
func (rl *IPRateLimiter) EntryCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は全記録がウィンドウ外になったIPのエントリを削除する。
func (rl *IPRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.config.Window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, times := range rl.history {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.history, ip)
		}
	}
}

// ClientIP はリクエスト元のIPアドレスを特定する。
// X-Forwarded-Forがあれば先頭（最初のプロキシが見たクライアント）を使い、
// なければRemoteAddrのホスト部を使う。
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UploadRateLimiterConfig はアップロード発行のレート制限の設定。
type UploadRateLimiterConfig struct {
	Rate            rate.Limit    // 補充レート（req/sec）
	Burst           int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultUploadRateLimiterConfig はデフォルト設定を返す。10 req/min/user。
func DefaultUploadRateLimiterConfig() UploadRateLimiterConfig {
	return UploadRateLimiterConfig{
		Rate:            rate.Limit(10.0 / 60.0),
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのトークンバケットとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// UploadRateLimiter は署名付きアップロードURL発行のユーザー単位レート制限。
// URL発行自体は軽い操作だが、ストレージへの書き込み許可の乱発を防ぐため
// IP制限とは独立に絞る。
type UploadRateLimiter struct {
	config UploadRateLimiterConfig

	mu       sync.Mutex
	limiters map[int64]*userLimiter

	stopCh chan struct{}
}

// NewUploadRateLimiter は新しいUploadRateLimiterを生成する。
func NewUploadRateLimiter(config UploadRateLimiterConfig) *UploadRateLimiter {
	rl := &UploadRateLimiter{
		config:   config,
		limiters: make(map[int64]*userLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *UploadRateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware はアップロード発行のレート制限ミドルウェアを返す。
// セッションミドルウェアの後に配置すること。
func (rl *UploadRateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !rl.getOrCreate(user.ID).Allow() {
				slog.Warn("upload rate limit exceeded",
					slog.Int64("user_id", user.ID),
				)
				retryAfter := time.Duration(math.Ceil(1.0/float64(rl.config.Rate))) * time.Second
				writeRateLimitResponse(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getOrCreate はユーザーのトークンバケットを取得または作成する。
func (rl *UploadRateLimiter) getOrCreate(userID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if ul, exists := rl.limiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	rl.limiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (rl *UploadRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *UploadRateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, userID)
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
func writeRateLimitResponse(w http.ResponseWriter, retryAfter time.Duration) {
	sec := int(math.Ceil(retryAfter.Seconds()))
	if sec < 1 {
		sec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(sec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
