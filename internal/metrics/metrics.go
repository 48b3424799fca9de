// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// ハンドラーやミドルウェアから利用する。
type Recorder interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordLogin()
	RecordUploadRequested()
	RecordUploadConfirmed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     prometheus.Histogram
	logins           prometheus.Counter
	uploadsRequested prometheus.Counter
	uploadsConfirmed prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebox_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coursebox_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursebox_logins_total",
			Help: "ログイン成功の合計数",
		}),
		uploadsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursebox_uploads_requested_total",
			Help: "発行されたアップロードURLの合計数",
		}),
		uploadsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursebox_uploads_confirmed_total",
			Help: "確定したアップロードの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.logins,
		c.uploadsRequested,
		c.uploadsConfirmed,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果とレイテンシを記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordUploadRequested はアップロードURL発行を記録する。
func (c *Collector) RecordUploadRequested() {
	c.uploadsRequested.Inc()
}

// RecordUploadConfirmed はアップロード確定を記録する。
func (c *Collector) RecordUploadConfirmed() {
	c.uploadsConfirmed.Inc()
}

// NopRecorder は何も記録しないRecorder。テストで使う。
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {}
func (NopRecorder) RecordLogin()                                                           {}
func (NopRecorder) RecordUploadRequested()                                                 {}
func (NopRecorder) RecordUploadConfirmed()                                                 {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// statusRecorder はWriteHeaderで書かれたステータスコードを捕捉する。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// Middleware はリクエストの結果をRecorderに記録するミドルウェアを返す。
func Middleware(rec Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			rec.RecordHTTPRequest(r.Method, sr.status, time.Since(start))
		})
	}
}
