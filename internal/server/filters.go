package server

import (
	"fmt"
	"net/http"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// statusRecorder 记录写出的状态码。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// recoveryFilter 将 handler panic 转换为 500，与 kratos recovery 中间件的输出一致。
func recoveryFilter(logger log.Logger) khttp.FilterFunc {
	helper := log.NewHelper(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					helper.WithContext(r.Context()).Errorf("http: panic path=%s: %v", r.URL.Path, rec)
					khttp.DefaultErrorEncoder(w, r, kerrors.InternalServer("UNKNOWN", fmt.Sprintf("panic triggered: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// accessFilter 记录访问日志，并写入 kratos 默认的请求计数与耗时直方图。
// srv.Handle 注册的原生 Handler 不经过 kratos middleware 链，因此在 Filter 层补齐。
func accessFilter(logger log.Logger, t *Telemetry) khttp.FilterFunc {
	helper := log.NewHelper(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			latency := time.Since(start)

			t.observeHTTP(r.Context(), r.Method, r.URL.Path, rec.status, latency)
			if isHealthPath(r.URL.Path) {
				return
			}
			helper.WithContext(r.Context()).Infow(
				"kind", "server",
				"component", "http",
				"method", r.Method,
				"path", r.URL.Path,
				"code", rec.status,
				"latency", latency.Seconds(),
			)
		})
	}
}

func isHealthPath(path string) bool {
	return path == healthPath || path == readyPath || path == metricsPath
}
