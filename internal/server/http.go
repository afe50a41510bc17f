// Package server 装配 HTTP 传输层：路由、过滤器与可观测性端点。
package server

import (
	stdhttp "net/http"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bionicotaku/carcare-services-estimate/internal/controllers"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

const (
	predictPath         = "/v1/predict"
	legacyPredictPath   = "/predict"
	storageEventsPath   = "/events/storage"
	estimateEventsPath  = "/events/estimates"
	healthPath          = "/healthz"
	readyPath           = "/readyz"
	metricsPath         = "/metrics"
	otelOperationPrefix = "carcare-estimate"
)

// ProviderSet 暴露 server 层构造函数。
var ProviderSet = wire.NewSet(NewTelemetry, ProvideMeter, NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(cfg configloader.ServerConfig, predict *controllers.PredictHandler, events *controllers.EventHandler, telemetry *Telemetry, logger log.Logger) *http.Server {
	srv := newObservedServer(cfg, telemetry, logger)

	// 方法校验与 CORS 由 Handler 自行处理，路由不限定方法。
	srv.Handle(predictPath, predict)
	srv.Handle(legacyPredictPath, predict)
	srv.HandleFunc(storageEventsPath, events.StorageEvents())
	srv.HandleFunc(estimateEventsPath, events.EstimateEvents())
	return srv
}

// NewMetricsServer 只暴露探针与 /metrics，供没有业务路由的后台任务使用。
func NewMetricsServer(cfg configloader.ServerConfig, telemetry *Telemetry, logger log.Logger) *http.Server {
	return newObservedServer(cfg, telemetry, logger)
}

// newObservedServer 构造带追踪、恢复与访问日志过滤器的服务，并注册探针与 /metrics。
func newObservedServer(cfg configloader.ServerConfig, telemetry *Telemetry, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Filter(
			func(next stdhttp.Handler) stdhttp.Handler {
				return otelhttp.NewHandler(next, otelOperationPrefix)
			},
			recoveryFilter(logger),
			accessFilter(logger, telemetry),
		),
	}
	if cfg.HTTP.Network != "" {
		opts = append(opts, http.Network(cfg.HTTP.Network))
	}
	if cfg.HTTP.Addr != "" {
		opts = append(opts, http.Address(cfg.HTTP.Addr))
	}
	if cfg.HTTP.Timeout > 0 {
		opts = append(opts, http.Timeout(cfg.HTTP.Timeout.Std()))
	}

	srv := http.NewServer(opts...)

	ok := stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	})
	srv.Handle(healthPath, ok)
	srv.Handle(readyPath, ok)
	if telemetry != nil {
		srv.Handle(metricsPath, telemetry.Handler())
	}
	return srv
}
