package server

import (
	"context"
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	estimateMeterName = "carcare-services-estimate"
	meterFlushTimeout = 5 * time.Second
)

// Telemetry 是进程级指标管线：OTel 指标经 Prometheus exporter 汇入私有 registry，由 /metrics 暴露。
// HTTP 服务与上传任务各自持有一份。
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
	meter    metric.Meter

	httpRequests metric.Int64Counter
	httpSeconds  metric.Float64Histogram
}

// NewTelemetry 构造指标管线并注册为全局 MeterProvider；cleanup 会刷出未导出的数据。
func NewTelemetry(logger log.Logger) (*Telemetry, func(), error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := promexp.New(promexp.WithRegisterer(registry), promexp.WithoutUnits())
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(kmetrics.DefaultSecondsHistogramView(kmetrics.DefaultServerSecondsHistogramName)),
	)

	t := &Telemetry{
		provider: provider,
		registry: registry,
		meter:    provider.Meter(estimateMeterName),
	}
	if err := t.initHTTPInstruments(); err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, err
	}
	otel.SetMeterProvider(provider)

	helper := log.NewHelper(logger)
	return t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), meterFlushTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			helper.Warnf("telemetry: flush meter provider: %v", err)
		}
	}, nil
}

// 沿用 kratos 服务端指标的名称与属性，便于复用现有看板。
func (t *Telemetry) initHTTPInstruments() error {
	var err error
	if t.httpRequests, err = kmetrics.DefaultRequestsCounter(t.meter, kmetrics.DefaultServerRequestsCounterName); err != nil {
		return err
	}
	t.httpSeconds, err = kmetrics.DefaultSecondsHistogram(t.meter, kmetrics.DefaultServerSecondsHistogramName)
	return err
}

// Meter 返回业务组件共用的 Meter。
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// Handler 返回 /metrics 的 Prometheus 文本格式处理器。
func (t *Telemetry) Handler() stdhttp.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}

// observeHTTP 记录一次 HTTP 请求的计数与耗时。
func (t *Telemetry) observeHTTP(ctx context.Context, method, path string, status int, latency time.Duration) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", "http"),
		attribute.String("operation", method+" "+path),
		attribute.String("code", strconv.Itoa(status)),
		attribute.String("reason", stdhttp.StatusText(status)),
	)
	t.httpRequests.Add(ctx, 1, attrs)
	t.httpSeconds.Record(ctx, latency.Seconds(), attrs)
}

// ProvideMeter 向业务组件暴露服务级 Meter。
func ProvideMeter(t *Telemetry) metric.Meter {
	return t.Meter()
}
