package inference

import (
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"go.opentelemetry.io/otel/metric"
)

// ProviderSet 暴露推理客户端及其令牌来源。
var ProviderSet = wire.NewSet(
	ProvideTokenProvider,
	ProvideClient,
	wire.Bind(new(TokenProvider), new(*IDTokenProvider)),
)

// ProvideTokenProvider 使用默认凭据构造 ID Token 来源。
func ProvideTokenProvider() *IDTokenProvider {
	return NewIDTokenProvider()
}

// ProvideClient 装配推理客户端，端点未配置时仅记录告警。
func ProvideClient(cfg configloader.InferenceConfig, tokens TokenProvider, urls *gcs.URLBuilder, meter metric.Meter, logger log.Logger) *Client {
	client := NewClient(cfg, tokens, urls, logger, WithMeter(meter))
	if !client.Configured() {
		log.NewHelper(logger).Warnf("inference endpoint is not configured (endpoint=%q); predictions will fail until INFERENCE_ENDPOINT is set", cfg.Endpoint)
	}
	return client
}
