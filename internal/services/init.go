// Package services 编排上传分析与报价通知两个用例。
package services

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"go.opentelemetry.io/otel/metric"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/firebase"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"
	"github.com/bionicotaku/carcare-services-estimate/internal/repositories"
)

// ProviderSet 暴露 Service 层构造函数。
var ProviderSet = wire.NewSet(ProvideAnalysisService, ProvideNotificationService)

// ProvideAnalysisService 装配上传分析服务。
func ProvideAnalysisService(cfg configloader.StorageConfig, objects *gcs.ObjectStore, relay *inference.Client, meter metric.Meter, logger log.Logger) *AnalysisService {
	return NewAnalysisService(cfg, objects, relay, logger, WithAnalysisMeter(meter))
}

// ProvideNotificationService 装配报价通知服务。
func ProvideNotificationService(cfg configloader.NotificationConfig, registry repositories.DeviceRegistry, sender *firebase.PushSender, meter metric.Meter, logger log.Logger) *NotificationService {
	return NewNotificationService(cfg, registry, sender, logger, WithNotificationMeter(meter))
}
