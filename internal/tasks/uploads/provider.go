package uploads

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcpubsub"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
)

// ProviderSet 暴露 uploads 任务的构造函数。
var ProviderSet = wire.NewSet(NewDecoder, ProvideHandler, ProvideRunner)

// ProvideHandler 以分析服务装配 Handler。
func ProvideHandler(analysis *services.AnalysisService, logger log.Logger) *Handler {
	return NewHandler(analysis, logger)
}

// ProvideRunner 装配 Uploads Runner。
func ProvideRunner(sub gcpubsub.Subscriber, analysis *services.AnalysisService, logger log.Logger) (*Runner, error) {
	return NewRunner(RunnerParams{
		Subscriber: sub,
		Analyzer:   analysis,
		Logger:     logger,
	})
}
