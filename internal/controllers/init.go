package controllers

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
	"github.com/bionicotaku/carcare-services-estimate/internal/tasks/estimates"
	"github.com/bionicotaku/carcare-services-estimate/internal/tasks/uploads"
)

// ProviderSet 暴露 HTTP Handler 的构造函数。
var ProviderSet = wire.NewSet(
	ProvideBaseHandler,
	ProvidePredictHandler,
	ProvideEventHandler,
)

// ProvideBaseHandler 以 HTTP 超时作为单次请求的处理上限。
func ProvideBaseHandler(cfg configloader.ServerConfig) *BaseHandler {
	return NewBaseHandler(cfg.HTTP.Timeout.Std())
}

// ProvidePredictHandler 装配直传推理入口。
func ProvidePredictHandler(base *BaseHandler, cfg configloader.ServerConfig, analyzer *services.AnalysisService, logger log.Logger) *PredictHandler {
	return NewPredictHandler(base, analyzer, PredictHandlerConfig{
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigin:  cfg.AllowedOrigin,
	}, logger)
}

// ProvideEventHandler 装配 Eventarc 事件入口。
func ProvideEventHandler(base *BaseHandler, uploadHandler *uploads.Handler, decoder *uploads.Decoder, estimateHandler *estimates.Handler, logger log.Logger) *EventHandler {
	return NewEventHandler(base, uploadHandler, decoder, estimateHandler, logger)
}
