package estimates

import (
	"context"
	"errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
)

// ProviderSet 暴露 estimates 任务的构造函数。
var ProviderSet = wire.NewSet(NewDecoder, ProvideHandler)

// Notifier 是报价通知用例的抽象。
type Notifier interface {
	NotifyEstimateRequest(ctx context.Context, evt events.EstimateRequestEvent) (*vo.DeliveryReport, error)
}

// Handler 是文档创建触发的边界。
type Handler struct {
	decoder  *Decoder
	notifier Notifier
	log      *log.Helper
}

// NewHandler 构造 Handler。
func NewHandler(decoder *Decoder, notifier Notifier, logger log.Logger) *Handler {
	return &Handler{decoder: decoder, notifier: notifier, log: log.NewHelper(logger)}
}

// ProvideHandler 以通知服务装配 Handler。
func ProvideHandler(decoder *Decoder, notifier *services.NotificationService, logger log.Logger) *Handler {
	return NewHandler(decoder, notifier, logger)
}

// Handle 解析并处理一次投递。丢弃类结果返回 nil，查询或发送失败向上传播。
func (h *Handler) Handle(ctx context.Context, delivery Delivery) error {
	helper := h.log.WithContext(ctx)

	evt, decoded, err := h.decoder.Decode(delivery)
	if err != nil {
		if errors.Is(err, events.ErrDropped) {
			helper.Warnf("estimates: dropped event id=%s: %v", delivery.ID, err)
			return nil
		}
		return err
	}
	if !decoded {
		helper.Warnf("estimates: event id=%s has no decodable document body, using default texts", delivery.ID)
	}

	report, err := h.notifier.NotifyEstimateRequest(ctx, *evt)
	if err != nil {
		if errors.Is(err, events.ErrDropped) {
			helper.Warnf("estimates: dropped event id=%s: %v", delivery.ID, err)
			return nil
		}
		helper.Errorf("estimates: notify shop=%s failed: %v", evt.ShopID, err)
		return err
	}
	helper.Infof("estimates: handled id=%s shop=%s doc=%s success=%d failure=%d",
		delivery.ID, evt.ShopID, evt.DocumentPath, report.SuccessCount, report.FailureCount)
	return nil
}
