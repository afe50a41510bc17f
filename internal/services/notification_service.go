package services

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
)

const (
	dataKeyShopID = "shopId"
	dataKeyType   = "type"

	titleFormat = "🔔 새로운 견적 요청: %s"
	bodyFormat  = "요청 사항: %s"
)

// DeviceRegistry 查询维修店员工的推送 token。
type DeviceRegistry interface {
	ListTokens(ctx context.Context, shopID, role string) ([]string, error)
}

// PushSender 发送多播推送并返回逐 token 的结果。
type PushSender interface {
	Send(ctx context.Context, msg vo.PushMessage) (*vo.DeliveryReport, error)
}

// NotificationService 实现新报价请求的员工推送。
type NotificationService struct {
	registry           DeviceRegistry
	sender             PushSender
	staffRole          string
	typeTag            string
	defaultDamageType  string
	defaultUserRequest string
	deliveries         metric.Int64Counter
	log                *log.Helper
}

// NotificationOption 定义可选配置。
type NotificationOption func(*NotificationService)

// WithNotificationMeter 设置指标 Meter。
func WithNotificationMeter(meter metric.Meter) NotificationOption {
	return func(s *NotificationService) {
		if meter == nil {
			return
		}
		if counter, err := meter.Int64Counter("estimate_push_deliveries_total",
			metric.WithDescription("Push deliveries by result")); err == nil {
			s.deliveries = counter
		}
	}
}

// NewNotificationService 构造 NotificationService。
func NewNotificationService(cfg configloader.NotificationConfig, registry DeviceRegistry, sender PushSender, logger log.Logger, opts ...NotificationOption) *NotificationService {
	noopCounter, _ := noop.NewMeterProvider().Meter("services").Int64Counter("noop")
	s := &NotificationService{
		registry:           registry,
		sender:             sender,
		staffRole:          cfg.StaffRole,
		typeTag:            cfg.TypeTag,
		defaultDamageType:  cfg.DefaultDamageType,
		defaultUserRequest: cfg.DefaultUserRequest,
		deliveries:         noopCounter,
		log:                log.NewHelper(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyEstimateRequest 通知维修店的全部员工设备。
// 没有 token 时不发送；部分设备投递失败不视为错误，每个失败 token 记录一条 WARN。
func (s *NotificationService) NotifyEstimateRequest(ctx context.Context, evt events.EstimateRequestEvent) (*vo.DeliveryReport, error) {
	if evt.ShopID == "" {
		return nil, ErrMissingShopID
	}
	helper := s.log.WithContext(ctx)

	tokens, err := s.registry.ListTokens(ctx, evt.ShopID, s.staffRole)
	if err != nil {
		return nil, fmt.Errorf("notification: lookup devices for shop %s: %w", evt.ShopID, err)
	}
	if len(tokens) == 0 {
		helper.Infof("notification: no FCM tokens found for shop=%s", evt.ShopID)
		return &vo.DeliveryReport{}, nil
	}

	msg := s.BuildMessage(evt, tokens)
	report, err := s.sender.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("notification: send multicast for shop %s: %w", evt.ShopID, err)
	}

	helper.Infof("notification: shop=%s sent=%d failed=%d", evt.ShopID, report.SuccessCount, report.FailureCount)
	for _, failure := range report.Failures {
		helper.Warnf("notification: token %s failed with error: %s", failure.Token, failure.Reason)
	}
	s.deliveries.Add(ctx, int64(report.SuccessCount), metric.WithAttributes(attribute.String("result", "success")))
	s.deliveries.Add(ctx, int64(report.FailureCount), metric.WithAttributes(attribute.String("result", "failure")))
	return report, nil
}

// BuildMessage 组装推送内容，damageType / userRequest 缺失时使用默认文案。
func (s *NotificationService) BuildMessage(evt events.EstimateRequestEvent, tokens []string) vo.PushMessage {
	damageType := evt.DamageType
	if damageType == "" {
		damageType = s.defaultDamageType
	}
	userRequest := evt.UserRequest
	if userRequest == "" {
		userRequest = s.defaultUserRequest
	}
	return vo.PushMessage{
		Title: fmt.Sprintf(titleFormat, damageType),
		Body:  fmt.Sprintf(bodyFormat, userRequest),
		Data: map[string]string{
			dataKeyShopID: evt.ShopID,
			dataKeyType:   s.typeTag,
		},
		Tokens: tokens,
	}
}
