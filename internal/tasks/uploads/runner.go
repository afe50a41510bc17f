package uploads

import (
	"context"
	"errors"
	"strings"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcpubsub"
)

const (
	attrEventType          = "eventType"
	gcsObjectFinalizeEvent = "OBJECT_FINALIZE"
)

// Runner 负责从 Pub/Sub 订阅消费存储通知或审计日志导出。
type Runner struct {
	subscriber gcpubsub.Subscriber
	handler    *Handler
	decoder    *Decoder
	log        *log.Helper
}

// RunnerParams 注入构建 Runner 所需的依赖。
type RunnerParams struct {
	Subscriber gcpubsub.Subscriber
	Analyzer   Analyzer
	Logger     log.Logger
}

// NewRunner 构造上传事件 Runner。
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Subscriber == nil {
		return nil, errors.New("uploads: subscriber is required")
	}
	if params.Analyzer == nil {
		return nil, errors.New("uploads: analyzer is required")
	}
	return &Runner{
		subscriber: params.Subscriber,
		handler:    NewHandler(params.Analyzer, params.Logger),
		decoder:    NewDecoder(),
		log:        log.NewHelper(params.Logger),
	}, nil
}

// Run 启动消费循环，直到 ctx 取消。
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.subscriber == nil {
		return nil
	}
	return r.subscriber.Receive(ctx, r.Process)
}

// Process 处理单条消息；返回 nil 时消息被确认。
// GCS 通知带 eventType 属性，非 OBJECT_FINALIZE 的通知直接确认。
func (r *Runner) Process(ctx context.Context, msg *gcpubsub.Message) error {
	if msg == nil {
		return nil
	}
	// 仅配置了死信策略的订阅才会带投递次数。
	if msg.DeliveryAttempt > 1 {
		r.log.WithContext(ctx).Warnf("uploads: redelivered notification id=%s attempt=%d", msg.ID, msg.DeliveryAttempt)
	}
	if eventType := msg.Attributes[attrEventType]; eventType != "" && !strings.EqualFold(eventType, gcsObjectFinalizeEvent) {
		r.log.WithContext(ctx).Debugf("uploads: skip notification id=%s event_type=%s", msg.ID, eventType)
		return nil
	}
	return r.handler.HandlePayload(ctx, r.decoder, msg.ID, msg.Data)
}
