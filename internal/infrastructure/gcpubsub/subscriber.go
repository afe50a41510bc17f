// Package gcpubsub 封装 Cloud Pub/Sub 订阅：handler 返回 nil 时 Ack，否则 Nack 交由重投递。
package gcpubsub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

const emulatorHostEnv = "PUBSUB_EMULATOR_HOST"

// Message 是与 SDK 解耦的消息视图。
type Message struct {
	ID              string
	Data            []byte
	Attributes      map[string]string
	PublishTime     time.Time
	DeliveryAttempt int
}

// Handler 处理单条消息。返回 nil 表示确认。
type Handler func(ctx context.Context, msg *Message) error

// Subscriber 抽象订阅循环。
type Subscriber interface {
	Receive(ctx context.Context, handler Handler) error
}

// ErrSubscriptionRequired 表示未配置订阅 ID。
var ErrSubscriptionRequired = errors.New("gcpubsub: subscription id is required")

// NewClient 创建 Pub/Sub 客户端；配置了模拟器地址时走模拟器。
func NewClient(ctx context.Context, cfg configloader.PubSubConfig, logger log.Logger) (*pubsub.Client, func(), error) {
	if cfg.ProjectID == "" {
		return nil, nil, errors.New("gcpubsub: project id is required")
	}
	if cfg.EmulatorEndpoint != "" {
		if err := os.Setenv(emulatorHostEnv, cfg.EmulatorEndpoint); err != nil {
			return nil, nil, fmt.Errorf("gcpubsub: set emulator host: %w", err)
		}
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("gcpubsub: new client: %w", err)
	}
	helper := log.NewHelper(logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close pubsub client: %v", err)
		}
	}
	return client, cleanup, nil
}

// subscription 是 Subscriber 的 Cloud Pub/Sub 实现。
type subscription struct {
	sub *pubsub.Subscription
	log *log.Helper
}

// NewSubscriber 基于配置构造订阅者。
func NewSubscriber(client *pubsub.Client, cfg configloader.PubSubConfig, logger log.Logger) (Subscriber, error) {
	if cfg.SubscriptionID == "" {
		return nil, ErrSubscriptionRequired
	}
	sub := client.Subscription(cfg.SubscriptionID)
	if cfg.NumGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines
	}
	if cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	}
	return &subscription{sub: sub, log: log.NewHelper(logger)}, nil
}

// Receive 阻塞直到 ctx 取消或订阅出现不可恢复错误。
func (s *subscription) Receive(ctx context.Context, handler Handler) error {
	s.log.WithContext(ctx).Infof("pubsub subscriber started: subscription=%s", s.sub.ID())
	err := s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		msg := &Message{
			ID:          m.ID,
			Data:        m.Data,
			Attributes:  m.Attributes,
			PublishTime: m.PublishTime,
		}
		if m.DeliveryAttempt != nil {
			msg.DeliveryAttempt = *m.DeliveryAttempt
		}
		Dispatch(ctx, msg, handler, m.Ack, m.Nack)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("gcpubsub: receive %s: %w", s.sub.ID(), err)
	}
	return nil
}

// Dispatch 调用 handler 并根据结果执行 ack/nack；handler panic 视为失败。
func Dispatch(ctx context.Context, msg *Message, handler Handler, ack, nack func()) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("gcpubsub: handler panic: %v", r)
			}
		}()
		err = handler(ctx, msg)
	}()
	if err != nil {
		nack()
		return
	}
	ack()
}
