package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
)

// MaxMulticastTokens 是 FCM 单次多播允许的最大 token 数。
const MaxMulticastTokens = 500

// Multicaster 抽象 messaging.Client 的多播能力，便于测试替换。
type Multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// PushSender 将 vo.PushMessage 转换为 FCM 多播请求，并按 token 汇总结果。
type PushSender struct {
	client Multicaster
	log    *log.Helper
}

// NewPushSender 构造 PushSender。
func NewPushSender(client Multicaster, logger log.Logger) *PushSender {
	return &PushSender{client: client, log: log.NewHelper(logger)}
}

// Send 按 500 个一组分批发送。Failures 与输入 token 一一对应，顺序保持一致。
// 整批调用失败时立即返回错误，已完成批次的结果不会丢失在报告中。
func (s *PushSender) Send(ctx context.Context, msg vo.PushMessage) (*vo.DeliveryReport, error) {
	report := &vo.DeliveryReport{}
	if len(msg.Tokens) == 0 {
		return report, nil
	}

	for start := 0; start < len(msg.Tokens); start += MaxMulticastTokens {
		end := min(start+MaxMulticastTokens, len(msg.Tokens))
		batch := msg.Tokens[start:end]

		resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Data:   msg.Data,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
		})
		if err != nil {
			return report, fmt.Errorf("fcm multicast (tokens %d-%d): %w", start, end-1, err)
		}
		report.SuccessCount += resp.SuccessCount
		report.FailureCount += resp.FailureCount
		for i, r := range resp.Responses {
			if r == nil || r.Success || i >= len(batch) {
				continue
			}
			reason := "unknown error"
			if r.Error != nil {
				reason = r.Error.Error()
			}
			report.Failures = append(report.Failures, vo.DeliveryFailure{Token: batch[i], Reason: reason})
		}
		s.log.WithContext(ctx).Debugf("fcm batch sent: size=%d success=%d failure=%d", len(batch), resp.SuccessCount, resp.FailureCount)
	}
	return report, nil
}
