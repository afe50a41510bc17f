package uploads

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
)

// Analyzer 是上传分析用例的抽象。
type Analyzer interface {
	AnalyzeUpload(ctx context.Context, evt *events.StorageEvent) (vo.PredictionResult, error)
}

// Handler 是存储触发的边界：丢弃类结果记录日志后返回 nil，其余错误向上传播。
// 配置、鉴权与上游失败记 ERROR，其余（超时、存储读取）记 WARN。
type Handler struct {
	analyzer Analyzer
	log      *log.Helper
}

// NewHandler 构造上传事件处理器。
func NewHandler(analyzer Analyzer, logger log.Logger) *Handler {
	return &Handler{analyzer: analyzer, log: log.NewHelper(logger)}
}

// Handle 处理一条已归一化的事件。
func (h *Handler) Handle(ctx context.Context, evt *events.StorageEvent) error {
	if evt == nil {
		return fmt.Errorf("uploads: nil event payload")
	}
	helper := h.log.WithContext(ctx)
	helper.Infof("uploads: received event id=%s shape=%s bucket=%s file=%s created=%s content_type=%s",
		evt.ID, evt.Shape, evt.Bucket, evt.ObjectPath, evt.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), evt.ContentType)

	_, err := h.analyzer.AnalyzeUpload(ctx, evt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, events.ErrDropped):
		helper.Infof("uploads: skipped event id=%s: %v", evt.ID, err)
		return nil
	case inference.IsTerminal(err):
		helper.Errorf("uploads: analysis failed id=%s object=%s: %v", evt.ID, evt.ObjectPath, err)
		return err
	default:
		helper.Warnf("uploads: analysis interrupted id=%s object=%s, will retry: %v", evt.ID, evt.ObjectPath, err)
		return err
	}
}

// HandlePayload 解码原始负载后处理；无法解析的负载记录 WARN 并确认。
func (h *Handler) HandlePayload(ctx context.Context, decoder *Decoder, id string, data []byte) error {
	evt, err := decoder.Decode(data)
	if err != nil {
		if errors.Is(err, events.ErrDropped) {
			h.log.WithContext(ctx).Warnf("uploads: dropped malformed event id=%s: %v", id, err)
			return nil
		}
		return err
	}
	if evt.ID == "" {
		evt.ID = id
	}
	return h.Handle(ctx, evt)
}
