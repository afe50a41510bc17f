package controllers

import (
	"context"
	"net/http"

	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/carcare-services-estimate/internal/tasks/estimates"
	"github.com/bionicotaku/carcare-services-estimate/internal/tasks/uploads"
)

const reasonInvalidEvent = "INVALID_CLOUDEVENT"

// UploadEventHandler 处理存储 finalize 事件的原始负载。
type UploadEventHandler interface {
	HandlePayload(ctx context.Context, decoder *uploads.Decoder, id string, data []byte) error
}

// EstimateEventHandler 处理报价文档创建事件。
type EstimateEventHandler interface {
	Handle(ctx context.Context, delivery estimates.Delivery) error
}

// EventHandler 接收 Eventarc 以 HTTP 推送的 CloudEvent（binary 或 structured 模式）。
// 处理成功或事件被丢弃时返回 204，其余错误返回 500 以触发重投递。
type EventHandler struct {
	*BaseHandler

	uploads   UploadEventHandler
	decoder   *uploads.Decoder
	estimates EstimateEventHandler
	log       *log.Helper
}

// NewEventHandler 构造 EventHandler。
func NewEventHandler(base *BaseHandler, uploadHandler UploadEventHandler, decoder *uploads.Decoder, estimateHandler EstimateEventHandler, logger log.Logger) *EventHandler {
	return &EventHandler{
		BaseHandler: base,
		uploads:     uploadHandler,
		decoder:     decoder,
		estimates:   estimateHandler,
		log:         log.NewHelper(logger),
	}
}

// StorageEvents 返回 POST /events/storage 的处理函数。
func (h *EventHandler) StorageEvents() http.HandlerFunc {
	return h.receive(func(ctx context.Context, id, _, _ string, data []byte) error {
		return h.uploads.HandlePayload(ctx, h.decoder, id, data)
	})
}

// EstimateEvents 返回 POST /events/estimates 的处理函数。
func (h *EventHandler) EstimateEvents() http.HandlerFunc {
	return h.receive(func(ctx context.Context, id, source, subject string, data []byte) error {
		return h.estimates.Handle(ctx, estimates.Delivery{
			ID:      id,
			Source:  source,
			Subject: subject,
			Data:    data,
		})
	})
}

type eventFunc func(ctx context.Context, id, source, subject string, data []byte) error

func (h *EventHandler) receive(fn eventFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			h.WriteError(w, r, kerrors.New(http.StatusMethodNotAllowed, reasonMethodNotAllowed, "events accept POST only"))
			return
		}
		evt, err := cehttp.NewEventFromHTTPRequest(r)
		if err != nil {
			h.log.WithContext(r.Context()).Warnf("events: reject request path=%s: %v", r.URL.Path, err)
			h.WriteError(w, r, kerrors.BadRequest(reasonInvalidEvent, err.Error()))
			return
		}

		ctx, cancel := h.WithTimeout(r.Context())
		defer cancel()

		h.log.WithContext(ctx).Debugf("events: received id=%s type=%s source=%s subject=%s",
			evt.ID(), evt.Type(), evt.Source(), evt.Subject())
		if err := fn(ctx, evt.ID(), evt.Source(), evt.Subject(), evt.Data()); err != nil {
			h.WriteError(w, r, toHTTPError(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
