// Package controllers 提供 HTTP 传输层 Handler：直传推理入口与 Eventarc 事件接收。
package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
)

const (
	fallbackTimeout = 60 * time.Second
	defaultOrigin   = "*"

	reasonMethodNotAllowed = "METHOD_NOT_ALLOWED"
	reasonMissingFile      = "MISSING_FILE"
	reasonBadRequest       = "BAD_REQUEST"
	reasonPayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	reasonNotConfigured    = "INFERENCE_NOT_CONFIGURED"
	reasonUnauthenticated  = "INFERENCE_AUTH_FAILED"
	reasonUpstream         = "INFERENCE_UPSTREAM_ERROR"
	reasonInternal         = "INTERNAL"
)

// BaseHandler 提供超时与错误渲染等公共能力，供具体 Handler 内嵌复用。
type BaseHandler struct {
	timeout time.Duration
}

// NewBaseHandler 构造基础 Handler；timeout <= 0 时使用回退值。
func NewBaseHandler(timeout time.Duration) *BaseHandler {
	if timeout <= 0 {
		timeout = fallbackTimeout
	}
	return &BaseHandler{timeout: timeout}
}

// WithTimeout 为单次请求绑定超时。
func (h *BaseHandler) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h == nil || h.timeout <= 0 {
		return context.WithTimeout(ctx, fallbackTimeout)
	}
	return context.WithTimeout(ctx, h.timeout)
}

// WriteError 使用 kratos 的错误编码器输出 {code, reason, message}。
func (h *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	khttp.DefaultErrorEncoder(w, r, err)
}

// WriteJSON 使用 kratos 的响应编码器输出 200。
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, r *http.Request, v any) {
	if err := khttp.DefaultResponseEncoder(w, r, v); err != nil {
		khttp.DefaultErrorEncoder(w, r, err)
	}
}

// toHTTPError 将推理链路错误映射为带状态码的 kratos 错误。
func toHTTPError(err error) *kerrors.Error {
	var (
		tooLarge *http.MaxBytesError
		upstream *inference.UpstreamError
	)
	switch {
	case errors.As(err, &tooLarge):
		return kerrors.New(http.StatusRequestEntityTooLarge, reasonPayloadTooLarge, err.Error())
	case errors.Is(err, inference.ErrNotConfigured):
		return kerrors.InternalServer(reasonNotConfigured, err.Error())
	case errors.Is(err, inference.ErrTokenUnavailable):
		return kerrors.InternalServer(reasonUnauthenticated, err.Error())
	case errors.As(err, &upstream):
		return kerrors.InternalServer(reasonUpstream, err.Error()).
			WithMetadata(map[string]string{"upstream_status": strconv.Itoa(upstream.StatusCode)})
	default:
		return kerrors.InternalServer(reasonInternal, err.Error())
	}
}

// setCORSHeaders 写入宽松的跨域响应头。
func setCORSHeaders(w http.ResponseWriter, origin string, methods ...string) {
	if origin == "" {
		origin = defaultOrigin
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", "3600")
	if origin != defaultOrigin {
		h.Add("Vary", "Origin")
	}
}
