package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
)

const (
	formFieldFile     = "file"
	formFieldCarModel = "car_model"
	formFieldUserID   = "user_id"

	maxFieldBytes = 1 << 10
)

// DirectAnalyzer 是直传推理用例的抽象。
type DirectAnalyzer interface {
	AnalyzeDirect(ctx context.Context, upload services.DirectUpload) (vo.PredictionResult, error)
}

// PredictHandler 是 HTTP Relay Endpoint：POST multipart 上传，原样转发图片流。
type PredictHandler struct {
	*BaseHandler

	analyzer       DirectAnalyzer
	maxUploadBytes int64
	allowedOrigin  string
	log            *log.Helper
}

// PredictHandlerConfig 描述直传入口的限制。
type PredictHandlerConfig struct {
	MaxUploadBytes int64
	AllowedOrigin  string
}

// NewPredictHandler 构造 PredictHandler。
func NewPredictHandler(base *BaseHandler, analyzer DirectAnalyzer, cfg PredictHandlerConfig, logger log.Logger) *PredictHandler {
	return &PredictHandler{
		BaseHandler:    base,
		analyzer:       analyzer,
		maxUploadBytes: cfg.MaxUploadBytes,
		allowedOrigin:  cfg.AllowedOrigin,
		log:            log.NewHelper(logger),
	}
}

// ServeHTTP 实现 http.Handler。
// OPTIONS 返回 204；非 POST 返回 405；缺少 file 返回 400；推理失败返回 500。
// 文本字段需位于 file 之前，file 之后的字段不会被读取。
func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, h.allowedOrigin, http.MethodPost, http.MethodOptions)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		h.WriteError(w, r, kerrors.New(http.StatusMethodNotAllowed, reasonMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method)))
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	ctx, cancel := h.WithTimeout(r.Context())
	defer cancel()

	mr, err := r.MultipartReader()
	if err != nil {
		h.WriteError(w, r, kerrors.BadRequest(reasonBadRequest, "expected multipart/form-data body: "+err.Error()))
		return
	}

	upload, part, err := nextFilePart(mr)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, r, toHTTPError(err))
			return
		}
		h.WriteError(w, r, kerrors.BadRequest(reasonBadRequest, err.Error()))
		return
	}
	if part == nil {
		h.WriteError(w, r, kerrors.BadRequest(reasonMissingFile, "No file part"))
		return
	}
	defer part.Close()
	upload.Reader = part

	result, err := h.analyzer.AnalyzeDirect(ctx, upload)
	if err != nil {
		h.log.WithContext(ctx).Errorf("predict: relay failed file=%s: %v", upload.Filename, err)
		h.WriteError(w, r, toHTTPError(err))
		return
	}
	h.WriteJSON(w, r, result)
}

// nextFilePart 读取 file 之前的文本字段，返回首个文件 part；没有文件时 part 为 nil。
func nextFilePart(mr *multipart.Reader) (services.DirectUpload, *multipart.Part, error) {
	var upload services.DirectUpload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return upload, nil, nil
		}
		if err != nil {
			return upload, nil, fmt.Errorf("read multipart: %w", err)
		}

		switch part.FormName() {
		case formFieldFile:
			if part.FileName() == "" {
				_ = part.Close()
				return upload, nil, nil
			}
			upload.Filename = part.FileName()
			upload.ContentType = part.Header.Get("Content-Type")
			return upload, part, nil
		case formFieldCarModel:
			upload.CarModel, err = readField(part)
		case formFieldUserID:
			upload.UserID, err = readField(part)
		}
		_ = part.Close()
		if err != nil {
			return upload, nil, err
		}
	}
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", fmt.Errorf("read field %s: %w", part.FormName(), err)
	}
	return strings.TrimSpace(string(data)), nil
}
