// Package inference 实现对外部损伤识别服务的调用：鉴权、multipart 上传与结果合并。
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	fieldFile     = "file"
	fieldCarModel = "car_model"
	fieldUserID   = "user_id"

	defaultPredictPath  = "/predict"
	defaultTimeout      = 60 * time.Second
	defaultMaxErrorBody = 4 << 10
	octetStream         = "application/octet-stream"
)

// placeholderEndpoints 是部署模板中未替换的端点值。
var placeholderEndpoints = []string{
	"https://YOUR_CLOUD_RUN_URL",
	"YOUR_CLOUD_RUN_URL",
	"https://your-inference-endpoint",
	"CHANGE_ME",
}

// IsConfigured 判断端点是否为真实地址（非空、非占位值）。
func IsConfigured(endpoint string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return false
	}
	for _, p := range placeholderEndpoints {
		if strings.EqualFold(trimmed, p) {
			return false
		}
	}
	return true
}

// URLBuilder 生成原始对象的展示 URL。
type URLBuilder interface {
	ImageURL(ctx context.Context, bucket, object string) (string, error)
}

// Client 是 Inference Relay：一次 Predict 对应一次 POST {endpoint}/predict。
type Client struct {
	endpoint     string
	audience     string
	predictPath  string
	maxErrorBody int64
	disableAuth  bool

	httpClient *http.Client
	tokens     TokenProvider
	urls       URLBuilder
	requests   metric.Int64Counter
	log        *log.Helper
}

// Option 定义可选配置。
type Option func(*Client)

// WithHTTPClient 覆盖出站 HTTP 客户端（测试或自定义 Transport）。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMeter 设置指标 Meter。
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		if meter == nil {
			return
		}
		if counter, err := meter.Int64Counter("estimate_inference_requests_total",
			metric.WithDescription("Inference relay calls by result")); err == nil {
			c.requests = counter
		}
	}
}

// NewClient 构造推理客户端。端点未配置时仍可构造，调用时返回 ErrNotConfigured。
func NewClient(cfg configloader.InferenceConfig, tokens TokenProvider, urls URLBuilder, logger log.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	predictPath := cfg.PredictPath
	if predictPath == "" {
		predictPath = defaultPredictPath
	}
	maxErrorBody := cfg.MaxErrorBodyBytes
	if maxErrorBody <= 0 {
		maxErrorBody = defaultMaxErrorBody
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = endpoint
	}

	noopCounter, _ := noop.NewMeterProvider().Meter("inference").Int64Counter("noop")
	c := &Client{
		endpoint:     endpoint,
		audience:     audience,
		predictPath:  predictPath,
		maxErrorBody: maxErrorBody,
		disableAuth:  cfg.DisableAuth,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:   tokens,
		urls:     urls,
		requests: noopCounter,
		log:      log.NewHelper(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured 报告端点是否可用，供启动日志使用。
func (c *Client) Configured() bool {
	return c != nil && IsConfigured(c.endpoint)
}

// Predict 上传图片并返回推理结果；target.Object 非空时附加 imageUrl。
// ByPath 模式下由本方法打开并在所有路径上关闭文件；ByStream 的 Reader 不会被关闭。
func (c *Client) Predict(ctx context.Context, target vo.AnalysisTarget) (vo.PredictionResult, error) {
	if !IsConfigured(c.endpoint) {
		c.record(ctx, "config_error")
		return nil, fmt.Errorf("%w: endpoint=%q", ErrNotConfigured, c.endpoint)
	}
	if target.Image == nil {
		return nil, fmt.Errorf("%w: image source is required", ErrInvalidTarget)
	}

	var bearer string
	if !c.disableAuth {
		if c.tokens == nil {
			c.record(ctx, "auth_error")
			return nil, fmt.Errorf("%w: no token provider", ErrTokenUnavailable)
		}
		tok, err := c.tokens.Token(ctx, c.audience)
		if err != nil {
			c.record(ctx, "auth_error")
			return nil, fmt.Errorf("%w: audience=%s: %w", ErrTokenUnavailable, c.audience, err)
		}
		bearer = tok
	}

	part, err := openImage(target.Image)
	if err != nil {
		return nil, err
	}
	if part.closer != nil {
		defer func() {
			if cerr := part.closer.Close(); cerr != nil {
				c.log.WithContext(ctx).Warnf("inference: close staged image %s: %v", part.filename, cerr)
			}
		}()
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeForm(mw, part, target.CarModelOrDefault(), target.UserID))
	}()
	// 先关闭读端让写协程退出，再关闭文件（defer 逆序执行）。
	defer func() {
		_ = pr.Close()
		<-done
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+c.predictPath, pr)
	if err != nil {
		return nil, fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, "transport_error")
		return nil, fmt.Errorf("inference: request %s: %w", c.predictPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.record(ctx, "upstream_error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, c.maxErrorBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result vo.PredictionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.record(ctx, "decode_error")
		return nil, fmt.Errorf("inference: decode response: %w", err)
	}
	if result == nil {
		result = vo.PredictionResult{}
	}

	if target.Object != nil && c.urls != nil {
		imageURL, err := c.urls.ImageURL(ctx, target.Object.Bucket, target.Object.Path)
		if err != nil {
			return nil, fmt.Errorf("inference: build image url: %w", err)
		}
		result = result.WithImageURL(imageURL)
	}

	c.record(ctx, "ok")
	return result, nil
}

func (c *Client) record(ctx context.Context, result string) {
	c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

type imagePart struct {
	reader      io.Reader
	closer      io.Closer
	filename    string
	contentType string
}

func openImage(src vo.ImageSource) (*imagePart, error) {
	switch s := src.(type) {
	case vo.ByPath:
		return openPath(s)
	case *vo.ByPath:
		if s == nil {
			return nil, fmt.Errorf("%w: nil path source", ErrInvalidTarget)
		}
		return openPath(*s)
	case vo.ByStream:
		return streamPart(s)
	case *vo.ByStream:
		if s == nil {
			return nil, fmt.Errorf("%w: nil stream source", ErrInvalidTarget)
		}
		return streamPart(*s)
	default:
		return nil, fmt.Errorf("%w: unsupported image source %T", ErrInvalidTarget, src)
	}
}

func openPath(s vo.ByPath) (*imagePart, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("%w: empty image path", ErrInvalidTarget)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("inference: open image: %w", err)
	}
	filename := s.Filename
	if filename == "" {
		filename = filepath.Base(s.Path)
	}
	return &imagePart{
		reader:      f,
		closer:      f,
		filename:    filename,
		contentType: resolveContentType(s.ContentType, filename),
	}, nil
}

func streamPart(s vo.ByStream) (*imagePart, error) {
	if s.Reader == nil {
		return nil, fmt.Errorf("%w: nil image stream", ErrInvalidTarget)
	}
	filename := s.Filename
	if filename == "" {
		filename = "upload"
	}
	return &imagePart{
		reader:      s.Reader,
		filename:    filename,
		contentType: resolveContentType(s.ContentType, filename),
	}, nil
}

// resolveContentType 在缺失或为审计日志占位值时按扩展名推断 MIME 类型。
func resolveContentType(declared, filename string) string {
	if declared != "" && declared != events.UnknownContentType {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return octetStream
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeForm(mw *multipart.Writer, part *imagePart, carModel, userID string) error {
	if err := mw.WriteField(fieldCarModel, carModel); err != nil {
		return err
	}
	if userID != "" {
		if err := mw.WriteField(fieldUserID, userID); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldFile, quoteEscaper.Replace(part.filename)))
	header.Set("Content-Type", part.contentType)
	w, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, part.reader); err != nil {
		return fmt.Errorf("copy image bytes: %w", err)
	}
	return mw.Close()
}

// IsTerminal 判断错误是否属于配置/鉴权/上游类失败（需要向触发源抛出）。
func IsTerminal(err error) bool {
	var upstream *UpstreamError
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrTokenUnavailable) || errors.As(err, &upstream)
}
