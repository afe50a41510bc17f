package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
)

// ObjectStore 定义分析流程需要的对象存储能力。
type ObjectStore interface {
	Attrs(ctx context.Context, bucket, object string) (*gcs.ObjectInfo, error)
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Stage(ctx context.Context, bucket, object string) (*gcs.StagedObject, error)
}

// Predictor 是 Inference Relay 的抽象。
// Configured 为 false 时 Predict 必然失败，调用方应在读取对象之前短路。
type Predictor interface {
	Configured() bool
	Predict(ctx context.Context, target vo.AnalysisTarget) (vo.PredictionResult, error)
}

// DirectUpload 描述 HTTP 直传的图片，Reader 由调用方持有。
type DirectUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	UserID      string
	CarModel    string
}

// AnalysisService 串联 Object Filter、Identity Extractor 与 Inference Relay。
type AnalysisService struct {
	filter        *ObjectFilter
	objects       ObjectStore
	relay         Predictor
	relayMode     string
	metadataKey   string
	fetchMetadata bool
	outcomes      metric.Int64Counter
	log           *log.Helper
}

// AnalysisOption 定义可选配置。
type AnalysisOption func(*AnalysisService)

// WithAnalysisMeter 设置指标 Meter。
func WithAnalysisMeter(meter metric.Meter) AnalysisOption {
	return func(s *AnalysisService) {
		if meter == nil {
			return
		}
		if counter, err := meter.Int64Counter("estimate_storage_events_total",
			metric.WithDescription("Storage events by outcome")); err == nil {
			s.outcomes = counter
		}
	}
}

// NewAnalysisService 构造 AnalysisService。
func NewAnalysisService(cfg configloader.StorageConfig, objects ObjectStore, relay Predictor, logger log.Logger, opts ...AnalysisOption) *AnalysisService {
	mode := cfg.RelayMode
	if mode == "" {
		mode = configloader.RelayModePath
	}
	noopCounter, _ := noop.NewMeterProvider().Meter("services").Int64Counter("noop")
	s := &AnalysisService{
		filter:        NewObjectFilter(cfg),
		objects:       objects,
		relay:         relay,
		relayMode:     mode,
		metadataKey:   cfg.CarModelMetadataKey,
		fetchMetadata: cfg.ShouldFetchMetadata(),
		outcomes:      noopCounter,
		log:           log.NewHelper(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeUpload 处理一个规范化后的存储事件。
// 被过滤、格式错误或无法提取身份的事件返回包装 events.ErrDropped 的错误；
// 配置、鉴权与上游错误原样返回，由触发源决定是否重投递。
func (s *AnalysisService) AnalyzeUpload(ctx context.Context, evt *events.StorageEvent) (vo.PredictionResult, error) {
	result, err := s.analyzeUpload(ctx, evt)
	switch {
	case err == nil:
		s.record(ctx, "processed")
	case errors.Is(err, events.ErrDropped):
		s.record(ctx, "dropped")
	default:
		s.record(ctx, "failed")
	}
	return result, err
}

func (s *AnalysisService) analyzeUpload(ctx context.Context, evt *events.StorageEvent) (vo.PredictionResult, error) {
	if err := s.filter.Check(evt); err != nil {
		return nil, err
	}

	basename := path.Base(evt.ObjectPath)
	userID, ok := ExtractUserID(basename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoIdentity, basename)
	}
	s.log.WithContext(ctx).Infof("analysis: detected uid=%s object=gs://%s/%s shape=%s", userID, evt.Bucket, evt.ObjectPath, evt.Shape)

	// 端点为占位值时不查询属性、不落盘。
	if !s.relay.Configured() {
		return nil, fmt.Errorf("analysis: gs://%s/%s: %w", evt.Bucket, evt.ObjectPath, inference.ErrNotConfigured)
	}

	carModel, contentType, err := s.resolveAttributes(ctx, evt)
	if err != nil {
		return nil, err
	}

	target := vo.AnalysisTarget{
		UserID:   userID,
		CarModel: carModel,
		Object:   &vo.ObjectRef{Bucket: evt.Bucket, Path: evt.ObjectPath},
	}

	var result vo.PredictionResult
	switch s.relayMode {
	case configloader.RelayModeStream:
		result, err = s.relayStream(ctx, evt, basename, contentType, target)
	default:
		result, err = s.relayStaged(ctx, evt, basename, contentType, target)
	}
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infof("analysis: completed for user=%s result=%s", userID, encodeResult(result))
	return result, nil
}

// resolveAttributes 从事件元数据取车型；事件缺少元数据时回查对象属性。
// 属性查询失败不终止处理，车型回退为 unknown。
func (s *AnalysisService) resolveAttributes(ctx context.Context, evt *events.StorageEvent) (string, string, error) {
	carModel := evt.Metadata[s.metadataKey]
	contentType := evt.ContentType
	if carModel != "" || !s.fetchMetadata || s.objects == nil {
		return carModel, contentType, nil
	}

	info, err := s.objects.Attrs(ctx, evt.Bucket, evt.ObjectPath)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotFound) {
			return "", "", fmt.Errorf("%w: gs://%s/%s", ErrObjectGone, evt.Bucket, evt.ObjectPath)
		}
		s.log.WithContext(ctx).Warnf("analysis: object attrs unavailable, using defaults: object=%s err=%v", evt.ObjectPath, err)
		return "", contentType, nil
	}
	if !evt.HasTrustedContentType() && info.ContentType != "" {
		contentType = info.ContentType
	}
	return info.Metadata[s.metadataKey], contentType, nil
}

func (s *AnalysisService) relayStaged(ctx context.Context, evt *events.StorageEvent, basename, contentType string, target vo.AnalysisTarget) (vo.PredictionResult, error) {
	staged, err := s.objects.Stage(ctx, evt.Bucket, evt.ObjectPath)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectGone, evt.Bucket, evt.ObjectPath)
		}
		return nil, fmt.Errorf("analysis: stage object: %w", err)
	}
	defer staged.Remove()

	target.Image = vo.ByPath{Path: staged.Path, Filename: basename, ContentType: contentType}
	return s.relay.Predict(ctx, target)
}

func (s *AnalysisService) relayStream(ctx context.Context, evt *events.StorageEvent, basename, contentType string, target vo.AnalysisTarget) (vo.PredictionResult, error) {
	reader, err := s.objects.Open(ctx, evt.Bucket, evt.ObjectPath)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectGone, evt.Bucket, evt.ObjectPath)
		}
		return nil, fmt.Errorf("analysis: open object: %w", err)
	}
	defer reader.Close()

	target.Image = vo.ByStream{Reader: reader, Filename: basename, ContentType: contentType}
	return s.relay.Predict(ctx, target)
}

// AnalyzeDirect 转发 HTTP 直传的图片；不附加 imageUrl。
// 未提供 user_id 时尝试从文件名提取，失败则不携带该字段。
func (s *AnalysisService) AnalyzeDirect(ctx context.Context, upload DirectUpload) (vo.PredictionResult, error) {
	if upload.Reader == nil {
		return nil, errors.New("analysis: upload stream is required")
	}
	userID := upload.UserID
	if userID == "" {
		userID, _ = ExtractUserID(upload.Filename)
	}
	result, err := s.relay.Predict(ctx, vo.AnalysisTarget{
		UserID:   userID,
		CarModel: upload.CarModel,
		Image: vo.ByStream{
			Reader:      upload.Reader,
			Filename:    upload.Filename,
			ContentType: upload.ContentType,
		},
	})
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Infof("analysis: direct upload completed file=%s user=%s", upload.Filename, userID)
	return result, nil
}

func (s *AnalysisService) record(ctx context.Context, outcome string) {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func encodeResult(result vo.PredictionResult) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(result))
	}
	return string(raw)
}
