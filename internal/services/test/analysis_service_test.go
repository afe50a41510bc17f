package services_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
)

func directEvent(object string) *events.StorageEvent {
	return &events.StorageEvent{
		Shape:       events.ShapeDirect,
		Bucket:      "carcare-uploads",
		ObjectPath:  object,
		ContentType: "image/jpeg",
		Metadata:    map[string]string{"carModel": "avante"},
	}
}

func TestAnalyzeUploadPathModeStagesAndRemoves(t *testing.T) {
	store := &fakeObjectStore{content: "jpeg"}
	relay := &fakePredictor{result: vo.PredictionResult{"damage": "bumper"}}
	svc := services.NewAnalysisService(storageConfig(), store, relay, log.NewStdLogger(io.Discard))

	result, err := svc.AnalyzeUpload(context.Background(), directEvent("crashed_car_picture/user123_20240122.jpg"))
	require.NoError(t, err)
	require.Equal(t, "bumper", result["damage"])
	require.Equal(t, "https://img/crashed_car_picture/user123_20240122.jpg", result.ImageURL())

	require.Len(t, relay.targets, 1)
	target := relay.targets[0]
	require.Equal(t, "user123", target.UserID)
	require.Equal(t, "avante", target.CarModel)
	byPath, ok := target.Image.(vo.ByPath)
	require.True(t, ok)
	require.Equal(t, "user123_20240122.jpg", byPath.Filename)
	require.Equal(t, "image/jpeg", byPath.ContentType)
	require.Equal(t, &vo.ObjectRef{Bucket: "carcare-uploads", Path: "crashed_car_picture/user123_20240122.jpg"}, target.Object)

	require.Zero(t, store.attrCalls, "metadata present on event, no lookup expected")
	require.Equal(t, 1, store.removed)
}

func TestAnalyzeUploadStreamModeClosesReader(t *testing.T) {
	cfg := storageConfig()
	cfg.RelayMode = configloader.RelayModeStream
	store := &fakeObjectStore{content: "png-bytes", info: &gcs.ObjectInfo{ContentType: "image/png", Metadata: map[string]string{"carModel": "k5"}}}
	relay := &fakePredictor{}
	svc := services.NewAnalysisService(cfg, store, relay, log.NewStdLogger(io.Discard))

	evt := &events.StorageEvent{
		Shape:       events.ShapeAuditLog,
		Bucket:      "carcare-uploads",
		ObjectPath:  "crashed_car_picture/kim_20240301.png",
		ContentType: events.UnknownContentType,
	}
	_, err := svc.AnalyzeUpload(context.Background(), evt)
	require.NoError(t, err)

	require.Equal(t, 1, store.attrCalls)
	require.Equal(t, 1, store.opened)
	require.Equal(t, 1, store.closed)
	require.Equal(t, []string{"png-bytes"}, relay.bodies)

	target := relay.targets[0]
	require.Equal(t, "k5", target.CarModel)
	stream, ok := target.Image.(vo.ByStream)
	require.True(t, ok)
	require.Equal(t, "image/png", stream.ContentType)
}

func TestAnalyzeUploadAttrsFailureFallsBackToDefaults(t *testing.T) {
	store := &fakeObjectStore{content: "x", attrsErr: errors.New("permission denied")}
	relay := &fakePredictor{}
	svc := services.NewAnalysisService(storageConfig(), store, relay, log.NewStdLogger(io.Discard))

	evt := directEvent("crashed_car_picture/u9_20240101.jpg")
	evt.Metadata = nil
	_, err := svc.AnalyzeUpload(context.Background(), evt)
	require.NoError(t, err)
	require.Empty(t, relay.targets[0].CarModel)
	require.Equal(t, vo.DefaultCarModel, relay.targets[0].CarModelOrDefault())
}

func TestAnalyzeUploadDrops(t *testing.T) {
	cases := []struct {
		name   string
		evt    *events.StorageEvent
		store  *fakeObjectStore
		target error
	}{
		{"missing bucket", &events.StorageEvent{ObjectPath: "crashed_car_picture/u_1.jpg"}, &fakeObjectStore{}, services.ErrMalformedEvent},
		{"outside prefix", directEvent("other_folder/u1_20240101.jpg"), &fakeObjectStore{}, services.ErrOutsideIntake},
		{"not image", &events.StorageEvent{Bucket: "b", ObjectPath: "crashed_car_picture/u1_20240101.txt", ContentType: "text/plain"}, &fakeObjectStore{}, services.ErrNotImage},
		{"no uid", directEvent("crashed_car_picture/nodatehere.jpg"), &fakeObjectStore{}, services.ErrNoIdentity},
		{"object deleted", directEvent("crashed_car_picture/u1_20240101.jpg"), &fakeObjectStore{stageErr: gcs.ErrObjectNotFound}, services.ErrObjectGone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			relay := &fakePredictor{}
			svc := services.NewAnalysisService(storageConfig(), tc.store, relay, log.NewStdLogger(io.Discard))
			_, err := svc.AnalyzeUpload(context.Background(), tc.evt)
			require.ErrorIs(t, err, tc.target)
			require.ErrorIs(t, err, events.ErrDropped)
			require.Empty(t, relay.targets)
		})
	}
}

func TestAnalyzeUploadPropagatesRelayErrors(t *testing.T) {
	store := &fakeObjectStore{content: "x"}
	relay := &fakePredictor{err: &inference.UpstreamError{StatusCode: 503, Body: "overloaded"}}
	svc := services.NewAnalysisService(storageConfig(), store, relay, log.NewStdLogger(io.Discard))

	_, err := svc.AnalyzeUpload(context.Background(), directEvent("crashed_car_picture/u1_20240101.jpg"))
	require.Error(t, err)
	require.False(t, errors.Is(err, events.ErrDropped))
	require.Contains(t, err.Error(), "overloaded")
	require.Equal(t, 1, store.removed, "staged file removed on failure")
}

func TestAnalyzeUploadUnconfiguredRelaySkipsStorage(t *testing.T) {
	for _, mode := range []string{configloader.RelayModePath, configloader.RelayModeStream} {
		t.Run(mode, func(t *testing.T) {
			store := &fakeObjectStore{content: "x"}
			relay := &fakePredictor{unconfigured: true}
			cfg := storageConfig()
			cfg.RelayMode = mode
			svc := services.NewAnalysisService(cfg, store, relay, log.NewStdLogger(io.Discard))

			evt := directEvent("crashed_car_picture/u1_20240101.jpg")
			evt.Metadata = nil
			_, err := svc.AnalyzeUpload(context.Background(), evt)

			require.ErrorIs(t, err, inference.ErrNotConfigured)
			require.False(t, errors.Is(err, events.ErrDropped))
			require.Zero(t, store.attrCalls)
			require.Empty(t, store.staged)
			require.Zero(t, store.opened)
			require.Empty(t, relay.targets)
		})
	}
}

func TestAnalyzeDirectDerivesUserFromFilename(t *testing.T) {
	relay := &fakePredictor{result: vo.PredictionResult{"ok": true}}
	svc := services.NewAnalysisService(storageConfig(), nil, relay, log.NewStdLogger(io.Discard))

	result, err := svc.AnalyzeDirect(context.Background(), services.DirectUpload{
		Reader:      strings.NewReader("bytes"),
		Filename:    "lee_20240505.jpg",
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)
	require.Equal(t, true, result["ok"])
	require.Empty(t, result.ImageURL())
	require.Equal(t, "lee", relay.targets[0].UserID)
	require.Nil(t, relay.targets[0].Object)
	require.Equal(t, []string{"bytes"}, relay.bodies)

	_, err = svc.AnalyzeDirect(context.Background(), services.DirectUpload{
		Reader:   strings.NewReader("bytes"),
		Filename: "photo.jpg",
		UserID:   "explicit",
		CarModel: "ioniq",
	})
	require.NoError(t, err)
	require.Equal(t, "explicit", relay.targets[1].UserID)
	require.Equal(t, "ioniq", relay.targets[1].CarModel)
}
