package inference_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

type staticToken struct {
	token    string
	err      error
	audience string
}

func (s *staticToken) Token(_ context.Context, audience string) (string, error) {
	s.audience = audience
	return s.token, s.err
}

type fixedURLs struct{ url string }

func (f fixedURLs) ImageURL(_ context.Context, bucket, object string) (string, error) {
	return f.url + "/" + bucket + "/" + object, nil
}

type capturedRequest struct {
	path        string
	auth        string
	carModel    string
	userID      string
	filename    string
	contentType string
	body        string
}

func newPredictServer(t *testing.T, status int, response string, calls *atomic.Int32, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if captured != nil {
			captured.path = r.URL.Path
			captured.auth = r.Header.Get("Authorization")
			mr, err := r.MultipartReader()
			if err == nil {
				for {
					part, err := mr.NextPart()
					if err != nil {
						break
					}
					data, _ := io.ReadAll(part)
					switch part.FormName() {
					case "car_model":
						captured.carModel = string(data)
					case "user_id":
						captured.userID = string(data)
					case "file":
						captured.filename = part.FileName()
						captured.contentType = part.Header.Get("Content-Type")
						captured.body = string(data)
					}
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(endpoint string, tokens inference.TokenProvider, urls inference.URLBuilder) *inference.Client {
	return inference.NewClient(configloader.InferenceConfig{Endpoint: endpoint}, tokens, urls, log.NewStdLogger(io.Discard))
}

func writeImage(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestPredictRejectsPlaceholderEndpoint(t *testing.T) {
	var calls atomic.Int32
	srv := newPredictServer(t, http.StatusOK, `{}`, &calls, nil)
	_ = srv

	for _, endpoint := range []string{"", "https://YOUR_CLOUD_RUN_URL", "YOUR_CLOUD_RUN_URL/"} {
		client := newClient(endpoint, &staticToken{token: "t"}, nil)
		_, err := client.Predict(context.Background(), vo.AnalysisTarget{
			Image: vo.ByStream{Reader: strings.NewReader("x"), Filename: "a.jpg"},
		})
		require.ErrorIs(t, err, inference.ErrNotConfigured, endpoint)
	}
	require.Zero(t, calls.Load())
}

func TestPredictTokenFailure(t *testing.T) {
	var calls atomic.Int32
	srv := newPredictServer(t, http.StatusOK, `{}`, &calls, nil)

	client := newClient(srv.URL, &staticToken{err: errors.New("metadata server unreachable")}, nil)
	_, err := client.Predict(context.Background(), vo.AnalysisTarget{
		Image: vo.ByStream{Reader: strings.NewReader("x"), Filename: "a.jpg"},
	})
	require.ErrorIs(t, err, inference.ErrTokenUnavailable)
	require.Contains(t, err.Error(), "metadata server unreachable")
	require.Zero(t, calls.Load())
}

func TestPredictUpstreamErrorKeepsBody(t *testing.T) {
	var calls atomic.Int32
	srv := newPredictServer(t, http.StatusInternalServerError, `model crashed`, &calls, nil)

	client := newClient(srv.URL, &staticToken{token: "t"}, nil)
	_, err := client.Predict(context.Background(), vo.AnalysisTarget{
		Image: vo.ByStream{Reader: strings.NewReader("x"), Filename: "a.jpg"},
	})
	require.Error(t, err)

	var upstream *inference.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	require.Contains(t, err.Error(), "model crashed")
	require.True(t, inference.IsTerminal(err))
	require.EqualValues(t, 1, calls.Load())
}

// openHandles 统计当前进程指向 path 的文件描述符数量；没有 /proc 时跳过。
func openHandles(t *testing.T, path string) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot list open descriptors: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err == nil && target == resolved {
			n++
		}
	}
	return n
}

func TestPredictPathModeClosesFileOnEveryExit(t *testing.T) {
	var calls atomic.Int32
	okSrv := newPredictServer(t, http.StatusOK, `{"damage":"dent"}`, &calls, nil)
	failSrv := newPredictServer(t, http.StatusInternalServerError, `model crashed`, &calls, nil)
	badJSONSrv := newPredictServer(t, http.StatusOK, `not json`, &calls, nil)
	goneSrv := newPredictServer(t, http.StatusOK, `{}`, &calls, nil)
	goneSrv.Close()

	cases := map[string]struct {
		endpoint string
		wantErr  bool
	}{
		"success":        {endpoint: okSrv.URL},
		"upstream 500":   {endpoint: failSrv.URL, wantErr: true},
		"bad response":   {endpoint: badJSONSrv.URL, wantErr: true},
		"transport down": {endpoint: goneSrv.URL, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			img := writeImage(t, "u1_20240101.jpg", "jpeg-bytes")
			require.Zero(t, openHandles(t, img))

			_, err := newClient(tc.endpoint, &staticToken{token: "t"}, nil).Predict(context.Background(), vo.AnalysisTarget{
				Image: vo.ByPath{Path: img},
			})
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Zero(t, openHandles(t, img), "image file left open")
		})
	}
}

func TestPredictPathModeSendsFormAndAttachesImageURL(t *testing.T) {
	var calls atomic.Int32
	captured := &capturedRequest{}
	srv := newPredictServer(t, http.StatusOK, `{"damage":"scratch","confidence":0.91}`, &calls, captured)

	tokens := &staticToken{token: "id-token"}
	client := newClient(srv.URL+"/", tokens, fixedURLs{url: "https://cdn.example"})
	path := writeImage(t, "staged.jpg", "jpeg-bytes")

	result, err := client.Predict(context.Background(), vo.AnalysisTarget{
		UserID:   "user123",
		CarModel: "sonata",
		Image:    vo.ByPath{Path: path, Filename: "user123_1700000000.jpg", ContentType: "image/jpeg"},
		Object:   &vo.ObjectRef{Bucket: "bkt", Path: "crashed_car_picture/user123_1700000000.jpg"},
	})
	require.NoError(t, err)

	require.Equal(t, "/predict", captured.path)
	require.Equal(t, "Bearer id-token", captured.auth)
	require.Equal(t, srv.URL, tokens.audience)
	require.Equal(t, "sonata", captured.carModel)
	require.Equal(t, "user123", captured.userID)
	require.Equal(t, "user123_1700000000.jpg", captured.filename)
	require.Equal(t, "image/jpeg", captured.contentType)
	require.Equal(t, "jpeg-bytes", captured.body)

	require.Equal(t, "scratch", result["damage"])
	require.Equal(t, "https://cdn.example/bkt/crashed_car_picture/user123_1700000000.jpg", result.ImageURL())

	// 暂存文件仍由调用方负责删除，Relay 只负责关闭句柄。
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestPredictDefaultsCarModelAndInfersContentType(t *testing.T) {
	var calls atomic.Int32
	captured := &capturedRequest{}
	srv := newPredictServer(t, http.StatusOK, `{}`, &calls, captured)

	client := newClient(srv.URL, &staticToken{token: "t"}, nil)
	path := writeImage(t, "photo.png", "png-bytes")

	result, err := client.Predict(context.Background(), vo.AnalysisTarget{
		Image: &vo.ByPath{Path: path, ContentType: "image/unknown"},
	})
	require.NoError(t, err)
	require.Equal(t, vo.DefaultCarModel, captured.carModel)
	require.Empty(t, captured.userID)
	require.Equal(t, "photo.png", captured.filename)
	require.Equal(t, "image/png", captured.contentType)
	require.Empty(t, result.ImageURL())
}

type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

func TestPredictStreamModeDoesNotCloseReader(t *testing.T) {
	var calls atomic.Int32
	captured := &capturedRequest{}
	srv := newPredictServer(t, http.StatusOK, `{"ok":true}`, &calls, captured)

	client := newClient(srv.URL, &staticToken{token: "t"}, nil)
	reader := &trackingReader{Reader: strings.NewReader("stream-bytes")}

	result, err := client.Predict(context.Background(), vo.AnalysisTarget{
		UserID: "u1",
		Image:  vo.ByStream{Reader: reader, Filename: "u1_1.jpeg", ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	require.Equal(t, true, result["ok"])
	require.Equal(t, "stream-bytes", captured.body)
	require.False(t, reader.closed)
}

func TestPredictMissingFile(t *testing.T) {
	var calls atomic.Int32
	srv := newPredictServer(t, http.StatusOK, `{}`, &calls, nil)

	client := newClient(srv.URL, &staticToken{token: "t"}, nil)
	_, err := client.Predict(context.Background(), vo.AnalysisTarget{
		Image: vo.ByPath{Path: filepath.Join(t.TempDir(), "missing.jpg")},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Zero(t, calls.Load())
}

func TestPredictDisableAuthSkipsToken(t *testing.T) {
	var calls atomic.Int32
	captured := &capturedRequest{}
	srv := newPredictServer(t, http.StatusOK, `{"labels":["dent"]}`, &calls, captured)

	client := inference.NewClient(configloader.InferenceConfig{
		Endpoint:    srv.URL,
		PredictPath: "/v2/predict",
		DisableAuth: true,
	}, nil, nil, log.NewStdLogger(io.Discard))

	result, err := client.Predict(context.Background(), vo.AnalysisTarget{
		Image: vo.ByStream{Reader: strings.NewReader("x"), Filename: "a.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, "/v2/predict", captured.path)
	require.Empty(t, captured.auth)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	require.JSONEq(t, `{"labels":["dent"]}`, string(raw))
}

func TestPredictInvalidTarget(t *testing.T) {
	client := newClient("https://inference.example", &staticToken{token: "t"}, nil)
	_, err := client.Predict(context.Background(), vo.AnalysisTarget{})
	require.ErrorIs(t, err, inference.ErrInvalidTarget)
}
