package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/oauth2/google"

	configloader "github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

// DefaultDownloadHost 是 Firebase Storage 下载域名。
const DefaultDownloadHost = "firebasestorage.googleapis.com"

// PublicDownloadURL 构造确定性的公开下载 URL：
// https://{host}/v0/b/{bucket}/o/{enc(prefix)}%2F{enc(basename)}?alt=media
// 每个路径段按查询串规则转义（空格为 %20，'+' 为 %2B）后以 %2F 连接，
// 无论按路径还是按查询串解码都能还原原始对象路径。
func PublicDownloadURL(host, bucket, object string) string {
	if host == "" {
		host = DefaultDownloadHost
	}
	segments := strings.Split(object, "/")
	for i, seg := range segments {
		segments[i] = strings.ReplaceAll(url.QueryEscape(seg), "+", "%20")
	}
	return fmt.Sprintf("https://%s/v0/b/%s/o/%s?alt=media",
		host, url.PathEscape(bucket), strings.Join(segments, "%2F"))
}

// URLBuilder 根据配置生成公开 URL 或 V4 签名 GET URL。
type URLBuilder struct {
	mode           string
	host           string
	ttl            time.Duration
	googleAccessID string
	privateKey     []byte
	now            func() time.Time
	log            *log.Helper
}

// Option 定义可选配置。
type Option func(*URLBuilder)

// WithClock 覆盖时间获取函数，便于测试。
func WithClock(clock func() time.Time) Option {
	return func(b *URLBuilder) {
		if clock != nil {
			b.now = clock
		}
	}
}

// WithServiceAccountKey 允许直接注入访问 ID 与私钥（测试友好）。
func WithServiceAccountKey(accessID string, privateKey []byte) Option {
	return func(b *URLBuilder) {
		if accessID != "" {
			b.googleAccessID = accessID
		}
		if len(privateKey) > 0 {
			b.privateKey = append([]byte(nil), privateKey...)
		}
	}
}

// NewURLBuilder 创建 URLBuilder。signed 模式要求默认凭据包含 service account 私钥。
func NewURLBuilder(ctx context.Context, cfg configloader.ImageURLConfig, logger log.Logger, opts ...Option) (*URLBuilder, error) {
	b := &URLBuilder{
		mode:           cfg.Mode,
		host:           cfg.Host,
		ttl:            cfg.SignedTTL.Std(),
		googleAccessID: cfg.SignerServiceAccount,
		now:            time.Now,
		log:            log.NewHelper(logger),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.mode != "signed" {
		b.mode = "public"
		return b, nil
	}

	if b.ttl <= 0 {
		return nil, errors.New("gcs url builder: signed ttl must be positive")
	}
	if len(b.privateKey) == 0 {
		privKey, detectedAccessID, err := loadServiceAccountKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs url signer: %w", err)
		}
		b.privateKey = privKey
		if b.googleAccessID == "" {
			b.googleAccessID = detectedAccessID
		} else if detectedAccessID != "" && detectedAccessID != b.googleAccessID {
			b.log.WithContext(ctx).Warnf("gcs signer access id mismatch: config=%s credentials=%s", b.googleAccessID, detectedAccessID)
		}
	}
	if b.googleAccessID == "" {
		return nil, errors.New("gcs url builder: google access id is required")
	}
	return b, nil
}

// ImageURL 返回对象的展示 URL。
func (b *URLBuilder) ImageURL(ctx context.Context, bucket, object string) (string, error) {
	if bucket == "" || object == "" {
		return "", errors.New("gcs url builder: bucket and object are required")
	}
	if b == nil || b.mode != "signed" {
		host := DefaultDownloadHost
		if b != nil && b.host != "" {
			host = b.host
		}
		return PublicDownloadURL(host, bucket, object), nil
	}

	signed, err := storage.SignedURL(bucket, object, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        b.now().Add(b.ttl),
		GoogleAccessID: b.googleAccessID,
		PrivateKey:     b.privateKey,
	})
	if err != nil {
		b.log.WithContext(ctx).Errorf("generate signed url failed: bucket=%s object=%s err=%v", bucket, object, err)
		return "", fmt.Errorf("signed url: %w", err)
	}
	return signed, nil
}

type serviceAccountKey struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

func loadServiceAccountKey(ctx context.Context) ([]byte, string, error) {
	creds, err := google.FindDefaultCredentials(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("find default credentials: %w", err)
	}
	if len(creds.JSON) == 0 {
		return nil, "", errors.New("service account JSON not found in default credentials")
	}

	var key serviceAccountKey
	if err := json.Unmarshal(creds.JSON, &key); err != nil {
		return nil, "", fmt.Errorf("parse service account json: %w", err)
	}
	if key.PrivateKey == "" {
		return nil, "", errors.New("service account private key is empty; use a service account JSON credential")
	}
	return []byte(key.PrivateKey), key.ClientEmail, nil
}
