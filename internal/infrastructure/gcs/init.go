package gcs

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	configloader "github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

// ProviderSet 暴露 GCS 相关依赖。
var ProviderSet = wire.NewSet(NewClient, ProvideObjectStore, ProvideURLBuilder)

// ProvideObjectStore 供 Wire 注入使用。
func ProvideObjectStore(client *storage.Client, cfg configloader.StorageConfig, logger log.Logger) *ObjectStore {
	return NewObjectStore(client, cfg.StagingDir, logger)
}

// ProvideURLBuilder 供 Wire 注入使用。
func ProvideURLBuilder(ctx context.Context, cfg configloader.StorageConfig, logger log.Logger) (*URLBuilder, error) {
	return NewURLBuilder(ctx, cfg.ImageURL, logger)
}
