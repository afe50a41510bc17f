package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/database"
)

// ProviderSet 暴露 Repository 层的构造函数供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(ProvideDeviceRegistry)

// ProvideDeviceRegistry 按 data.device_registry.backend 选择实现。
// postgres 后端在此处才建立连接池，firestore 部署不需要 DATABASE_URL。
func ProvideDeviceRegistry(
	ctx context.Context,
	data configloader.DataConfig,
	notify configloader.NotificationConfig,
	fs *firestore.Client,
	logger log.Logger,
) (DeviceRegistry, func(), error) {
	switch data.DeviceRegistry.Backend {
	case "", "firestore":
		return NewFirestoreDeviceRepository(fs, notify, logger), func() {}, nil
	case "postgres":
		pool, cleanup, err := database.NewPgxPool(ctx, data.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresDeviceRepository(pool, logger), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, data.DeviceRegistry.Backend)
	}
}
