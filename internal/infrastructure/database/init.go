package database

import (
	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

// ProviderSet 暴露数据库连接池构造器供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	ProvidePostgresConfig,
	NewPgxPool,
)

// ProvidePostgresConfig 从 data 配置中取出 postgres 片段。
func ProvidePostgresConfig(cfg configloader.DataConfig) configloader.PostgresConfig {
	return cfg.Postgres
}
