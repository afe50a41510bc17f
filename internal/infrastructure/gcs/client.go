// Package gcs 提供与 Google Cloud Storage 交互的基础设施封装。
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
)

// NewClient 使用默认凭据创建 storage.Client，返回的 cleanup 负责关闭连接。
func NewClient(ctx context.Context, logger log.Logger) (*storage.Client, func(), error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage client: %w", err)
	}
	helper := log.NewHelper(logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close storage client: %v", err)
		}
	}
	return client, cleanup, nil
}
