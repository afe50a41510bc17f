// Package firebase 初始化 Firebase Admin SDK，并暴露 Firestore 与 FCM 客户端。
package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/api/option"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

// NewApp 基于默认凭据（或显式凭据文件）初始化 Firebase App。
func NewApp(ctx context.Context, cfg configloader.FirebaseConfig, logger log.Logger) (*fb.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var appCfg *fb.Config
	if cfg.ProjectID != "" {
		appCfg = &fb.Config{ProjectID: cfg.ProjectID}
	}
	app, err := fb.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	log.NewHelper(logger).Infof("firebase app initialized: project=%s", cfg.ProjectID)
	return app, nil
}

// NewMessagingClient 返回 FCM 客户端。
func NewMessagingClient(ctx context.Context, app *fb.App) (*messaging.Client, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return client, nil
}

// NewFirestoreClient 返回 Firestore 客户端及其 cleanup。
func NewFirestoreClient(ctx context.Context, app *fb.App, logger log.Logger) (*firestore.Client, func(), error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init firestore: %w", err)
	}
	helper := log.NewHelper(logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close firestore client: %v", err)
		}
	}
	return client, cleanup, nil
}
