//go:build wireinject
// +build wireinject

// Package main 为 uploads 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcpubsub"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/logger"
	"github.com/bionicotaku/carcare-services-estimate/internal/server"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
	uploadtasks "github.com/bionicotaku/carcare-services-estimate/internal/tasks/uploads"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireUploadsTask(context.Context, configloader.Params) (*uploadsTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		logger.ProviderSet,
		server.NewTelemetry,
		server.ProvideMeter,
		server.NewMetricsServer,
		gcs.ProviderSet,
		inference.ProviderSet,
		services.ProvideAnalysisService,
		gcpubsub.ProviderSet,
		uploadtasks.ProvideRunner,
		newUploadsTaskApp,
	))
}
