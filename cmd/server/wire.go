//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/clients/inference"
	"github.com/bionicotaku/carcare-services-estimate/internal/controllers"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/firebase"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"
	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/logger"
	"github.com/bionicotaku/carcare-services-estimate/internal/repositories"
	"github.com/bionicotaku/carcare-services-estimate/internal/server"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
	"github.com/bionicotaku/carcare-services-estimate/internal/tasks/estimates"
	"github.com/bionicotaku/carcare-services-estimate/internal/tasks/uploads"
)

//go:generate go run github.com/google/wire/cmd/wire

// wireApp init kratos application.
func wireApp(context.Context, configloader.Params) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		logger.ProviderSet,
		server.ProviderSet,
		gcs.ProviderSet,
		inference.ProviderSet,
		firebase.ProviderSet,
		repositories.ProviderSet,
		services.ProviderSet,
		uploads.NewDecoder,
		uploads.ProvideHandler,
		estimates.ProviderSet,
		controllers.ProviderSet,
		newApp,
	))
}
