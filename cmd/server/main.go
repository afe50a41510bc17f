// Package main boots the HTTP entrypoint: direct predict relay and Eventarc receivers.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string
)

func newApp(meta configloader.ServiceMetadata, logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(meta.InstanceID),
		kratos.Name(meta.Name),
		kratos.Version(meta.Version),
		kratos.Metadata(map[string]string{"env": meta.Environment}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
		),
	)
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	confPath, err := configloader.ParseConfPath(fs, os.Args[1:])
	if err != nil {
		panic(err)
	}

	app, cleanup, err := wireApp(context.Background(), configloader.Params{
		ConfPath:       confPath,
		ServiceName:    Name,
		ServiceVersion: Version,
	})
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
