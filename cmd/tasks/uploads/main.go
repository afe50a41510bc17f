// Package main 提供上传事件 Runner 的独立进程入口：从 Pub/Sub 订阅消费存储 finalize 通知。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	uploadrunner "github.com/bionicotaku/carcare-services-estimate/internal/tasks/uploads"

	_ "go.uber.org/automaxprocs"
)

const metricsStopTimeout = 5 * time.Second

type uploadsTaskApp struct {
	Runner  *uploadrunner.Runner
	Metrics *khttp.Server
	Logger  log.Logger
}

func main() {
	ctx := context.Background()

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	confPath, err := configloader.ParseConfPath(fs, os.Args[1:])
	if err != nil {
		panic(err)
	}

	app, cleanup, err := wireUploadsTask(ctx, configloader.Params{ConfPath: confPath})
	if err != nil {
		panic(err)
	}
	defer cleanup()

	logger := app.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	helper := log.NewHelper(logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 探针与 /metrics 随 Runner 一起启停。
	go func() {
		if err := app.Metrics.Start(runCtx); err != nil {
			helper.Errorf("uploads metrics server: %v", err)
			stop()
		}
	}()

	helper.Info("starting uploads runner")
	runErr := app.Runner.Run(runCtx)

	stopCtx, cancel := context.WithTimeout(ctx, metricsStopTimeout)
	if err := app.Metrics.Stop(stopCtx); err != nil {
		helper.Warnf("uploads metrics server stop: %v", err)
	}
	cancel()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		helper.Errorf("uploads runner stopped unexpectedly: %v", runErr)
		cleanup()
		os.Exit(1)
	}

	helper.Info("uploads runner stopped")
}

func newUploadsTaskApp(logger log.Logger, runner *uploadrunner.Runner, metrics *khttp.Server) *uploadsTaskApp {
	return &uploadsTaskApp{Runner: runner, Metrics: metrics, Logger: logger}
}
