package logger

import (
	"context"
	"io"
	"os"
	"strings"

	configloader "github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/trace"
)

// Config captures runtime metadata used to annotate logs.
type Config struct {
	Service string
	Version string
	HostID  string
	Env     string
	Level   string
	Output  io.Writer
}

// NewLogger builds a Kratos-compatible logger with trace/span enrichment.
func NewLogger(cfg Config) (log.Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	base := log.With(
		log.NewStdLogger(out),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", cfg.Service,
		"service.version", cfg.Version,
		"service.id", cfg.HostID,
		"env", cfg.Env,
		"trace_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasTraceID() {
				return sc.TraceID().String()
			}
			return ""
		}),
		"span_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasSpanID() {
				return sc.SpanID().String()
			}
			return ""
		}),
	)
	return log.NewFilter(base, log.FilterLevel(log.ParseLevel(strings.TrimSpace(cfg.Level)))), nil
}

// ConfigFrom derives logger settings from service metadata and the log section.
func ConfigFrom(meta configloader.ServiceMetadata, lc configloader.LogConfig) Config {
	return Config{
		Service: meta.Name,
		Version: meta.Version,
		HostID:  meta.InstanceID,
		Env:     meta.Environment,
		Level:   lc.Level,
	}
}
