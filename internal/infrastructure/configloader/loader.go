package configloader

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	envServiceName       = "SERVICE_NAME"
	envServiceVersion    = "SERVICE_VERSION"
	envAppEnv            = "APP_ENV"
	envPort              = "PORT"
	envDatabaseURL       = "DATABASE_URL"
	envInferenceEndpoint = "INFERENCE_ENDPOINT"
	envInferenceAudience = "INFERENCE_AUDIENCE"
	envProjectID         = "GOOGLE_CLOUD_PROJECT"
	envSubscription      = "PUBSUB_SUBSCRIPTION"
	envLogLevel          = "LOG_LEVEL"
)

var envFileNames = []string{".env.local", ".env"}

// Params 包含构造配置 Bundle 所需的运行时输入参数。
type Params struct {
	ConfPath       string // 配置文件路径（可为空，使用默认值）
	ServiceName    string
	ServiceVersion string
}

// ServiceMetadata 保存服务标识信息，供日志和可观测性组件使用。
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// Bundle 聚合强类型的配置片段，供下游 Wire 注入使用。
type Bundle struct {
	Config  Config
	Service ServiceMetadata
	Path    string
}

// BuildError 捕获配置构建过程中的上下文错误信息。
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

// Error 实现 error 接口，提供包含上下文的错误信息。
func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

// Unwrap 暴露底层错误，支持 errors.Is/As 链式查询。
func (e BuildError) Unwrap() error {
	return e.Err
}

// ParseConfPath 解析 -conf 命令行参数。
func ParseConfPath(fs *flag.FlagSet, args []string) (string, error) {
	if fs == nil {
		return "", errors.New("flag set is required")
	}
	conf := fs.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *conf, nil
}

// Build 从配置文件构建 Bundle。
//
// 流程：
// 1. 解析配置路径（应用回退规则）并加载 .env
// 2. 加载 YAML 并扫描到 Config
// 3. 应用环境变量覆盖、填充默认值
// 4. 使用 validator 校验
// 5. 推导服务元信息
func Build(params Params) (*Bundle, error) {
	confPath := ResolveConfPath(params.ConfPath)
	loadEnvFiles(confPath)

	cfg, err := loadConfig(confPath)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Config:  *cfg,
		Service: buildServiceMetadata(params),
		Path:    confPath,
	}, nil
}

// ResolveConfPath 应用回退规则确定要加载的配置目录/文件路径。
// 优先级：显式传入路径 > CONF_PATH 环境变量 > 默认路径。
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

func loadConfig(confPath string) (*Config, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	defer c.Close()

	var cfg Config
	if err := c.Scan(&cfg); err != nil {
		return nil, BuildError{Stage: "scan", Path: confPath, Err: err}
	}
	applyEnvOverrides(&cfg)
	fillDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, BuildError{Stage: "validate", Path: confPath, Err: err}
	}
	return &cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖配置文件中的特定字段。
// 环境变量为空时不覆盖，保留配置文件原值。
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := os.Getenv(envInferenceEndpoint); v != "" {
		cfg.Inference.Endpoint = v
	}
	if v := os.Getenv(envInferenceAudience); v != "" {
		cfg.Inference.Audience = v
	}
	if v := os.Getenv(envDatabaseURL); v != "" {
		cfg.Data.Postgres.DSN = v
	}
	if v := os.Getenv(envProjectID); v != "" {
		if cfg.Data.Firebase.ProjectID == "" {
			cfg.Data.Firebase.ProjectID = v
		}
		if cfg.Messaging.PubSub.ProjectID == "" {
			cfg.Messaging.PubSub.ProjectID = v
		}
	}
	if v := os.Getenv(envSubscription); v != "" {
		cfg.Messaging.PubSub.SubscriptionID = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	// Cloud Run 通过 $PORT 分配端口
	if port := os.Getenv(envPort); port != "" {
		cfg.Server.HTTP.Addr = replacePort(cfg.Server.HTTP.Addr, port)
	}
}

func buildServiceMetadata(params Params) ServiceMetadata {
	name := firstNonEmpty(params.ServiceName, os.Getenv(envServiceName), defaultServiceName)
	version := firstNonEmpty(params.ServiceVersion, os.Getenv(envServiceVersion), defaultServiceVersion)
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown-instance"
	}
	return ServiceMetadata{
		Name:        name,
		Version:     version,
		Environment: resolveEnvironment(os.Getenv(envAppEnv)),
		InstanceID:  host,
	}
}

func resolveEnvironment(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return defaultEnvironment
	case "dev", "development":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}

// loadEnvFiles best-effort 加载配置相关的 .env 文件，失败时忽略以保持幂等。
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates 按 confPath 目录 -> 当前工作目录的顺序返回存在的 .env 文件。
// godotenv 不覆盖已设置的变量，因此靠前的文件优先。
func envFileCandidates(confPath string) []string {
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range orderedDirs(confPath) {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}
	return dirs
}

// replacePort 替换地址中的端口部分，保留 host。
//   - "0.0.0.0:8080" -> "0.0.0.0:9000"
//   - "[::1]:8080" -> "[::1]:9000"
//   - 无法解析时回退到 "0.0.0.0:<port>"
func replacePort(addr, newPort string) string {
	if addr == "" {
		return "0.0.0.0:" + newPort
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "0.0.0.0:" + newPort
	}
	return net.JoinHostPort(host, newPort)
}
