// Package configloader 负责加载、覆盖与校验运行时配置，并向 Wire 暴露强类型配置片段。
package configloader

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Duration 允许在 YAML/JSON 中以 "30s"、"2m" 形式书写时长。
type Duration time.Duration

// UnmarshalJSON 支持字符串（time.ParseDuration）与纳秒整数两种写法。
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		if strings.TrimSpace(v) == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// MarshalJSON 以字符串形式输出。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std 返回标准库 time.Duration。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config 是 configs/config.yaml 的根结构。
type Config struct {
	Server       ServerConfig       `json:"server"`
	Log          LogConfig          `json:"log"`
	Inference    InferenceConfig    `json:"inference"`
	Storage      StorageConfig      `json:"storage"`
	Notification NotificationConfig `json:"notification"`
	Data         DataConfig         `json:"data"`
	Messaging    MessagingConfig    `json:"messaging"`
}

// ServerConfig 描述 HTTP 服务端参数。
type ServerConfig struct {
	HTTP           HTTPConfig `json:"http"`
	MaxUploadBytes int64      `json:"max_upload_bytes" validate:"gte=0"`
	AllowedOrigin  string     `json:"allowed_origin"`
}

// HTTPConfig 对应 kratos http.Server 的监听配置。
type HTTPConfig struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// LogConfig 控制日志级别。
type LogConfig struct {
	Level string `json:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// InferenceConfig 描述外部推理服务。
// Endpoint 允许为空或占位值：由 Relay 在每次调用时拒绝，而不是启动失败。
type InferenceConfig struct {
	Endpoint          string   `json:"endpoint"`
	Audience          string   `json:"audience"`
	PredictPath       string   `json:"predict_path" validate:"omitempty,startswith=/"`
	Timeout           Duration `json:"timeout" validate:"gte=0"`
	MaxErrorBodyBytes int64    `json:"max_error_body_bytes" validate:"gte=0"`
	DisableAuth       bool     `json:"disable_auth"`
}

// StorageConfig 描述上传对象的过滤、暂存与展示 URL 策略。
type StorageConfig struct {
	IntakePrefix        string         `json:"intake_prefix"`
	AllowedExtensions   []string       `json:"allowed_extensions" validate:"dive,startswith=."`
	RelayMode           string         `json:"relay_mode" validate:"omitempty,oneof=path stream"`
	StagingDir          string         `json:"staging_dir"`
	CarModelMetadataKey string         `json:"car_model_metadata_key"`
	FetchMetadata       *bool          `json:"fetch_metadata"`
	ImageURL            ImageURLConfig `json:"image_url"`
}

// ImageURLConfig 描述 imageUrl 的构造方式。
type ImageURLConfig struct {
	Mode                 string   `json:"mode" validate:"omitempty,oneof=public signed"`
	Host                 string   `json:"host"`
	SignedTTL            Duration `json:"signed_ttl" validate:"gte=0"`
	SignerServiceAccount string   `json:"signer_service_account"`
}

// NotificationConfig 描述报价通知的查询字段与推送文案。
type NotificationConfig struct {
	PathMarker         string `json:"path_marker"`
	CollectionMarker   string `json:"collection_marker"`
	StaffRole          string `json:"staff_role"`
	UsersCollection    string `json:"users_collection"`
	ShopField          string `json:"shop_field"`
	RoleField          string `json:"role_field"`
	TokenField         string `json:"token_field"`
	TypeTag            string `json:"type_tag"`
	DefaultDamageType  string `json:"default_damage_type"`
	DefaultUserRequest string `json:"default_user_request"`
}

// DataConfig 描述设备注册表后端。
type DataConfig struct {
	DeviceRegistry DeviceRegistryConfig `json:"device_registry"`
	Postgres       PostgresConfig       `json:"postgres"`
	Firebase       FirebaseConfig       `json:"firebase"`
}

// DeviceRegistryConfig 选择设备注册表实现。
type DeviceRegistryConfig struct {
	Backend string `json:"backend" validate:"omitempty,oneof=firestore postgres"`
}

// PostgresConfig 对应 pgxpool 参数。
type PostgresConfig struct {
	DSN                      string   `json:"dsn"`
	MaxOpenConns             int32    `json:"max_open_conns" validate:"gte=0"`
	MinOpenConns             int32    `json:"min_open_conns" validate:"gte=0"`
	MaxConnLifetime          Duration `json:"max_conn_lifetime"`
	MaxConnIdleTime          Duration `json:"max_conn_idle_time"`
	HealthCheckPeriod        Duration `json:"health_check_period"`
	Schema                   string   `json:"schema"`
	EnablePreparedStatements bool     `json:"enable_prepared_statements"`
}

// FirebaseConfig 描述 Firebase Admin SDK 初始化参数。
type FirebaseConfig struct {
	ProjectID       string `json:"project_id"`
	CredentialsFile string `json:"credentials_file"`
}

// MessagingConfig 描述 Pub/Sub 订阅。
type MessagingConfig struct {
	PubSub PubSubConfig `json:"pubsub"`
}

// PubSubConfig 对应 uploads 任务的订阅参数。
type PubSubConfig struct {
	ProjectID              string `json:"project_id"`
	SubscriptionID         string `json:"subscription_id"`
	EmulatorEndpoint       string `json:"emulator_endpoint"`
	NumGoroutines          int    `json:"num_goroutines" validate:"gte=0"`
	MaxOutstandingMessages int    `json:"max_outstanding_messages" validate:"gte=0"`
}

// RelayModeStream 表示以实时流转发对象。
const RelayModeStream = "stream"

// RelayModePath 表示先暂存到本地文件再转发。
const RelayModePath = "path"

// ShouldFetchMetadata 返回是否在事件缺少元数据时回查对象属性。
func (s StorageConfig) ShouldFetchMetadata() bool {
	if s.FetchMetadata == nil {
		return true
	}
	return *s.FetchMetadata
}
