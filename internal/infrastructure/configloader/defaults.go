package configloader

import "time"

const (
	// defaultConfPath is the fallback configuration directory when no overrides are provided.
	defaultConfPath = "configs"
	// envConfPath is the env var name that overrides configuration directory when flag is absent.
	envConfPath = "CONF_PATH"
	// defaultEnvironment is used when APP_ENV is missing.
	defaultEnvironment = "development"
	// defaultServiceName is used when SERVICE_NAME is missing.
	defaultServiceName = "carcare-estimate"
	// defaultServiceVersion is used when SERVICE_VERSION is missing.
	defaultServiceVersion = "dev"

	defaultHTTPAddr          = "0.0.0.0:8080"
	defaultHTTPTimeout       = 60 * time.Second
	defaultMaxUploadBytes    = 20 << 20
	defaultAllowedOrigin     = "*"
	defaultPredictPath       = "/predict"
	defaultInferenceTimeout  = 60 * time.Second
	defaultMaxErrorBodyBytes = 4 << 10

	defaultIntakePrefix        = "crashed_car_picture/"
	defaultCarModelMetadataKey = "carModel"
	defaultImageURLHost        = "firebasestorage.googleapis.com"
	defaultSignedTTL           = 15 * time.Minute

	defaultPathMarker         = "service_centers"
	defaultCollectionMarker   = "receive_estimate"
	defaultUsersCollection    = "users"
	defaultShopField          = "serviceCenterId"
	defaultRoleField          = "role"
	defaultTokenField         = "fcmToken"
	defaultTypeTag            = "new_estimate_request"
	defaultDamageType         = "차량 파손"
	defaultUserRequest        = "새로운 수리 요청이 있습니다."
	defaultDeviceRegistry     = "firestore"
	defaultPubSubGoroutines   = 4
	defaultPubSubOutstanding  = 32
	defaultLogLevel           = "info"
	defaultImageURLModePublic = "public"
)

var defaultAllowedExtensions = []string{".jpg", ".jpeg", ".png"}

// fillDefaults 为缺省字段填充默认值，保持配置文件简洁。
func fillDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = defaultHTTPAddr
	}
	if cfg.Server.HTTP.Timeout <= 0 {
		cfg.Server.HTTP.Timeout = Duration(defaultHTTPTimeout)
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Server.AllowedOrigin == "" {
		cfg.Server.AllowedOrigin = defaultAllowedOrigin
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}

	if cfg.Inference.PredictPath == "" {
		cfg.Inference.PredictPath = defaultPredictPath
	}
	if cfg.Inference.Timeout <= 0 {
		cfg.Inference.Timeout = Duration(defaultInferenceTimeout)
	}
	if cfg.Inference.MaxErrorBodyBytes == 0 {
		cfg.Inference.MaxErrorBodyBytes = defaultMaxErrorBodyBytes
	}

	if cfg.Storage.IntakePrefix == "" {
		cfg.Storage.IntakePrefix = defaultIntakePrefix
	}
	if len(cfg.Storage.AllowedExtensions) == 0 {
		cfg.Storage.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
	}
	if cfg.Storage.RelayMode == "" {
		cfg.Storage.RelayMode = RelayModePath
	}
	if cfg.Storage.CarModelMetadataKey == "" {
		cfg.Storage.CarModelMetadataKey = defaultCarModelMetadataKey
	}
	if cfg.Storage.ImageURL.Mode == "" {
		cfg.Storage.ImageURL.Mode = defaultImageURLModePublic
	}
	if cfg.Storage.ImageURL.Host == "" {
		cfg.Storage.ImageURL.Host = defaultImageURLHost
	}
	if cfg.Storage.ImageURL.SignedTTL <= 0 {
		cfg.Storage.ImageURL.SignedTTL = Duration(defaultSignedTTL)
	}

	n := &cfg.Notification
	n.PathMarker = firstNonEmpty(n.PathMarker, defaultPathMarker)
	n.CollectionMarker = firstNonEmpty(n.CollectionMarker, defaultCollectionMarker)
	n.StaffRole = firstNonEmpty(n.StaffRole, "mechanic")
	n.UsersCollection = firstNonEmpty(n.UsersCollection, defaultUsersCollection)
	n.ShopField = firstNonEmpty(n.ShopField, defaultShopField)
	n.RoleField = firstNonEmpty(n.RoleField, defaultRoleField)
	n.TokenField = firstNonEmpty(n.TokenField, defaultTokenField)
	n.TypeTag = firstNonEmpty(n.TypeTag, defaultTypeTag)
	n.DefaultDamageType = firstNonEmpty(n.DefaultDamageType, defaultDamageType)
	n.DefaultUserRequest = firstNonEmpty(n.DefaultUserRequest, defaultUserRequest)

	if cfg.Data.DeviceRegistry.Backend == "" {
		cfg.Data.DeviceRegistry.Backend = defaultDeviceRegistry
	}
	if cfg.Messaging.PubSub.NumGoroutines == 0 {
		cfg.Messaging.PubSub.NumGoroutines = defaultPubSubGoroutines
	}
	if cfg.Messaging.PubSub.MaxOutstandingMessages == 0 {
		cfg.Messaging.PubSub.MaxOutstandingMessages = defaultPubSubOutstanding
	}
	if cfg.Messaging.PubSub.ProjectID == "" {
		cfg.Messaging.PubSub.ProjectID = cfg.Data.Firebase.ProjectID
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
