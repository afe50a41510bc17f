package configloader

import "github.com/google/wire"

// ProviderSet exposes configuration-derived dependencies for Wire graphs.
var ProviderSet = wire.NewSet(
	Build,
	ProvideServiceMetadata,
	ProvideServerConfig,
	ProvideLogConfig,
	ProvideInferenceConfig,
	ProvideStorageConfig,
	ProvideNotificationConfig,
	ProvideDataConfig,
	ProvidePubSubConfig,
)

// ProvideServiceMetadata returns the resolved ServiceMetadata from the bundle.
func ProvideServiceMetadata(b *Bundle) ServiceMetadata {
	if b == nil {
		return ServiceMetadata{}
	}
	return b.Service
}

// ProvideServerConfig returns the server section.
func ProvideServerConfig(b *Bundle) ServerConfig {
	if b == nil {
		return ServerConfig{}
	}
	return b.Config.Server
}

// ProvideLogConfig returns the log section.
func ProvideLogConfig(b *Bundle) LogConfig {
	if b == nil {
		return LogConfig{}
	}
	return b.Config.Log
}

// ProvideInferenceConfig returns the inference section.
func ProvideInferenceConfig(b *Bundle) InferenceConfig {
	if b == nil {
		return InferenceConfig{}
	}
	return b.Config.Inference
}

// ProvideStorageConfig returns the storage section.
func ProvideStorageConfig(b *Bundle) StorageConfig {
	if b == nil {
		return StorageConfig{}
	}
	return b.Config.Storage
}

// ProvideNotificationConfig returns the notification section.
func ProvideNotificationConfig(b *Bundle) NotificationConfig {
	if b == nil {
		return NotificationConfig{}
	}
	return b.Config.Notification
}

// ProvideDataConfig returns the data section.
func ProvideDataConfig(b *Bundle) DataConfig {
	if b == nil {
		return DataConfig{}
	}
	return b.Config.Data
}

// ProvidePubSubConfig returns the Pub/Sub subscription settings.
func ProvidePubSubConfig(b *Bundle) PubSubConfig {
	if b == nil {
		return PubSubConfig{}
	}
	return b.Config.Messaging.PubSub
}
