package firebase

import (
	"firebase.google.com/go/v4/messaging"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

// ProviderSet 暴露 Firebase App、FCM 与 Firestore 客户端。
var ProviderSet = wire.NewSet(
	ProvideFirebaseConfig,
	NewApp,
	NewMessagingClient,
	NewFirestoreClient,
	ProvidePushSender,
)

// ProvideFirebaseConfig 从 data 配置中取出 Firebase 片段。
func ProvideFirebaseConfig(cfg configloader.DataConfig) configloader.FirebaseConfig {
	return cfg.Firebase
}

// ProvidePushSender 以真实 FCM 客户端装配 PushSender。
func ProvidePushSender(client *messaging.Client, logger log.Logger) *PushSender {
	return NewPushSender(client, logger)
}
