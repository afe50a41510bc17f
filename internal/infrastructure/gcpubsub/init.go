package gcpubsub

import "github.com/google/wire"

// ProviderSet 暴露 Pub/Sub 客户端与订阅者。
var ProviderSet = wire.NewSet(NewClient, NewSubscriber)
