// Package logger wires the structured Kratos logger shared by every component.
package logger

import "github.com/google/wire"

// ProviderSet wires logger provider for dependency injection.
var ProviderSet = wire.NewSet(ConfigFrom, NewLogger)
