// Package events 定义触发源事件的规范化表示，所有下游逻辑只依赖这里的结构。
package events

import (
	"errors"
	"time"
)

// UnknownContentType 是审计日志事件无法提供 contentType 时使用的占位值。
const UnknownContentType = "image/unknown"

// ErrDropped 标记“无需处理”的事件：格式错误、被过滤或无法提取身份。
// 触发边界遇到该错误时记录日志并确认消息，不向事件源抛出。
var ErrDropped = errors.New("event dropped")

// Shape 表示存储事件的原始编码形态。
type Shape int

const (
	// ShapeDirect 为 GCS 直接触发（bucket/name 位于顶层）。
	ShapeDirect Shape = iota
	// ShapeAuditLog 为 Cloud Audit Log 触发（protoPayload.resourceName）。
	ShapeAuditLog
)

// String 返回形态名称，用于日志。
func (s Shape) String() string {
	switch s {
	case ShapeAuditLog:
		return "audit_log"
	default:
		return "direct"
	}
}

// StorageEvent 是两种存储事件编码归一化后的规范记录。
type StorageEvent struct {
	ID          string
	Shape       Shape
	Bucket      string
	ObjectPath  string
	ContentType string
	CreatedAt   time.Time
	Metadata    map[string]string
}

// Valid 判断事件是否满足最小不变量：bucket 与 objectPath 均非空。
func (e *StorageEvent) Valid() bool {
	return e != nil && e.Bucket != "" && e.ObjectPath != ""
}

// HasTrustedContentType 判断 contentType 是否来自事件源而非占位值。
func (e *StorageEvent) HasTrustedContentType() bool {
	return e != nil && e.ContentType != "" && e.ContentType != UnknownContentType
}
