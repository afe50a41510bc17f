// Package uploads 消费存储上传事件：归一化两种事件形态后交给分析流程。
package uploads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
)

// resourceNamePattern 匹配 projects/_/buckets/{bucket}/objects/{objectPath}。
// objectPath 贪婪匹配到结尾，对象名本身可能包含 "/objects/"。
var resourceNamePattern = regexp.MustCompile(`projects/_/buckets/([^/]+)/objects/(.+)$`)

// directPayload 是 GCS 直接触发（对象资源 JSON）的字段子集。
type directPayload struct {
	ID          string            `json:"id"`
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
	TimeCreated string            `json:"timeCreated"`
}

// auditLogPayload 是 Cloud Audit Log 条目的字段子集。
type auditLogPayload struct {
	InsertID     string `json:"insertId"`
	Timestamp    string `json:"timestamp"`
	ProtoPayload *struct {
		ResourceName string `json:"resourceName"`
		MethodName   string `json:"methodName"`
	} `json:"protoPayload"`
}

// shapeMarker 仅用于判断是否存在审计日志标记。
type shapeMarker struct {
	ProtoPayload json.RawMessage `json:"protoPayload"`
}

// Decoder 将两种存储事件编码归一化为 events.StorageEvent。
type Decoder struct {
	now func() time.Time
}

// NewDecoder 构造 Decoder。
func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// Decode 解析事件数据。无法解析的负载返回包装 events.ErrDropped 的错误，不应重试。
func (d *Decoder) Decode(data []byte) (*events.StorageEvent, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", events.ErrDropped)
	}
	var marker shapeMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("%w: decode storage event: %v", events.ErrDropped, err)
	}

	var (
		evt *events.StorageEvent
		err error
	)
	if len(marker.ProtoPayload) > 0 && !bytes.Equal(marker.ProtoPayload, []byte("null")) {
		evt, err = d.decodeAuditLog(data)
	} else {
		evt, err = d.decodeDirect(data)
	}
	if err != nil {
		return nil, err
	}
	if !evt.Valid() {
		return nil, fmt.Errorf("%w: bucket or object name missing (shape=%s)", events.ErrDropped, evt.Shape)
	}
	return evt, nil
}

func (d *Decoder) decodeDirect(data []byte) (*events.StorageEvent, error) {
	var p directPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode direct storage event: %v", events.ErrDropped, err)
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &events.StorageEvent{
		ID:          p.ID,
		Shape:       events.ShapeDirect,
		Bucket:      p.Bucket,
		ObjectPath:  p.Name,
		ContentType: p.ContentType,
		CreatedAt:   d.parseTime(p.TimeCreated),
		Metadata:    metadata,
	}, nil
}

func (d *Decoder) decodeAuditLog(data []byte) (*events.StorageEvent, error) {
	var p auditLogPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode audit log event: %v", events.ErrDropped, err)
	}
	if p.ProtoPayload == nil {
		return nil, fmt.Errorf("%w: audit log event without protoPayload", events.ErrDropped)
	}
	bucket, object, ok := ParseResourceName(p.ProtoPayload.ResourceName)
	if !ok {
		return nil, fmt.Errorf("%w: could not parse resourceName %q", events.ErrDropped, p.ProtoPayload.ResourceName)
	}
	return &events.StorageEvent{
		ID:          p.InsertID,
		Shape:       events.ShapeAuditLog,
		Bucket:      bucket,
		ObjectPath:  object,
		ContentType: events.UnknownContentType,
		CreatedAt:   d.parseTime(p.Timestamp),
		Metadata:    map[string]string{},
	}, nil
}

// ParseResourceName 从审计日志 resourceName 中提取 bucket 与对象路径。
func ParseResourceName(resourceName string) (bucket, object string, ok bool) {
	m := resourceNamePattern.FindStringSubmatch(resourceName)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func (d *Decoder) parseTime(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t.UTC()
		}
	}
	return d.now().UTC()
}
