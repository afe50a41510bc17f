// Package estimates 处理报价请求文档创建事件：解析维修店 ID 与请求字段后通知员工。
package estimates

import (
	"fmt"
	"strings"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
	"github.com/bionicotaku/carcare-services-estimate/internal/services"
)

const (
	fieldDamageType  = "damageType"
	fieldUserRequest = "userRequest"
)

// Delivery 是一次文档事件投递的上下文。
type Delivery struct {
	ID      string
	Source  string
	Subject string
	Data    []byte
}

// Decoder 将文档事件解析为 events.EstimateRequestEvent。
type Decoder struct {
	pathMarker       string
	collectionMarker string
}

// NewDecoder 构造 Decoder。
func NewDecoder(cfg configloader.NotificationConfig) *Decoder {
	return &Decoder{pathMarker: cfg.PathMarker, collectionMarker: cfg.CollectionMarker}
}

// Decode 依次在 source、subject、value.name 中查找维修店 ID，找不到返回包装 events.ErrDropped 的错误。
// 数据体支持 JSON 与 protobuf 两种编码；第二个返回值表示数据体是否可解析，不可解析时字段使用默认文案。
func (d *Decoder) Decode(delivery Delivery) (*events.EstimateRequestEvent, bool, error) {
	doc, decoded := decodeDocument(delivery.Data)
	var docName string
	if doc != nil {
		docName = doc.name
	}

	var (
		shopID  string
		docPath string
	)
	for _, candidate := range []string{delivery.Source, delivery.Subject, docName} {
		if id, ok := services.ExtractShopID(candidate, d.pathMarker); ok {
			shopID, docPath = id, candidate
			break
		}
	}
	if shopID == "" {
		return nil, decoded, fmt.Errorf("%w: source=%q subject=%q", services.ErrMissingShopID, delivery.Source, delivery.Subject)
	}
	if !d.inEstimateCollection(docPath, shopID) {
		return nil, decoded, fmt.Errorf("%w: %s is not under %s", events.ErrDropped, docPath, d.collectionMarker)
	}

	evt := &events.EstimateRequestEvent{
		ID:           delivery.ID,
		ShopID:       shopID,
		DocumentPath: docPath,
	}
	if doc != nil {
		evt.DamageType = doc.fields[fieldDamageType]
		evt.UserRequest = doc.fields[fieldUserRequest]
	}
	return evt, decoded, nil
}

// inEstimateCollection 在路径包含维修店之后的段时，要求该段为报价集合名。
func (d *Decoder) inEstimateCollection(docPath, shopID string) bool {
	if d.collectionMarker == "" {
		return true
	}
	prefix := d.pathMarker + "/" + shopID + "/"
	idx := strings.Index(docPath, prefix)
	if idx < 0 {
		return true
	}
	rest := docPath[idx+len(prefix):]
	next, _, _ := strings.Cut(rest, "/")
	return next == "" || next == d.collectionMarker
}
