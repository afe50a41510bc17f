package estimates

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Firestore 文档事件（google.events.cloud.firestore.v1）的字段号。
const (
	eventValueField  protowire.Number = 1  // DocumentEventData.value
	docNameField     protowire.Number = 1  // Document.name
	docFieldsField   protowire.Number = 2  // Document.fields
	mapKeyField      protowire.Number = 1  // map entry key
	mapValueField    protowire.Number = 2  // map entry value
	valueStringField protowire.Number = 17 // Value.string_value
)

var errTruncatedDocument = errors.New("estimates: truncated protobuf document")

// document 是事件中新文档的名称与字符串字段。
type document struct {
	name   string
	fields map[string]string
}

// typedValue 是 Firestore JSON 事件中的字段值，只关心字符串。
type typedValue struct {
	StringValue *string `json:"stringValue"`
}

type documentPayload struct {
	Value *struct {
		Name   string                `json:"name"`
		Fields map[string]typedValue `json:"fields"`
	} `json:"value"`
}

// decodeDocument 先按 JSON 解析，失败再按 protobuf 编码的 DocumentEventData 解析。
// 第二个返回值表示数据体是否可解析；可解析但没有 value 时 document 为 nil。
func decodeDocument(data []byte) (*document, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var payload documentPayload
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Value == nil {
			return nil, true
		}
		doc := &document{name: payload.Value.Name, fields: make(map[string]string, len(payload.Value.Fields))}
		for key, v := range payload.Value.Fields {
			if v.StringValue != nil {
				doc.fields[key] = *v.StringValue
			}
		}
		return doc, true
	}
	doc, err := decodeDocumentEvent(data)
	if err != nil {
		return nil, false
	}
	return doc, true
}

// decodeDocumentEvent 解析 protobuf 编码的 DocumentEventData，只取 value。
func decodeDocumentEvent(data []byte) (*document, error) {
	var doc *document
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		if num != eventValueField {
			return nil
		}
		parsed, err := decodeProtoDocument(payload)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		doc = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeProtoDocument(data []byte) (*document, error) {
	doc := &document{fields: map[string]string{}}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case docNameField:
			doc.name = string(payload)
		case docFieldsField:
			key, value, ok, err := decodeFieldEntry(payload)
			if err != nil {
				return fmt.Errorf("fields: %w", err)
			}
			if ok {
				doc.fields[key] = value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// decodeFieldEntry 解析 map<string, Value> 的一个条目；值不是字符串时 ok 为 false。
func decodeFieldEntry(data []byte) (key, value string, ok bool, err error) {
	err = walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case mapKeyField:
			key = string(payload)
		case mapValueField:
			return walkFields(payload, func(num protowire.Number, raw []byte) error {
				if num == valueStringField {
					value, ok = string(raw), true
				}
				return nil
			})
		}
		return nil
	})
	return key, value, ok && key != "", err
}

// walkFields 遍历一条消息，对 length-delimited 字段回调 fn，其余类型跳过。
func walkFields(data []byte, fn func(num protowire.Number, payload []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", errTruncatedDocument, protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("%w: %v", errTruncatedDocument, protowire.ParseError(m))
			}
			data = data[m:]
			continue
		}
		payload, m := protowire.ConsumeBytes(data)
		if m < 0 {
			return fmt.Errorf("%w: %v", errTruncatedDocument, protowire.ParseError(m))
		}
		if err := fn(num, payload); err != nil {
			return err
		}
		data = data[m:]
	}
	return nil
}
