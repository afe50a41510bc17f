package services

import (
	"fmt"
	"path"
	"strings"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
)

// ObjectFilter 按路径前缀与图片类型判断是否处理对象。
type ObjectFilter struct {
	prefix     string
	extensions map[string]struct{}
}

// NewObjectFilter 构造过滤器；扩展名比较不区分大小写。
func NewObjectFilter(cfg configloader.StorageConfig) *ObjectFilter {
	exts := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &ObjectFilter{prefix: cfg.IntakePrefix, extensions: exts}
}

// Check 返回 nil 表示接受。contentType 以 image/ 开头或扩展名在白名单内，二者满足其一即可，
// 因为审计日志事件无法提供可信的 contentType。
func (f *ObjectFilter) Check(evt *events.StorageEvent) error {
	if !evt.Valid() {
		return ErrMalformedEvent
	}
	if !strings.HasPrefix(evt.ObjectPath, f.prefix) {
		return fmt.Errorf("%w: %s", ErrOutsideIntake, evt.ObjectPath)
	}
	if strings.HasPrefix(evt.ContentType, "image/") || f.allowedExtension(evt.ObjectPath) {
		return nil
	}
	return fmt.Errorf("%w: %s (type=%q)", ErrNotImage, evt.ObjectPath, evt.ContentType)
}

func (f *ObjectFilter) allowedExtension(objectPath string) bool {
	_, ok := f.extensions[strings.ToLower(path.Ext(objectPath))]
	return ok
}
