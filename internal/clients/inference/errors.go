package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured 表示推理端点未配置或仍为占位值。不会发起任何网络调用。
	ErrNotConfigured = errors.New("inference: endpoint not configured")
	// ErrTokenUnavailable 表示无法获取面向推理端点的身份令牌。
	ErrTokenUnavailable = errors.New("inference: identity token unavailable")
	// ErrInvalidTarget 表示调用参数缺少图片来源等必需字段。
	ErrInvalidTarget = errors.New("inference: invalid analysis target")
)

// UpstreamError 描述推理后端返回的非 2xx 响应，Body 保留（截断后的）响应体用于诊断。
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference: upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("inference: upstream returned status %d: %s", e.StatusCode, e.Body)
}
