package repositories

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownBackend 表示配置了不支持的设备注册表后端。
var ErrUnknownBackend = errors.New("device registry: unknown backend")

// DeviceRegistry 查询某个维修店下指定角色员工的推送 token。
// 每次调用都实时查询，不做跨事件缓存。
type DeviceRegistry interface {
	ListTokens(ctx context.Context, shopID, role string) ([]string, error)
}

// appendToken 过滤空白 token 并按出现顺序去重。
func appendToken(tokens []string, seen map[string]struct{}, raw string) []string {
	tok := strings.TrimSpace(raw)
	if tok == "" {
		return tokens
	}
	if _, ok := seen[tok]; ok {
		return tokens
	}
	seen[tok] = struct{}{}
	return append(tokens, tok)
}
