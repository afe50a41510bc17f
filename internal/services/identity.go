package services

import "strings"

// ExtractUserID 从 {userId}_{YYYYMMDD}.{ext} 形式的文件名中取出 userId。
// 去掉最后一个 "." 之后的扩展名，再按最后一个 "_" 切分；没有 "_" 或 userId 为空时返回 false。
func ExtractUserID(filename string) (string, bool) {
	name := filename
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return "", false
	}
	return name[:i], true
}

// ExtractShopID 返回资源路径中紧跟 marker 的路径段。
// 例如 projects/p/databases/(default)/documents/service_centers/{shopId}/receive_estimate/{docId}。
func ExtractShopID(resourcePath, marker string) (string, bool) {
	if marker == "" {
		return "", false
	}
	segments := strings.Split(strings.Trim(resourcePath, "/"), "/")
	for i, seg := range segments {
		if seg != marker {
			continue
		}
		if i+1 >= len(segments) || segments[i+1] == "" {
			return "", false
		}
		return segments[i+1], true
	}
	return "", false
}
