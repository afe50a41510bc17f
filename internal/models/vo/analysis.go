// Package vo 定义跨层传递的值对象。
package vo

import "io"

// DefaultCarModel 在对象元数据缺少车型时使用。
const DefaultCarModel = "unknown"

// ImageSource 是推理请求的图片来源：本地暂存文件或调用方持有的字节流。
type ImageSource interface {
	isImageSource()
}

// ByPath 指向已暂存到本地磁盘的图片，由 Relay 自行打开并关闭。
type ByPath struct {
	Path        string
	Filename    string
	ContentType string
}

// ByStream 携带调用方持有的字节流，Relay 只读取不关闭。
type ByStream struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

func (ByPath) isImageSource()   {}
func (ByStream) isImageSource() {}

// ObjectRef 指向存储桶中的原始对象，用于构造展示 URL。
type ObjectRef struct {
	Bucket string
	Path   string
}

// AnalysisTarget 是一次推理调用的输入。
type AnalysisTarget struct {
	UserID   string
	CarModel string
	Image    ImageSource
	// Object 为空时不附加 imageUrl（例如 HTTP 直传）。
	Object *ObjectRef
}

// CarModelOrDefault 返回车型，缺省为 unknown。
func (t AnalysisTarget) CarModelOrDefault() string {
	if t.CarModel == "" {
		return DefaultCarModel
	}
	return t.CarModel
}
