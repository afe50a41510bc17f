package vo

// ImageURLField 是 Relay 追加到推理结果中的展示 URL 字段名。
const ImageURLField = "imageUrl"

// PredictionResult 是推理后端返回的不透明 JSON 对象。
// 除 imageUrl 外不解释任何字段，原样转发或记录。
type PredictionResult map[string]any

// WithImageURL 设置 imageUrl 字段并返回结果本身。
func (p PredictionResult) WithImageURL(url string) PredictionResult {
	if p == nil {
		p = PredictionResult{}
	}
	if url != "" {
		p[ImageURLField] = url
	}
	return p
}

// ImageURL 读取 imageUrl 字段。
func (p PredictionResult) ImageURL() string {
	v, _ := p[ImageURLField].(string)
	return v
}
