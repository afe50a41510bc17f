package events

// EstimateRequestEvent 描述一次新建的报价请求记录。
type EstimateRequestEvent struct {
	ID           string
	ShopID       string
	DocumentPath string
	DamageType   string
	UserRequest  string
}
