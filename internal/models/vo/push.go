package vo

// PushMessage 是一次多播推送的内容。
type PushMessage struct {
	Title  string
	Body   string
	Data   map[string]string
	Tokens []string
}

// DeliveryFailure 记录单个设备的投递失败。
type DeliveryFailure struct {
	Token  string
	Reason string
}

// DeliveryReport 汇总多播结果。
type DeliveryReport struct {
	SuccessCount int
	FailureCount int
	Failures     []DeliveryFailure
}
