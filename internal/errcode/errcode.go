package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（例如字段缺失但文档仍然生成）
// - 5xxx：系统错误（需要中断流程）
const (
	OK               = 0
	ValidationFailed = 4000
	ResourceMissing  = 4004
	SystemError      = 5000
	RenderFailed     = 5001
	StorageFailed    = 5002
)
