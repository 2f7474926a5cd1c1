package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：调用方可修正或可重试的错误（参数非法、资源缺失、冲突、模拟故障）
// - 5xxx：系统错误
const (
	OK               = 0
	InvalidArgument  = 4000
	Unauthorized     = 4001
	ResourceMissing  = 4004
	Conflict         = 4009
	ValidationFailed = 4022
	SimulatedFailure = 4503
	SystemError      = 5000
)
