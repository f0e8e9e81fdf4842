package errs

var (
	SystemError        = ErrorCode{Code: 511001, Msg: "系统错误"}
	RedemptionDisabled = ErrorCode{Code: 511002, Msg: "商户未启用礼品卡兑换"}
	RedemptionRejected = ErrorCode{Code: 511003, Msg: "礼品卡兑换被网关拒绝"}
	RedemptionNotFound = ErrorCode{Code: 511004, Msg: "兑换记录不存在"}
	RedemptionFinal    = ErrorCode{Code: 511005, Msg: "兑换记录已终结, 不允许取消"}
)

type ErrorCode struct {
	Code int
	Msg  string
}
