package types

// DenyReason 下载被拒绝的原因分类.
type DenyReason string

const (
	DenyInvalidSignature DenyReason = "invalid_signature" // 签名校验失败
	DenyUnknownToken     DenyReason = "unknown_token"     // 签名未登记
	DenyExpired          DenyReason = "expired"           // 令牌已过期
	DenyAlreadyUsed      DenyReason = "already_used"      // 单次令牌已被消费
)

// DownloadError 下载失败的类型化结果, 携带对外的 HTTP 状态码.
type DownloadError struct {
	Reason DenyReason
	Status int
	Msg    string
}

func (e *DownloadError) Error() string {
	return e.Msg
}

// NewDenyError 按拒绝原因构造对外错误.
// 签名无效与签名未登记统一为 403 "access denied", 探测者无法借状态码
// 区分"签名错"与"签名对但没这条记录"; 过期与已使用不是秘密, 按 404 精确报告.
func NewDenyError(reason DenyReason) *DownloadError {
	switch reason {
	case DenyExpired:
		return &DownloadError{Reason: reason, Status: 404, Msg: "link expired"}
	case DenyAlreadyUsed:
		return &DownloadError{Reason: reason, Status: 404, Msg: "link already used"}
	default:
		return &DownloadError{Reason: reason, Status: 403, Msg: "access denied"}
	}
}

// DownloadResult 下载成功时解密后的内容与响应元数据.
type DownloadResult struct {
	Content     []byte
	FileName    string
	ContentType string
	Size        int64
}
