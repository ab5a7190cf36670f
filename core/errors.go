package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - 推荐错误：NOT_FOUND（源物品或其 embedding 缺失）
//   - 训练错误：PRECONDITION_FAILED（混合模型缺少前置激活模型）、INVALID_INPUT
//   - 存储错误：NOT_FOUND、UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "PRECONDITION_FAILED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "recommend", "trainer"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 资源不存在
	ErrorCodeInvalidInput       = "INVALID_INPUT"       // 输入无效
	ErrorCodePreconditionFailed = "PRECONDITION_FAILED" // 前置条件不满足
	ErrorCodeUnavailable        = "UNAVAILABLE"         // 服务不可用
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 内部错误
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleCache     = "cache"     // 缓存模块
	ModuleEmbedding = "embedding" // embedding 模块
	ModuleRecommend = "recommend" // 推荐模块
	ModuleTrainer   = "trainer"   // 训练模块
	ModuleRegistry  = "registry"  // 模型注册模块
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsPreconditionFailed 检查错误是否为 PRECONDITION_FAILED
func IsPreconditionFailed(err error) bool {
	return hasCode(err, ErrorCodePreconditionFailed)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}
