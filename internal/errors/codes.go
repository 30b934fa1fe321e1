// Package errors 提供执行核心的错误分类
//
// 三类错误：
//   - 客体语言错误：以注入的 throw 抛出，可以被客体代码 catch
//   - 内部不变式错误：代码生成或类型格的 bug，致命，中止整个函数的编译
//   - 推测失败：不是错误，由运行时的去优化蹦床处理
package errors

import "fmt"

// ============================================================================
// 错误级别
// ============================================================================

// Level 错误级别
type Level int

const (
	LevelError   Level = iota // 错误
	LevelWarning              // 警告
	LevelFatal                // 致命
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ============================================================================
// 客体语言错误码 (E 开头)
// ============================================================================

const (
	// E0300-E0399: 控制流错误
	E0304 = "E0304" // break 在目标外
	E0305 = "E0305" // continue 在循环外
	E0306 = "E0306" // 未定义的标签

	// E0307-E0309: 运行时错误
	E0307 = "E0307" // 引用错误
	E0308 = "E0308" // 类型错误
	E0309 = "E0309" // 非函数调用
)

// ============================================================================
// 内部错误码 (I 开头)
// ============================================================================

const (
	I0001 = "I0001" // 操作数栈深度不一致
	I0002 = "I0002" // 缺少运算重载
	I0003 = "I0003" // 非法的符号种类
	I0004 = "I0004" // 不支持的类型转换
	I0005 = "I0005" // 未知的 IR 节点
	I0006 = "I0006" // 跳转目标未回填
	I0007 = "I0007" // 守卫没有续跑点
)

// ErrorInfo 错误信息
type ErrorInfo struct {
	Code     string
	Level    Level
	Template string // fmt 格式
	Category string
}

var guestErrors = map[string]ErrorInfo{
	E0304: {E0304, LevelError, "Illegal break statement", "control"},
	E0305: {E0305, LevelError, "Illegal continue statement", "control"},
	E0306: {E0306, LevelError, "Undefined label '%s'", "control"},
	E0307: {E0307, LevelError, "%s is not defined", "reference"},
	E0308: {E0308, LevelError, "%s", "type"},
	E0309: {E0309, LevelError, "%s is not a function", "type"},
}

var internalErrors = map[string]ErrorInfo{
	I0001: {I0001, LevelFatal, "stack depth mismatch: expected %d, got %d", "codegen"},
	I0002: {I0002, LevelFatal, "no operation %s for operand types %v", "ops"},
	I0003: {I0003, LevelFatal, "invalid symbol kind %v for %s", "storage"},
	I0004: {I0004, LevelFatal, "cannot convert %v to %v", "value"},
	I0005: {I0005, LevelFatal, "unknown IR node %v", "ir"},
	I0006: {I0006, LevelFatal, "unresolved jump target %d", "codegen"},
	I0007: {I0007, LevelFatal, "no resume point for guard %d", "codegen"},
}

// GetGuestErrorInfo 获取客体错误信息
func GetGuestErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := guestErrors[code]
	return info, ok
}

// GetInternalErrorInfo 获取内部错误信息
func GetInternalErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := internalErrors[code]
	return info, ok
}

// IsGuestError 检查是否为客体错误码
func IsGuestError(code string) bool {
	_, ok := guestErrors[code]
	return ok
}

// IsInternalError 检查是否为内部错误码
func IsInternalError(code string) bool {
	_, ok := internalErrors[code]
	return ok
}

// Message 按错误码格式化消息
func Message(code string, args ...interface{}) string {
	info, ok := guestErrors[code]
	if !ok {
		info, ok = internalErrors[code]
	}
	if !ok {
		return code
	}
	return fmt.Sprintf(info.Template, args...)
}
