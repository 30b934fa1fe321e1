package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// InternalError 内部不变式错误
//
// 代表代码生成器或类型格的 bug，不能被客体代码观察到。
type InternalError struct {
	Code  string
	cause error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error [%s]: %s", e.Code, e.cause.Error())
}

// Cause 返回带栈的原始错误
func (e *InternalError) Cause() error { return e.cause }

// Unwrap 支持 errors.Is/As
func (e *InternalError) Unwrap() error { return e.cause }

// StackTrace 返回创建时的调用栈
func (e *InternalError) StackTrace() pkgerrors.StackTrace {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	if st, ok := e.cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// Internalf 构造内部错误
func Internalf(code string, args ...interface{}) *InternalError {
	return &InternalError{
		Code:  code,
		cause: pkgerrors.New(Message(code, args...)),
	}
}

// Fail 以内部错误中止当前编译或执行
func Fail(code string, args ...interface{}) {
	panic(Internalf(code, args...))
}

// Assert 条件不满足时中止
func Assert(cond bool, code string, args ...interface{}) {
	if !cond {
		Fail(code, args...)
	}
}

// Recover 把内部错误的 panic 转换为返回值，其余 panic 继续传播
//
//	defer errors.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InternalError); ok {
		*err = ie
		return
	}
	panic(r)
}

// Wrapf 为错误附加格式化上下文
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}
