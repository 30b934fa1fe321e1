package runtime

import (
	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// ============================================================================
// 调用帧
// ============================================================================

// CallFrame 一次调用的活动记录入口
type CallFrame struct {
	Function    *Function
	This        Value
	Args        []Value
	Signature   types.Signature
	Return      Value
	IsConstruct bool
}

// NewCallFrame 创建调用帧并计算实参签名
func NewCallFrame(fn *Function, this Value, args []Value) *CallFrame {
	return &CallFrame{
		Function:  fn,
		This:      this,
		Args:      args,
		Signature: SignatureOf(args, types.MaxSignatureArgs),
		Return:    UndefinedValue,
	}
}

// PassedArgsCount 实参个数
func (f *CallFrame) PassedArgsCount() int { return len(f.Args) }

// Arg 第 i 个实参，缺省为 undefined
func (f *CallFrame) Arg(i int) Value {
	if i < len(f.Args) {
		return f.Args[i]
	}
	return UndefinedValue
}

// SignatureOf 由实参计算签名
func SignatureOf(args []Value, maxArgs int) types.Signature {
	n := len(args)
	if n > maxArgs {
		n = maxArgs
	}
	if n > types.MaxSignatureArgs {
		return types.EmptySignature
	}
	sig := types.EmptySignature
	for i := 0; i < n; i++ {
		sig = sig.With(i, args[i].Type)
	}
	return sig
}

// ============================================================================
// 函数
// ============================================================================

// NativeFunc 宿主实现的函数
type NativeFunc func(this Value, args []Value) Value

// Invoker 执行非宿主函数的调用分派（由执行引擎提供）
type Invoker interface {
	Invoke(frame *CallFrame)
}

// Function 函数对象
type Function struct {
	Object
	Name     string
	Length   int
	Metadata interface{} // 函数的 IR 元数据，对对象模型不透明
	Env      *Object     // 定义处的上下文
	Native   NativeFunc
	Invoker  Invoker
}

// NewNativeFunction 创建宿主函数
func NewNativeFunction(name string, length int, fn NativeFunc) *Function {
	f := &Function{Name: name, Length: length, Native: fn}
	f.Map = EmptyMap
	return f
}

// ClassName 实现 DObject
func (f *Function) ClassName() string { return "Function" }

// Invoke 执行调用帧
func (f *Function) Invoke(frame *CallFrame) {
	switch {
	case f.Native != nil:
		frame.Return = f.Native(frame.This, frame.Args)
	case f.Invoker != nil:
		f.Invoker.Invoke(frame)
	default:
		ThrowTypeError(errors.Message(errors.E0309, f.Name))
	}
}

// Call 以给定 this 调用
func (f *Function) Call(this Value, args ...Value) Value {
	frame := NewCallFrame(f, this, args)
	f.Invoke(frame)
	return frame.Return
}

// Construct 以 new 调用
func (f *Function) Construct(args ...Value) Value {
	var proto *Object
	if p := f.Get("prototype"); p.IsObject() {
		proto = p.Base()
	}
	obj := NewPlainObject(nil, proto)
	frame := NewCallFrame(f, NewObject(obj), args)
	frame.IsConstruct = true
	f.Invoke(frame)
	if frame.Return.IsObject() {
		return frame.Return
	}
	return NewObject(obj)
}

// ============================================================================
// 客体异常
// ============================================================================

// JSException 客体语言抛出的值
type JSException struct {
	Value Value
}

func (e *JSException) Error() string { return ToString(e.Value) }

// Throw 抛出客体异常
func Throw(v Value) {
	panic(&JSException{Value: v})
}

// ThrowTypeError 抛出类型错误
func ThrowTypeError(msg string) {
	Throw(NewString("TypeError: " + msg))
}

// ThrowReferenceError 抛出引用错误
func ThrowReferenceError(name string) {
	Throw(NewString("ReferenceError: " + errors.Message(errors.E0307, name)))
}

// CatchException 把客体异常 panic 转换为返回值，其余 panic 继续传播
//
//	defer runtime.CatchException(&exc)
func CatchException(exc **JSException) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(*JSException); ok {
		*exc = e
		return
	}
	panic(r)
}

// CallValue 调用任意值，非函数时抛出类型错误
func CallValue(callee Value, this Value, args []Value, name string) Value {
	fn, ok := callee.Data.(*Function)
	if !ok || callee.Type != types.Function {
		if name == "" {
			name = ToString(callee)
		}
		ThrowTypeError(errors.Message(errors.E0309, name))
	}
	frame := NewCallFrame(fn, this, args)
	fn.Invoke(frame)
	return frame.Return
}
