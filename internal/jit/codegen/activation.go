package codegen

import (
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// Activation 一次调用的活动记录
//
// 编译后的代码与解释器都通过它读写符号。Values 按 Layout 排列，
// 其中操作数栈区只有 light 与 IC 后端使用。
type Activation struct {
	Frame     *runtime.CallFrame
	Layout    *Layout
	Values    []runtime.Value
	Context   *runtime.Object
	Arguments *runtime.Arguments
	Global    *runtime.Object

	passed  int
	handles []*runtime.PropertyDescriptor
	stops   []func()
}

// NewActivation 建立活动记录：上下文、形参与 arguments 绑定
//
// 有被捕获符号的函数（以及程序顶层）创建新的上下文，原型指向定义处的
// 上下文；被捕获的形参在这里拷贝进上下文。其余函数直接沿用定义处的上下文。
func NewActivation(layout *Layout, frame *runtime.CallFrame, global *runtime.Object) *Activation {
	a := &Activation{
		Frame:  frame,
		Layout: layout,
		Values: make([]runtime.Value, layout.Size()),
		Global: global,
		passed: len(frame.Args),
	}
	if layout.HandleCount > 0 {
		a.handles = make([]*runtime.PropertyDescriptor, layout.HandleCount)
	}

	var env *runtime.Object
	if frame.Function != nil {
		env = frame.Function.Env
	}
	a.Context = env
	if len(layout.ClosedOn) > 0 || layout.IsProgram {
		ctx := runtime.NewPlainObject(nil, env)
		for _, sym := range layout.ClosedOn {
			v := runtime.UndefinedValue
			if sym.IsParameter() {
				v = frame.Arg(sym.ParameterIndex)
			}
			ctx.SetField(sym.FieldID(), v)
		}
		a.Context = ctx
	}
	if a.Context != nil {
		a.Values[ContextIndex] = runtime.NewObject(a.Context)
	}

	for i, t := range layout.ParamTypes {
		a.Values[firstArgument+i] = Coerce(frame.Arg(i), t)
	}
	if layout.UsesArguments {
		a.Arguments = runtime.NewArguments(frame.Function, frame.Args)
		a.Values[ArgumentsIndex] = runtime.NewArgumentsValue(a.Arguments)
	}

	for _, sym := range layout.Globals {
		if !global.HasField(sym.FieldID()) {
			global.SetField(sym.FieldID(), runtime.UndefinedValue)
		}
	}
	return a
}

// This 非对象的 this 以全局对象代替
func (a *Activation) This() runtime.Value {
	if t := a.Frame.This; t.IsObject() {
		return t
	}
	return runtime.NewObject(a.Global)
}

// Exit 结束序言开始的计时，所有退出路径都要调用
func (a *Activation) Exit() {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	a.stops = nil
}

// ============================================================================
// 符号读写
// ============================================================================

// Load 读符号
func (a *Activation) Load(st Storage) runtime.Value {
	switch st.Kind {
	case StorageArgument, StorageSlot:
		return a.Values[st.Index]
	case StorageArgumentsElement:
		if a.aliased(st) {
			return a.Arguments.Elements[st.Param]
		}
		return a.Values[st.Index]
	case StorageContext:
		pd := a.contextDescriptor(st)
		if pd == nil {
			runtime.ThrowReferenceError(st.Name)
		}
		return pd.Get(runtime.NewObject(pd.Owner))
	case StorageGlobal:
		return a.loadGlobal(st)
	case StorageDynamic:
		if pd := a.contextDescriptor(st); pd != nil {
			return pd.Get(runtime.NewObject(pd.Owner))
		}
		return a.loadGlobal(st)
	case StorageArgumentsObject:
		return a.Values[ArgumentsIndex]
	}
	return runtime.UndefinedValue
}

// Store 写符号，原生类型的槽位先转换
func (a *Activation) Store(st Storage, v runtime.Value) {
	switch st.Kind {
	case StorageArgument, StorageSlot:
		a.Values[st.Index] = Coerce(v, st.Type)
	case StorageArgumentsElement:
		if a.aliased(st) {
			a.Arguments.Elements[st.Param] = v
			return
		}
		a.Values[st.Index] = v
	case StorageContext, StorageDynamic:
		if pd := a.contextDescriptor(st); pd != nil {
			pd.Set(pd.Owner, v)
			return
		}
		a.storeGlobal(st, v)
	case StorageGlobal:
		a.storeGlobal(st, v)
	case StorageArgumentsObject:
		a.Values[ArgumentsIndex] = v
	}
}

// aliased 形参与 arguments 元素别名：只对实际传入的实参成立
func (a *Activation) aliased(st Storage) bool {
	return a.Arguments != nil && st.Param < a.passed && st.Param < len(a.Arguments.Elements)
}

func (a *Activation) contextDescriptor(st Storage) *runtime.PropertyDescriptor {
	if st.Handle >= 0 {
		if pd := a.handles[st.Handle]; pd != nil {
			return pd
		}
	}
	if a.Context == nil {
		return nil
	}
	pd := a.Context.GetPropertyDescriptor(st.Field)
	if pd.IsUndefined() {
		return nil
	}
	if st.Handle >= 0 && st.Cacheable {
		a.handles[st.Handle] = pd
	}
	return pd
}

func (a *Activation) loadGlobal(st Storage) runtime.Value {
	pd := a.Global.GetPropertyDescriptor(st.Field)
	if pd.IsUndefined() {
		runtime.ThrowReferenceError(st.Name)
	}
	return pd.Get(runtime.NewObject(a.Global))
}

func (a *Activation) storeGlobal(st Storage, v runtime.Value) {
	a.Global.GetPropertyDescriptor(st.Field).Set(a.Global, v)
}

// Temp 编号为 i 的临时值
func (a *Activation) Temp(i int) runtime.Value { return a.Values[a.Layout.TempIndex(i)] }

// SetTemp 写临时值
func (a *Activation) SetTemp(i int, v runtime.Value) { a.Values[a.Layout.TempIndex(i)] = v }

// Rebase 把活动记录搬到另一次编译的布局上
//
// 同一函数的各次编译符号槽位一致，只有操作数栈区的大小不同：符号区原样
// 拷贝，临时值按编号重新定位，操作数栈区留空由调用方填写。
func (a *Activation) Rebase(layout *Layout) *Activation {
	b := *a
	b.Layout = layout
	b.Values = make([]runtime.Value, layout.Size())
	copy(b.Values, a.Values[:a.Layout.StackBase()])
	for i := 0; i < layout.TempCount; i++ {
		b.Values[layout.TempIndex(i)] = a.Temp(i)
	}
	if layout.HandleCount > 0 {
		b.handles = make([]*runtime.PropertyDescriptor, layout.HandleCount)
	}
	b.stops = nil
	return &b
}
