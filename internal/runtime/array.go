package runtime

import (
	"math"
	"strconv"
	"strings"

	"github.com/tangzhangming/mcjit/internal/jit/types"
)

var lengthField = FieldIDOf("length")

// ============================================================================
// 数组
// ============================================================================

// Array 数组：整数下标走快速路径，其余走通用属性路径
type Array struct {
	Object
	Elements []Value
}

// NewArrayObject 创建数组
func NewArrayObject(elements []Value) *Array {
	a := &Array{Elements: elements}
	a.Map = EmptyMap
	return a
}

// ClassName 实现 DObject
func (a *Array) ClassName() string { return "Array" }

// Length 元素个数
func (a *Array) Length() int { return len(a.Elements) }

// GetIndex 快速路径读取
func (a *Array) GetIndex(i int) Value {
	if i >= 0 && i < len(a.Elements) {
		return a.Elements[i]
	}
	return UndefinedValue
}

// SetIndex 快速路径写入，越界时以 undefined 填充扩展
func (a *Array) SetIndex(i int, v Value) {
	if i < 0 {
		a.Set(strconv.Itoa(i), v)
		return
	}
	if i >= len(a.Elements) {
		a.SetLength(i + 1)
	}
	a.Elements[i] = v
}

// SetLength 截断或扩展
func (a *Array) SetLength(n int) {
	if n < len(a.Elements) {
		a.Elements = a.Elements[:n]
		return
	}
	for len(a.Elements) < n {
		a.Elements = append(a.Elements, UndefinedValue)
	}
}

// arrayIndex 把属性键解析为数组下标
func arrayIndex(key Value) (int, bool) {
	switch {
	case key.Type.IsInteger():
		n := key.RawInt()
		if key.Type.IsUnsigned() {
			n = int64(key.RawUInt())
		}
		return int(n), n >= 0 && n < math.MaxInt32
	case key.Type.IsFloating():
		d := key.RawDouble()
		if d >= 0 && d < math.MaxInt32 && d == math.Trunc(d) {
			return int(d), true
		}
	case key.Type == types.String:
		s := key.RawString()
		if n, err := strconv.Atoi(s); err == nil && n >= 0 && strconv.Itoa(n) == s {
			return n, true
		}
	}
	return 0, false
}

// GetKey 通用路径读取
func (a *Array) GetKey(key Value) Value {
	if i, ok := arrayIndex(key); ok {
		return a.GetIndex(i)
	}
	id := FieldIDOf(ToString(key))
	if id == lengthField {
		return NewInt32(int32(len(a.Elements)))
	}
	return a.Object.GetPropertyDescriptor(id).Get(NewArray(a))
}

// SetKey 通用路径写入
func (a *Array) SetKey(key Value, v Value) {
	if i, ok := arrayIndex(key); ok {
		a.SetIndex(i, v)
		return
	}
	id := FieldIDOf(ToString(key))
	if id == lengthField {
		a.SetLength(int(ToUInt32(v)))
		return
	}
	a.Object.SetField(id, v)
}

// Join 以分隔符连接元素，undefined/null 输出为空串
func (a *Array) Join(sep string) string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		if !e.IsNullish() {
			parts[i] = ToString(e)
		}
	}
	return strings.Join(parts, sep)
}

// ============================================================================
// arguments 对象
// ============================================================================

// Arguments 活动记录的 arguments 对象
//
// 形参与其对应元素别名，读写形参必须经过 Elements 的当前内容。
type Arguments struct {
	Array
	Callee *Function
}

// NewArguments 由实参创建 arguments 对象，持有独立副本
func NewArguments(callee *Function, args []Value) *Arguments {
	elements := make([]Value, len(args))
	copy(elements, args)
	a := &Arguments{Callee: callee}
	a.Elements = elements
	a.Map = EmptyMap
	return a
}

// ClassName 实现 DObject
func (a *Arguments) ClassName() string { return "Arguments" }
