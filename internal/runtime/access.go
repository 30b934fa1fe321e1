package runtime

import (
	"strconv"
	"unicode/utf16"

	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// ============================================================================
// 通用属性访问
// ============================================================================

// GetKey 读取 container[key]
func GetKey(container, key Value) Value {
	switch o := container.DObject().(type) {
	case *Array:
		return o.GetKey(key)
	case *Arguments:
		return o.GetKey(key)
	}
	return GetNamed(container, FieldIDOf(ToString(key)))
}

// SetKey 写入 container[key] = v
func SetKey(container, key, v Value) {
	switch o := container.DObject().(type) {
	case *Array:
		o.SetKey(key, v)
		return
	case *Arguments:
		o.SetKey(key, v)
		return
	}
	SetNamed(container, FieldIDOf(ToString(key)), v)
}

// GetNamed 按字段 id 读取
func GetNamed(container Value, id FieldID) Value {
	if container.IsObject() {
		switch o := container.DObject().(type) {
		case *Array:
			if id == lengthField {
				return NewInt32(int32(o.Length()))
			}
		case *Arguments:
			if id == lengthField {
				return NewInt32(int32(o.Length()))
			}
		}
		return container.Base().GetPropertyDescriptor(id).Get(container)
	}
	if container.IsNullish() {
		ThrowTypeError("Cannot read property '" + FieldName(id) + "' of " + ToString(container))
	}
	if container.IsString() {
		s := utf16.Encode([]rune(container.RawString()))
		if id == lengthField {
			return NewInt32(int32(len(s)))
		}
		if n, err := strconv.Atoi(FieldName(id)); err == nil && n >= 0 && n < len(s) {
			return NewChar(s[n])
		}
	}
	return UndefinedValue
}

// SetNamed 按字段 id 写入，原始值上的写入被忽略
func SetNamed(container Value, id FieldID, v Value) {
	if container.IsObject() {
		if a := arrayOf(container); a != nil && id == lengthField {
			a.SetLength(int(ToUInt32(v)))
			return
		}
		o := container.Base()
		o.GetPropertyDescriptor(id).Set(o, v)
		return
	}
	if container.IsNullish() {
		ThrowTypeError("Cannot set property '" + FieldName(id) + "' of " + ToString(container))
	}
}

// DeleteKey delete container[key]
func DeleteKey(container, key Value) bool {
	if !container.IsObject() {
		return true
	}
	if a := arrayOf(container); a != nil {
		if i, ok := arrayIndex(key); ok {
			if i < a.Length() {
				a.Elements[i] = UndefinedValue
			}
			return true
		}
	}
	return container.Base().DeleteField(FieldIDOf(ToString(key)))
}

// HasKey key in container
func HasKey(container, key Value) bool {
	if !container.IsObject() {
		ThrowTypeError("Cannot use 'in' operator to search for '" + ToString(key) + "' in " + ToString(container))
	}
	if a := arrayOf(container); a != nil {
		if i, ok := arrayIndex(key); ok {
			return i < a.Length()
		}
		if FieldIDOf(ToString(key)) == lengthField {
			return true
		}
	}
	return container.Base().HasField(FieldIDOf(ToString(key)))
}

// EnumerateKeys for-in 枚举的键：数组下标在前，再沿原型链收集可见属性名
func EnumerateKeys(container Value) []Value {
	if !container.IsObject() {
		return nil
	}
	var keys []Value
	seen := make(map[string]bool)
	if a := arrayOf(container); a != nil {
		for i := range a.Elements {
			k := strconv.Itoa(i)
			seen[k] = true
			keys = append(keys, NewString(k))
		}
	}
	for o := container.Base(); o != nil; o = o.Prototype {
		for _, k := range o.OwnKeys() {
			if seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, NewString(k))
		}
	}
	return keys
}

// DescribeField 返回对象的形状和字段描述符，供形状剖析使用
//
// 非对象返回 nil 形状。
func DescribeField(container Value, id FieldID) (*PropertyMap, *PropertyDescriptor) {
	if !container.IsObject() {
		return nil, nil
	}
	o := container.Base()
	return o.shape(), o.GetPropertyDescriptor(id)
}

// SlotAt 按槽位读取自身数据属性，访问器属性经由 getter
func (o *Object) SlotAt(i int, this Value) Value {
	v := o.slots[i]
	if v.Type == types.Property {
		return v.Data.(*Property).get(this)
	}
	return v
}

// SetSlotAt 按槽位写入自身数据属性，槽位存放访问器时返回 false
func (o *Object) SetSlotAt(i int, v Value) bool {
	if o.slots[i].Type == types.Property {
		return false
	}
	o.slots[i] = v
	return true
}

func arrayOf(v Value) *Array {
	switch o := v.DObject().(type) {
	case *Array:
		return o
	case *Arguments:
		return &o.Array
	}
	return nil
}
