package runtime

import (
	"sort"
	"strconv"
	"sync"

	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// ============================================================================
// 字段 ID
// ============================================================================

// FieldID 预解析的属性名
type FieldID int32

// InvalidFieldID 未分配
const InvalidFieldID FieldID = -1

var fieldRegistry = struct {
	sync.RWMutex
	ids   map[string]FieldID
	names []string
}{ids: make(map[string]FieldID)}

// FieldIDOf 返回属性名对应的字段 ID，不存在时分配
func FieldIDOf(name string) FieldID {
	fieldRegistry.RLock()
	id, ok := fieldRegistry.ids[name]
	fieldRegistry.RUnlock()
	if ok {
		return id
	}

	fieldRegistry.Lock()
	defer fieldRegistry.Unlock()
	if id, ok := fieldRegistry.ids[name]; ok {
		return id
	}
	id = FieldID(len(fieldRegistry.names))
	fieldRegistry.ids[name] = id
	fieldRegistry.names = append(fieldRegistry.names, name)
	return id
}

// FieldName 返回字段 ID 对应的属性名
func FieldName(id FieldID) string {
	fieldRegistry.RLock()
	defer fieldRegistry.RUnlock()
	if id < 0 || int(id) >= len(fieldRegistry.names) {
		return ""
	}
	return fieldRegistry.names[id]
}

// ============================================================================
// 属性表（对象形状）
// ============================================================================

// PropertyMap 对象形状：字段 ID 到槽位的映射
//
// 相同的添加顺序得到同一个 PropertyMap，映射的身份可用于属性访问的内联缓存。
type PropertyMap struct {
	parent *PropertyMap
	field  FieldID
	index  int
	slots  map[FieldID]int

	mu          sync.Mutex
	transitions map[FieldID]*PropertyMap
}

// NewRootMap 创建空形状
func NewRootMap() *PropertyMap {
	return &PropertyMap{field: InvalidFieldID, index: -1, slots: map[FieldID]int{}}
}

// Lookup 查找字段槽位
func (m *PropertyMap) Lookup(id FieldID) (int, bool) {
	i, ok := m.slots[id]
	return i, ok
}

// Size 字段数
func (m *PropertyMap) Size() int { return len(m.slots) }

// AddField 返回添加字段后的形状
func (m *PropertyMap) AddField(id FieldID) *PropertyMap {
	if _, ok := m.slots[id]; ok {
		return m
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if next, ok := m.transitions[id]; ok {
		return next
	}
	slots := make(map[FieldID]int, len(m.slots)+1)
	for k, v := range m.slots {
		slots[k] = v
	}
	slots[id] = len(m.slots)
	next := &PropertyMap{parent: m, field: id, index: len(m.slots), slots: slots}
	if m.transitions == nil {
		m.transitions = make(map[FieldID]*PropertyMap)
	}
	m.transitions[id] = next
	return next
}

// Fields 按添加顺序返回字段
func (m *PropertyMap) Fields() []FieldID {
	fields := make([]FieldID, len(m.slots))
	for id, i := range m.slots {
		fields[i] = id
	}
	return fields
}

// ============================================================================
// 属性描述符
// ============================================================================

// PropertyDescriptor 指向某个对象某个槽位的间接句柄
type PropertyDescriptor struct {
	Owner *Object
	Index int
	Field FieldID
}

// IsUndefined 属性不存在
func (pd *PropertyDescriptor) IsUndefined() bool { return pd == nil || pd.Owner == nil }

// IsInherited 属性来自原型链而不是 this 自身
func (pd *PropertyDescriptor) IsInherited(this *Object) bool {
	return !pd.IsUndefined() && pd.Owner != this
}

// Get 读取属性，访问器属性调用 getter
func (pd *PropertyDescriptor) Get(this Value) Value {
	if pd.IsUndefined() {
		return UndefinedValue
	}
	v := pd.Owner.slots[pd.Index]
	if v.Type == types.Property {
		return v.Data.(*Property).get(this)
	}
	return v
}

// Set 写入属性：继承来的数据属性在 this 上新建
func (pd *PropertyDescriptor) Set(this *Object, v Value) {
	if pd.IsUndefined() {
		this.SetField(pd.Field, v)
		return
	}
	if cur := pd.Owner.slots[pd.Index]; cur.Type == types.Property {
		cur.Data.(*Property).set(NewObject(this), v)
		return
	}
	if pd.IsInherited(this) {
		this.SetField(pd.Field, v)
		return
	}
	pd.Owner.slots[pd.Index] = v
}

// ============================================================================
// 对象
// ============================================================================

// DObject 对象族的公共接口
type DObject interface {
	Base() *Object
	ClassName() string
}

// Object 普通对象
type Object struct {
	Map       *PropertyMap
	Prototype *Object
	slots     []Value
}

// EmptyMap 所有对象默认的初始形状
var EmptyMap = NewRootMap()

// NewPlainObject 创建以 root 为初始形状的对象，root 为 nil 时使用 EmptyMap
func NewPlainObject(root *PropertyMap, proto *Object) *Object {
	if root == nil {
		root = EmptyMap
	}
	return &Object{Map: root, Prototype: proto}
}

func (o *Object) shape() *PropertyMap {
	if o.Map == nil {
		o.Map = EmptyMap
	}
	return o.Map
}

// Base 实现 DObject
func (o *Object) Base() *Object { return o }

// ClassName 实现 DObject
func (o *Object) ClassName() string { return "Object" }

// OwnDescriptor 查找自身属性
func (o *Object) OwnDescriptor(id FieldID) *PropertyDescriptor {
	if i, ok := o.shape().Lookup(id); ok {
		return &PropertyDescriptor{Owner: o, Index: i, Field: id}
	}
	return nil
}

// GetPropertyDescriptor 沿原型链查找属性
func (o *Object) GetPropertyDescriptor(id FieldID) *PropertyDescriptor {
	for cur := o; cur != nil; cur = cur.Prototype {
		if pd := cur.OwnDescriptor(id); pd != nil {
			return pd
		}
	}
	return &PropertyDescriptor{Field: id}
}

// GetField 读取属性
func (o *Object) GetField(id FieldID) Value {
	return o.GetPropertyDescriptor(id).Get(NewObject(o))
}

// SetField 写自身属性，不存在则添加
func (o *Object) SetField(id FieldID, v Value) {
	if i, ok := o.shape().Lookup(id); ok {
		o.slots[i] = v
		return
	}
	o.Map = o.Map.AddField(id)
	o.slots = append(o.slots, v)
}

// HasField 沿原型链检查属性
func (o *Object) HasField(id FieldID) bool {
	return !o.GetPropertyDescriptor(id).IsUndefined()
}

// DeleteField 删除自身属性（形状回到不含该字段的新链）
func (o *Object) DeleteField(id FieldID) bool {
	i, ok := o.shape().Lookup(id)
	if !ok {
		return true
	}
	fields := o.Map.Fields()
	values := o.slots
	root := o.Map
	for root.parent != nil {
		root = root.parent
	}
	o.Map = root
	o.slots = nil
	for j, f := range fields {
		if j != i {
			o.SetField(f, values[j])
		}
	}
	return true
}

// OwnKeys 按添加顺序返回自身属性名，整数键升序在前
func (o *Object) OwnKeys() []string {
	fields := o.shape().Fields()
	var ints []int
	var names []string
	for _, f := range fields {
		name := FieldName(f)
		if n, err := strconv.Atoi(name); err == nil && n >= 0 && strconv.Itoa(n) == name {
			ints = append(ints, n)
			continue
		}
		names = append(names, name)
	}
	sort.Ints(ints)
	keys := make([]string, 0, len(fields))
	for _, n := range ints {
		keys = append(keys, strconv.Itoa(n))
	}
	return append(keys, names...)
}

// Get 按名称读取
func (o *Object) Get(name string) Value { return o.GetField(FieldIDOf(name)) }

// Set 按名称写入
func (o *Object) Set(name string, v Value) { o.SetField(FieldIDOf(name), v) }

// ============================================================================
// 访问器属性
// ============================================================================

// Property 访问器属性（getter/setter）
type Property struct {
	Object
	Getter *Function
	Setter *Function
}

// ClassName 实现 DObject
func (p *Property) ClassName() string { return "Property" }

func (p *Property) get(this Value) Value {
	if p.Getter == nil {
		return UndefinedValue
	}
	return p.Getter.Call(this)
}

func (p *Property) set(this Value, v Value) {
	if p.Setter != nil {
		p.Setter.Call(this, v)
	}
}
