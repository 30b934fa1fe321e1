package types

import "strings"

// ============================================================================
// 函数签名
// ============================================================================

const (
	bitsPerType = 5
	typeMask    = (1 << bitsPerType) - 1

	// MaxSignatureArgs 一个 uint64 能编码的参数个数
	MaxSignatureArgs = 64 / bitsPerType
)

// Signature 参数类型签名
//
// 每个参数占 5 位，值为 Undefined(0) 的位置表示不限制。
// 装箱类型与元类型不参与编码。
type Signature uint64

// EmptySignature 不限制任何参数的签名
const EmptySignature Signature = 0

// NewSignature 由参数类型构造签名
func NewSignature(ts ...ValueType) Signature {
	var s Signature
	for i, t := range ts {
		s = s.With(i, t)
	}
	return s
}

// With 返回设置了第 i 个参数类型的签名
func (s Signature) With(i int, t ValueType) Signature {
	if i >= MaxSignatureArgs || !t.IsData() {
		return s
	}
	shift := uint(i * bitsPerType)
	s &^= Signature(typeMask) << shift
	return s | Signature(uint64(t)&typeMask)<<shift
}

// Arg 返回第 i 个参数类型
func (s Signature) Arg(i int) ValueType {
	if i >= MaxSignatureArgs {
		return Undefined
	}
	return ValueType((uint64(s) >> uint(i*bitsPerType)) & typeMask)
}

// KnownCount 已知类型的参数个数
func (s Signature) KnownCount() int {
	count := 0
	for v := uint64(s); v != 0; v >>= bitsPerType {
		if v&typeMask != 0 {
			count++
		}
	}
	return count
}

// Mask 返回覆盖前 paramCount 个参数的掩码
//
// 参数个数超过编码上限时返回空掩码，即不做签名特化。
func Mask(paramCount int) Signature {
	if paramCount > MaxSignatureArgs {
		return EmptySignature
	}
	if paramCount == MaxSignatureArgs {
		return Signature(^uint64(0) >> (64 - MaxSignatureArgs*bitsPerType))
	}
	return Signature(^(^uint64(0) << uint(paramCount*bitsPerType)))
}

// Masked 返回按掩码截取的签名
func (s Signature) Masked(mask Signature) Signature { return s & mask }

// Matches 检查实际签名在掩码下是否与 s 一致
func (s Signature) Matches(actual, mask Signature) bool {
	return s == actual&mask
}

func (s Signature) String() string {
	if s == EmptySignature {
		return "()"
	}
	last := 0
	for i := 0; i < MaxSignatureArgs; i++ {
		if s.Arg(i) != Undefined {
			last = i
		}
	}
	var sb strings.Builder
	sb.WriteByte('(')
	for i := 0; i <= last; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		if t := s.Arg(i); t == Undefined {
			sb.WriteByte('*')
		} else {
			sb.WriteString(t.String())
		}
	}
	sb.WriteByte(')')
	return sb.String()
}
