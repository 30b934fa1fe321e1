package runtime

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// NewGlobalObject 创建全局对象
//
// 只提供执行核心测试需要的少量内建：print、undefined、NaN、Infinity。
// print 的输出写入 out。
func NewGlobalObject(out io.Writer) *Object {
	g := NewPlainObject(nil, nil)
	g.Set("undefined", UndefinedValue)
	g.Set("NaN", NewDouble(math.NaN()))
	g.Set("Infinity", NewDouble(math.Inf(1)))

	g.Set("print", NewFunction(NewNativeFunction("print", 1, func(this Value, args []Value) Value {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = ToString(a)
		}
		if out != nil {
			fmt.Fprintln(out, strings.Join(parts, " "))
		}
		return UndefinedValue
	})))
	return g
}
