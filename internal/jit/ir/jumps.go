package ir

import (
	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// JumpTarget break/continue 可以到达的目标
type JumpTarget struct {
	Labels   []string
	IsLoop   bool
	IsSwitch bool
}

// HasLabel 目标是否带有给定标签
func (t JumpTarget) HasLabel(name string) bool {
	for _, l := range t.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// FindJumpTarget 为 break/continue 查找目标
//
// targets 由内向外排列。返回目标下标；找不到时返回 -1 和注入 throw 使用的消息。
// 解释器与各后端对手工构建的 IR 使用同一规则。
func FindJumpTarget(targets []JumpTarget, s Stmt) (int, string) {
	isContinue := false
	label := ""
	switch j := s.(type) {
	case *Break:
		label = j.Label
	case *Continue:
		isContinue = true
		label = j.Label
	default:
		return -1, ""
	}

	for i, t := range targets {
		if label == "" {
			if t.IsLoop || (!isContinue && t.IsSwitch) {
				return i, ""
			}
			continue
		}
		if !t.HasLabel(label) {
			continue
		}
		if isContinue && !t.IsLoop {
			return -1, errors.Message(errors.E0305)
		}
		return i, ""
	}

	switch {
	case label != "":
		return -1, errors.Message(errors.E0306, label)
	case isContinue:
		return -1, errors.Message(errors.E0305)
	}
	return -1, errors.Message(errors.E0304)
}

// LoopLabels 剥去语句外层的标签，返回标签和被标注的语句
func LoopLabels(s Stmt) ([]string, Stmt) {
	var labels []string
	for {
		l, ok := s.(*Label)
		if !ok {
			return labels, s
		}
		labels = append(labels, l.Name)
		s = l.Body
	}
}

// IsLabelTarget 被标注的语句本身是否承接 break（循环与 switch）
func IsLabelTarget(s Stmt) bool {
	switch s.(type) {
	case *While, *DoWhile, *For, *Switch:
		return true
	}
	return false
}

// ============================================================================
// 构建期检查
// ============================================================================

// resolveJumps 把找不到目标的 break/continue 替换为注入的 throw
func resolveJumps(f *Factory, body *Block) {
	r := &jumpResolver{f: f}
	r.block(body)
}

type jumpResolver struct {
	f       *Factory
	targets []JumpTarget // 由内向外
}

func (r *jumpResolver) push(t JumpTarget) {
	r.targets = append([]JumpTarget{t}, r.targets...)
}

func (r *jumpResolver) pop() { r.targets = r.targets[1:] }

func (r *jumpResolver) block(b *Block) {
	if b == nil {
		return
	}
	for i, s := range b.Statements {
		b.Statements[i] = r.stmt(s, nil)
	}
}

// stmt labels 为直接挂在该语句上的标签
func (r *jumpResolver) stmt(s Stmt, labels []string) Stmt {
	switch n := s.(type) {
	case *Label:
		inner, body := LoopLabels(n)
		all := append(append([]string(nil), labels...), inner...)
		if IsLabelTarget(body) {
			r.stmt(body, all)
			return n
		}
		r.push(JumpTarget{Labels: all})
		r.replaceLabelBody(n, r.stmt(body, nil))
		r.pop()
		return n
	case *While:
		r.push(JumpTarget{Labels: labels, IsLoop: true})
		n.Body = r.stmt(n.Body, nil)
		r.pop()
	case *DoWhile:
		r.push(JumpTarget{Labels: labels, IsLoop: true})
		n.Body = r.stmt(n.Body, nil)
		r.pop()
	case *For:
		if n.Init != nil {
			n.Init = r.stmt(n.Init, nil)
		}
		r.push(JumpTarget{Labels: labels, IsLoop: true})
		n.Body = r.stmt(n.Body, nil)
		r.pop()
	case *Switch:
		r.push(JumpTarget{Labels: labels, IsSwitch: true})
		for _, c := range n.Cases {
			for i, cs := range c.Body {
				c.Body[i] = r.stmt(cs, nil)
			}
		}
		r.pop()
	case *Block:
		r.block(n)
	case *If:
		n.Then = r.stmt(n.Then, nil)
		if n.Else != nil {
			n.Else = r.stmt(n.Else, nil)
		}
	case *Try:
		r.block(n.Body)
		r.block(n.Catch)
		r.block(n.Finally)
	case *Break, *Continue:
		if _, msg := FindJumpTarget(r.targets, s); msg != "" {
			return &Throw{Value: r.f.Literal(runtime.NewString(msg))}
		}
	}
	return s
}

// replaceLabelBody 替换标签链最内层的语句
func (r *jumpResolver) replaceLabelBody(l *Label, body Stmt) {
	for {
		inner, ok := l.Body.(*Label)
		if !ok {
			l.Body = body
			return
		}
		l = inner
	}
}
