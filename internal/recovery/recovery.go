// Package recovery 从模型输出中恢复结构化对象。
// 直解失败后按固定顺序逐层降级尝试，任意一层成功即返回。
package recovery

import (
	"encoding/json"
	"fmt"
	"regexp"

	"dsgen/pkg/contract"
)

// Result 记录恢复结果及命中的层名（写日志用）。
type Result struct {
	Data map[string]any
	Tier string
}

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// StripFence 提取首个围栏代码块的内容；没有围栏则原样返回。
func StripFence(s string) string {
	if m := fencedRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// tier 是一级恢复策略：相互独立，各自失败不影响后续。
// useRaw 为真的层吃完整原文而非剥围栏后的文本：可抢救的碎片
// 可能落在围栏之外，剥离反而会把它们丢掉。
type tier struct {
	name   string
	useRaw bool
	fn     func(text string, mode contract.Mode) (map[string]any, bool)
}

var tiers = []tier{
	{"direct", false, func(text string, _ contract.Mode) (map[string]any, bool) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
			return obj, true
		}
		return nil, false
	}},
	{"repair", false, func(text string, _ contract.Mode) (map[string]any, bool) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(RepairString(text)), &obj); err == nil && obj != nil {
			return obj, true
		}
		return nil, false
	}},
	{"balanced", false, func(text string, _ contract.Mode) (map[string]any, bool) {
		for _, span := range balancedSpans(text) {
			if obj, ok := parseObject(span); ok {
				return obj, true
			}
		}
		return nil, false
	}},
	{"salvage", true, salvageKV},
	{"scan", true, scanSmallObjects},
}

// Parse 依次尝试各恢复层。返回对象未必规范化，由调用方做字段归一。
// 全部失败返回 ErrNoRecovery。
func Parse(raw string, mode contract.Mode) (Result, error) {
	text := StripFence(raw)
	for _, t := range tiers {
		in := text
		if t.useRaw {
			in = raw
		}
		if obj, ok := t.fn(in, mode); ok {
			return Result{Data: obj, Tier: t.name}, nil
		}
	}
	return Result{}, fmt.Errorf("recovery: 全部恢复层失败: %w", contract.ErrNoRecovery)
}
