package recovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"dsgen/internal/schema"
	"dsgen/pkg/contract"
)

// keyAlt 将别名表拼成正则分支（逐项转义）。
func keyAlt(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = regexp.QuoteMeta(k)
	}
	return strings.Join(parts, "|")
}

// 成对键值抢救：匹配 "首键: <值> , 次键:" 结构，值部分懒惰匹配。
// 冒号同时接受半角与全角。
func pairPattern(first, second []string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)["']?(?:` + keyAlt(first) + `)["']?\s*[:：]\s*(.+?)\s*,\s*["']?(?:` + keyAlt(second) + `)["']?\s*[:：]`)
}

// 尾键抢救：值一直取到对象闭合或文本结尾。
func tailPattern(keys []string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)["']?(?:` + keyAlt(keys) + `)["']?\s*[:：]\s*(.+?)(?:\s*}\s*$|\s*$)`)
}

var (
	qaPairRe       = pairPattern(schema.QuestionKeys, schema.AnswerKeys)
	qaTailRe       = tailPattern(schema.AnswerKeys)
	instructPairRe = pairPattern(schema.InstructionKeys, schema.OutputKeys)
	instructTailRe = tailPattern(schema.OutputKeys)

	smallObjectRe = regexp.MustCompile(`\{[^{}]*\}`)
	fenceHeadRe   = regexp.MustCompile("(?i)^```(?:json)?")
	fenceTailRe   = regexp.MustCompile("```$")
	braceTailRe   = regexp.MustCompile(`\s*}\s*$`)
	commaTailRe   = regexp.MustCompile(`,\s*$`)
)

// cleanValue 清理抢救出的原始值：去围栏、去引号、去尾部闭合符与
// 逗号，还原常见转义。步骤顺序有讲究，不可随意调换。
func cleanValue(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), ","))
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(fenceHeadRe.ReplaceAllString(s, ""))
	s = strings.TrimSpace(fenceTailRe.ReplaceAllString(s, ""))
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		quote := s[0]
		s = s[1:]
		if len(s) > 0 && s[len(s)-1] == quote {
			s = s[:len(s)-1]
		}
	}
	s = strings.TrimSpace(s)
	s = braceTailRe.ReplaceAllString(s, "")
	s = commaTailRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	return strings.TrimSpace(s)
}

// salvageKV 按模式用正则从残损文本里抠出成对字段。
// chat 模式无成对结构，不在此层处理。
func salvageKV(text string, mode contract.Mode) (map[string]any, bool) {
	var pairRe, tailRe *regexp.Regexp
	var firstKey, secondKey string
	switch mode {
	case contract.ModeQA:
		pairRe, tailRe = qaPairRe, qaTailRe
		firstKey, secondKey = "question", "answer"
	case contract.ModeStyle, contract.ModeInstruct:
		pairRe, tailRe = instructPairRe, instructTailRe
		firstKey, secondKey = "instruction", "output"
	default:
		return nil, false
	}
	m := pairRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	first := cleanValue(m[1])
	tm := tailRe.FindStringSubmatch(text)
	if tm == nil {
		return nil, false
	}
	second := cleanValue(tm[1])
	if first == "" || second == "" {
		return nil, false
	}
	return map[string]any{firstKey: first, secondKey: second}, true
}

// scanSmallObjects 扫描所有不含嵌套的 {...} 小对象逐个解析。
// chat 模式收集 role/content 碎片重组会话；其余模式取首个可规范化对象。
func scanSmallObjects(text string, mode contract.Mode) (map[string]any, bool) {
	frags := smallObjectRe.FindAllString(text, -1)
	if mode == contract.ModeChat {
		var turns []contract.Message
		for _, f := range frags {
			obj, ok := parseObject(f)
			if !ok {
				continue
			}
			// 碎片须同时带 role 与 content 键（不认别名），否则任意
			// {"text": ...} 小对象都会被缝进会话里。
			rv, hasRole := obj["role"]
			cv, hasContent := obj["content"]
			if !hasRole || !hasContent {
				continue
			}
			content := strings.TrimSpace(fmt.Sprint(cv))
			if content == "" {
				continue
			}
			role, _ := rv.(string)
			turns = append(turns, contract.Message{
				Role:    schema.NormalizeRole(role, turns),
				Content: content,
			})
		}
		if len(turns) < 2 {
			return nil, false
		}
		items := make([]any, len(turns))
		for i, t := range turns {
			items[i] = map[string]any{"role": t.Role, "content": t.Content}
		}
		return map[string]any{"conversations": items}, true
	}
	for _, f := range frags {
		obj, ok := parseObject(f)
		if !ok {
			continue
		}
		if _, ok := schemaComplete(obj, mode); ok {
			return obj, true
		}
	}
	return nil, false
}

// parseObject 先直解，失败再修复后解；仅接受对象。
func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, true
	}
	obj = nil
	if err := json.Unmarshal([]byte(RepairString(s)), &obj); err == nil && obj != nil {
		return obj, true
	}
	return nil, false
}

// schemaComplete 判定对象规范化后字段是否齐备。
func schemaComplete(obj map[string]any, mode contract.Mode) (map[string]any, bool) {
	norm := schema.Normalize(obj, mode)
	if _, ok := schema.ToTrainExample(norm, mode); !ok {
		return nil, false
	}
	return norm, true
}
