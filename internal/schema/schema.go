// Package schema 将多语言/变体字段名规范化为各模式的固定字段集，
// 并转换为统一的 {"messages": [...]} 训练格式。
package schema

import (
	"strings"

	"dsgen/pkg/contract"
)

// 各规范字段可接受的别名（有序：首个非空字符串命中者胜出）。
// 覆盖常见英文与中文变体；顺序即优先级，不得重排。
var (
	QuestionKeys    = []string{"question", "Question", "问题", "提问", "问句"}
	AnswerKeys      = []string{"answer", "Answer", "回答", "答案", "response", "reply", "回复", "output"}
	InstructionKeys = []string{"instruction", "Instruction", "指令", "任务", "要求", "prompt"}
	OutputKeys      = []string{"output", "Output", "回答", "答案", "response", "reply", "回复", "内容"}
	// 会话容器键别名
	ChatKeys = []string{"conversations", "conversation", "dialogue", "dialog", "messages", "对话", "聊天记录"}
	// 轮内角色/内容键别名
	roleKeys    = []string{"role", "speaker", "from", "角色", "身份"}
	contentKeys = []string{"content", "text", "message", "内容"}
)

// 角色名归一集合
var (
	userRoles      = map[string]struct{}{"user": {}, "human": {}, "用户": {}, "提问者": {}, "问者": {}}
	assistantRoles = map[string]struct{}{"assistant": {}, "ai": {}, "bot": {}, "助手": {}, "回答者": {}, "答者": {}}
)

// PickFirst 返回首个存在且为非空字符串的别名取值（裁剪后）。
func PickFirst(data map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, ok := v.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

// Normalize 将解析所得对象规范化为模式要求的固定字段集。
// 所有必需字段齐备时返回规范对象；否则原样透传（下游按缺字段判定失败）。
func Normalize(data map[string]any, mode contract.Mode) map[string]any {
	if data == nil {
		return nil
	}
	switch mode {
	case contract.ModeQA:
		q := PickFirst(data, QuestionKeys)
		a := PickFirst(data, AnswerKeys)
		if q != "" && a != "" {
			return map[string]any{"question": q, "answer": a}
		}
	case contract.ModeStyle, contract.ModeInstruct:
		inst := PickFirst(data, InstructionKeys)
		out := PickFirst(data, OutputKeys)
		if inst != "" && out != "" {
			return map[string]any{"instruction": inst, "output": out}
		}
	case contract.ModeChat:
		for _, key := range ChatKeys {
			items, ok := data[key].([]any)
			if !ok {
				continue
			}
			if turns := NormalizeTurns(items); len(turns) >= 2 {
				return map[string]any{"conversations": turns}
			}
		}
	}
	return data
}

// NormalizeTurns 规范会话轮：角色别名归一，未识别角色按与上一轮交替推断；
// 内容为空的轮被丢弃。
func NormalizeTurns(items []any) []contract.Message {
	var turns []contract.Message
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		content := PickFirst(m, contentKeys)
		if content == "" {
			continue
		}
		var roleRaw string
		for _, k := range roleKeys {
			if v, ok := m[k]; ok && v != nil {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					roleRaw = s
					break
				}
			}
		}
		turns = append(turns, contract.Message{
			Role:    NormalizeRole(roleRaw, turns),
			Content: content,
		})
	}
	return turns
}

// NormalizeRole 归一化角色名；未识别者按交替规则推断（上一轮为 user 则本轮
// 取 assistant，否则取 user）。
func NormalizeRole(role string, prev []contract.Message) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if _, ok := userRoles[r]; ok {
		return "user"
	}
	if _, ok := assistantRoles[r]; ok {
		return "assistant"
	}
	if len(prev) > 0 && prev[len(prev)-1].Role == "user" {
		return "assistant"
	}
	return "user"
}

// ToTrainExample 将规范对象转换为统一训练格式。
// 字段不齐或会话不足两轮时返回 false（视为规范化失败）。
func ToTrainExample(data map[string]any, mode contract.Mode) (contract.TrainExample, bool) {
	data = Normalize(data, mode)
	switch mode {
	case contract.ModeQA:
		q, _ := data["question"].(string)
		a, _ := data["answer"].(string)
		if q != "" && a != "" {
			return contract.TrainExample{Messages: []contract.Message{
				{Role: "user", Content: q},
				{Role: "assistant", Content: a},
			}}, true
		}
	case contract.ModeStyle, contract.ModeInstruct:
		inst, _ := data["instruction"].(string)
		out, _ := data["output"].(string)
		if inst != "" && out != "" {
			return contract.TrainExample{Messages: []contract.Message{
				{Role: "user", Content: inst},
				{Role: "assistant", Content: out},
			}}, true
		}
	case contract.ModeChat:
		if turns, ok := data["conversations"].([]contract.Message); ok && len(turns) >= 2 {
			return contract.TrainExample{Messages: turns}, true
		}
	}
	return contract.TrainExample{}, false
}

// CollectOutputText 抽取代表性生成文本，供脚本对齐等质量检查使用。
func CollectOutputText(data map[string]any, mode contract.Mode) string {
	switch mode {
	case contract.ModeQA:
		q, _ := data["question"].(string)
		a, _ := data["answer"].(string)
		return strings.TrimSpace(q + "\n" + a)
	case contract.ModeStyle, contract.ModeInstruct:
		out, _ := data["output"].(string)
		return out
	case contract.ModeChat:
		if turns, ok := data["conversations"].([]contract.Message); ok {
			parts := make([]string, 0, len(turns))
			for _, t := range turns {
				parts = append(parts, t.Content)
			}
			return strings.TrimSpace(strings.Join(parts, "\n"))
		}
	}
	return ""
}
