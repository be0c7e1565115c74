package generate

import (
	"fmt"
	"strings"

	"dsgen/pkg/contract"
)

// previewRunes 送入提示词的段落预览长度上限（按符文计）。
const previewRunes = 2000

// 各模式系统提示词：声明产出的 JSON 结构与规则。
var systemPrompts = map[contract.Mode]string{
	contract.ModeQA: "你是一个训练数据构造助手。根据给定文本生成一个有深度的问答对。" +
		"只输出一个 JSON 对象，格式为 {\"question\": \"...\", \"answer\": \"...\"}，" +
		"问题必须能从文本中找到依据，答案要完整准确。不要输出 JSON 之外的任何内容。",
	contract.ModeStyle: "你是一个写作风格学习助手。模仿给定文本的语气、用词和节奏，" +
		"创作一段全新内容（不得复述原文），并给出能引出这段内容的写作指令。" +
		"只输出一个 JSON 对象，格式为 {\"instruction\": \"...\", \"output\": \"...\"}。" +
		"不要输出 JSON 之外的任何内容。",
	contract.ModeInstruct: "你是一个训练数据构造助手。根据给定文本构造一条指令及其理想回答。" +
		"只输出一个 JSON 对象，格式为 {\"instruction\": \"...\", \"output\": \"...\"}，" +
		"回答需基于文本内容。不要输出 JSON 之外的任何内容。",
	contract.ModeChat: "你是一个对话数据构造助手。围绕给定文本构造一段多轮对话，至少两轮，" +
		"用户提问、助手回答，内容须忠于文本。只输出一个 JSON 对象，格式为 " +
		"{\"conversations\": [{\"role\": \"user\", \"content\": \"...\"}, {\"role\": \"assistant\", \"content\": \"...\"}]}。" +
		"不要输出 JSON 之外的任何内容。",
}

// 各模式用户消息模板，%s 处填入段落预览。
var userTemplates = map[contract.Mode]string{
	contract.ModeQA:       "请基于以下文本生成一个问答对：\n\n%s",
	contract.ModeStyle:    "请模仿以下文本的写作风格创作新内容：\n\n%s",
	contract.ModeInstruct: "请基于以下文本构造一条指令数据：\n\n%s",
	contract.ModeChat:     "请基于以下文本构造一段多轮对话：\n\n%s",
}

// keepLanguageSuffix 强制输出语言跟随原文，避免模型自行切换语言。
const keepLanguageSuffix = "请使用与原文相同的语言作答。"

// SystemPrompt 返回模式对应的系统提示词。
func SystemPrompt(mode contract.Mode) string { return systemPrompts[mode] }

// BuildUserMessage 组装用户消息：段落截断为预览后套模板，再附语言约束。
func BuildUserMessage(mode contract.Mode, segText string) string {
	rs := []rune(segText)
	if len(rs) > previewRunes {
		segText = string(rs[:previewRunes])
	}
	msg := fmt.Sprintf(userTemplates[mode], segText)
	return strings.TrimSpace(msg) + "\n\n" + keepLanguageSuffix
}

// 模式相关的采样参数：风格模式温度更高，对话与风格类给更大输出预算。
func temperatureFor(mode contract.Mode) float64 {
	if mode == contract.ModeStyle {
		return 0.9
	}
	return 0.7
}

func numPredictFor(mode contract.Mode) int {
	if mode == contract.ModeStyle || mode == contract.ModeChat {
		return 4096
	}
	return 2048
}
