package contract

// Mode: 数据集生成模式。每种模式对应一套规范化字段与提示词模板。
type Mode string

const (
	ModeQA       Mode = "qa"       // 问答对 {question, answer}
	ModeStyle    Mode = "style"    // 文风改写 {instruction, output}
	ModeInstruct Mode = "instruct" // 指令微调 {instruction, output}
	ModeChat     Mode = "chat"     // 多轮对话 {conversations: [...]}
)

// Valid 判断模式是否为已知集合之一。
func (m Mode) Valid() bool {
	switch m {
	case ModeQA, ModeStyle, ModeInstruct, ModeChat:
		return true
	}
	return false
}

// Segment: 清洗阶段产出的生成单元（不可变）。
// 约束：
// - Text 非空且经过裁剪；
// - 顺序由清单文件中的行序决定，生成阶段不得重排；
// - Strategy 仅用于观测，不参与生成逻辑。
type Segment struct {
	ID         int    `json:"id"`
	Text       string `json:"text"`
	Strategy   string `json:"strategy"`
	SourceFile string `json:"source_file"`
}

// Message: 统一训练格式中的单轮消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrainExample: 最终持久化单元，一行一个 JSON 对象。
// 约束：chat 模式下 Messages 以 user 轮开始、交替排列，且至少两轮。
type TrainExample struct {
	Messages []Message `json:"messages"`
}
