package schema

import (
	"testing"

	"dsgen/pkg/contract"
)

// 中英文字段别名应产出同一规范形状。
func TestNormalizeQAAliases(t *testing.T) {
	cases := []map[string]any{
		{"question": "Q", "answer": "A"},
		{"Question": "Q", "Answer": "A"},
		{"问题": "Q", "答案": "A"},
		{"提问": "Q", "回复": "A"},
		{"问句": "Q", "response": "A"},
	}
	for i, in := range cases {
		out := Normalize(in, contract.ModeQA)
		if out["question"] != "Q" || out["answer"] != "A" {
			t.Fatalf("cases[%d]: out = %v", i, out)
		}
	}
}

func TestNormalizeInstructAliases(t *testing.T) {
	out := Normalize(map[string]any{"指令": "做事", "内容": "结果"}, contract.ModeInstruct)
	if out["instruction"] != "做事" || out["output"] != "结果" {
		t.Fatalf("out = %v", out)
	}
	// prompt 也是指令别名
	out = Normalize(map[string]any{"prompt": "做事", "output": "结果"}, contract.ModeStyle)
	if out["instruction"] != "做事" {
		t.Fatalf("out = %v", out)
	}
}

// 别名优先级：按表序取首个非空值。
func TestPickFirstPriority(t *testing.T) {
	data := map[string]any{"question": "  ", "问题": "中文问题", "提问": "次选"}
	if got := PickFirst(data, QuestionKeys); got != "中文问题" {
		t.Fatalf("got %q", got)
	}
}

// 字段不齐时原对象透传，由下游判定失败。
func TestNormalizeIncompletePassthrough(t *testing.T) {
	in := map[string]any{"question": "只有问题"}
	out := Normalize(in, contract.ModeQA)
	if _, ok := out["answer"]; ok {
		t.Fatalf("out = %v", out)
	}
	if _, ok := ToTrainExample(out, contract.ModeQA); ok {
		t.Fatal("不完整对象不应转换成功")
	}
}

func TestNormalizeChatRolesAndAlternation(t *testing.T) {
	in := map[string]any{"对话": []any{
		map[string]any{"角色": "用户", "内容": "第一问"},
		map[string]any{"role": "助手", "text": "第一答"},
		map[string]any{"role": "旁白", "content": "身份未知"}, // 上一轮 assistant → 推断 user
		map[string]any{"speaker": "AI", "message": "第二答"},
	}}
	out := Normalize(in, contract.ModeChat)
	turns, ok := out["conversations"].([]contract.Message)
	if !ok {
		t.Fatalf("out = %v", out)
	}
	wantRoles := []string{"user", "assistant", "user", "assistant"}
	if len(turns) != len(wantRoles) {
		t.Fatalf("turns = %v", turns)
	}
	for i, w := range wantRoles {
		if turns[i].Role != w {
			t.Fatalf("turns[%d].Role = %q, want %q", i, turns[i].Role, w)
		}
	}
}

// 不足两轮的会话不成立。
func TestChatRequiresTwoTurns(t *testing.T) {
	in := map[string]any{"messages": []any{
		map[string]any{"role": "user", "content": "独白"},
	}}
	out := Normalize(in, contract.ModeChat)
	if _, ok := out["conversations"]; ok {
		t.Fatalf("单轮会话不应通过: %v", out)
	}
	if _, ok := ToTrainExample(out, contract.ModeChat); ok {
		t.Fatal("单轮会话不应转换成功")
	}
}

func TestToTrainExampleQA(t *testing.T) {
	ex, ok := ToTrainExample(map[string]any{"问题": "Q", "回答": "A"}, contract.ModeQA)
	if !ok {
		t.Fatal("转换失败")
	}
	if len(ex.Messages) != 2 || ex.Messages[0].Role != "user" || ex.Messages[1].Content != "A" {
		t.Fatalf("ex = %+v", ex)
	}
}

func TestCollectOutputText(t *testing.T) {
	got := CollectOutputText(map[string]any{"question": "Q", "answer": "A"}, contract.ModeQA)
	if got != "Q\nA" {
		t.Fatalf("got %q", got)
	}
	got = CollectOutputText(map[string]any{"instruction": "I", "output": "O"}, contract.ModeStyle)
	if got != "O" {
		t.Fatalf("got %q", got)
	}
}
