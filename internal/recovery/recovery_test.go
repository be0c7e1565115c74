package recovery

import (
	"errors"
	"strings"
	"testing"

	"dsgen/pkg/contract"
)

func TestParseDirect(t *testing.T) {
	res, err := Parse(`{"question": "什么是缓存？", "answer": "临时存储层。"}`, contract.ModeQA)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Tier != "direct" {
		t.Fatalf("tier = %q, want direct", res.Tier)
	}
	if res.Data["question"] != "什么是缓存？" {
		t.Fatalf("data = %v", res.Data)
	}
}

// 围栏剥离是前置步骤：围栏内是合法 JSON 时仍应走 direct 层。
func TestParseFencedBlock(t *testing.T) {
	raw := "好的，以下是结果：\n```json\n{\"question\": \"Q\", \"answer\": \"A\"}\n```\n希望有帮助。"
	res, err := Parse(raw, contract.ModeQA)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Tier != "direct" {
		t.Fatalf("tier = %q, want direct", res.Tier)
	}
}

// 修复层：弯引号与字符串内裸换行。
func TestParseRepair(t *testing.T) {
	raw := "{“question”: “多行\n问题”, “answer”: “答案”}"
	res, err := Parse(raw, contract.ModeQA)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Tier != "repair" {
		t.Fatalf("tier = %q, want repair", res.Tier)
	}
	q, _ := res.Data["question"].(string)
	if !strings.Contains(q, "多行") || !strings.Contains(q, "问题") {
		t.Fatalf("question = %q", q)
	}
}

func TestRepairStringKeepsStructure(t *testing.T) {
	in := "{\"a\": \"x\ny\", \"b\": 1}\n"
	out := RepairString(in)
	// 字符串内的换行被转义，字符串外的保持原样
	if !strings.Contains(out, `x\ny`) {
		t.Fatalf("字符串内换行未转义: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("字符串外换行被误改: %q", out)
	}
}

// 平衡扫描层：对象淹没在散文里，按花括号配对捞出来。
func TestParseBalancedScan(t *testing.T) {
	raw := `模型先客套了一句，然后给出 {"question": "Q1", "answer": "A1"} 这样的结果。`
	res, err := Parse(raw, contract.ModeQA)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Tier != "balanced" {
		t.Fatalf("tier = %q, want balanced", res.Tier)
	}
	if res.Data["question"] != "Q1" {
		t.Fatalf("data = %v", res.Data)
	}
}

// 键值抢救层：引号缺失、尾部截断的键值对也要能抠出来。
func TestParseSalvageKV(t *testing.T) {
	raw := `{question: "什么是索引？", answer: "它加速查找`
	res, err := Parse(raw, contract.ModeQA)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	q, _ := res.Data["question"].(string)
	a, _ := res.Data["answer"].(string)
	if !strings.Contains(q, "索引") {
		t.Fatalf("question = %q (tier %s)", q, res.Tier)
	}
	if !strings.Contains(a, "加速查找") {
		t.Fatalf("answer = %q (tier %s)", a, res.Tier)
	}
}

// 中文键名与全角冒号同样可抢救。
func TestParseSalvageChineseKeys(t *testing.T) {
	raw := `问题：“如何备份”, 回答：“定期快照”`
	res, err := Parse(raw, contract.ModeQA)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	q, _ := res.Data["question"].(string)
	if !strings.Contains(q, "如何备份") {
		t.Fatalf("question = %q (tier %s)", q, res.Tier)
	}
}

// 小对象扫描层（chat）：外层对象被截断时从碎片对象重组会话。
func TestParseScanChatFragments(t *testing.T) {
	raw := `{"conversations": [{"role": "user", "content": "你好"}, {"role": "assistant", "content": "你好，请讲。"}`
	res, err := Parse(raw, contract.ModeChat)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	items, ok := res.Data["conversations"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("conversations = %v", res.Data)
	}
}

// 抢救层要吃完整原文：围栏里是残损 JSON、可用碎片在围栏之外时，
// 不能因只看剥围栏后的文本而漏掉。
func TestParseScanOutsideFence(t *testing.T) {
	raw := "```json\n{\"conversations\": [{\"role\": \"user\", \"cont\n```\n" +
		`补充的完整轮次：{"role": "user", "content": "你好"} 以及 {"role": "assistant", "content": "请讲。"}`
	res, err := Parse(raw, contract.ModeChat)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Tier != "scan" {
		t.Fatalf("tier = %q, want scan", res.Tier)
	}
	items, ok := res.Data["conversations"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("conversations = %v", res.Data)
	}
}

// 缺少 role 键的小对象不得被缝进会话。
func TestParseScanRequiresRoleKey(t *testing.T) {
	raw := `{"conversations": [{"text": "无角色碎片一"}, {"content": "无角色碎片二"}`
	if _, err := Parse(raw, contract.ModeChat); !errors.Is(err, contract.ErrNoRecovery) {
		t.Fatalf("err = %v, want ErrNoRecovery", err)
	}
}

func TestParseNoRecovery(t *testing.T) {
	_, err := Parse("完全没有结构化内容的纯散文。", contract.ModeQA)
	if !errors.Is(err, contract.ErrNoRecovery) {
		t.Fatalf("err = %v, want ErrNoRecovery", err)
	}
}

func TestBalancedSpans(t *testing.T) {
	spans := balancedSpans(`a {"x": {"y": 1}} b {"z": 2} c { broken`)
	if len(spans) != 2 {
		t.Fatalf("spans = %v", spans)
	}
	if spans[0] != `{"x": {"y": 1}}` || spans[1] != `{"z": 2}` {
		t.Fatalf("spans = %v", spans)
	}
}
