package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dsgen/internal/diag"
	"dsgen/internal/progress"
	"dsgen/internal/store"
	"dsgen/pkg/contract"
)

// fakeClient 按调用序返回预置结果；首次调用消耗于连通检查。
type fakeClient struct {
	steps []func() (contract.GenResponse, error)
	calls int
	reqs  []contract.GenRequest
}

func (f *fakeClient) Invoke(_ context.Context, req contract.GenRequest) (contract.GenResponse, error) {
	f.reqs = append(f.reqs, req)
	i := f.calls
	f.calls++
	if i < len(f.steps) {
		return f.steps[i]()
	}
	return contract.GenResponse{Content: `{"question": "Q", "answer": "A"}`, DoneReason: "stop"}, nil
}

func okStep(body string) func() (contract.GenResponse, error) {
	return func() (contract.GenResponse, error) {
		return contract.GenResponse{Content: body, DoneReason: "stop"}, nil
	}
}

func errStep(err error) func() (contract.GenResponse, error) {
	return func() (contract.GenResponse, error) { return contract.GenResponse{}, err }
}

// 准备项目目录：cleaned/segments.jsonl 写入 n 个合格段落。
func setupProject(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	cleaned := filepath.Join(dir, "cleaned")
	if err := os.MkdirAll(cleaned, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		seg := contract.Segment{ID: i + 1, Text: fmt.Sprintf("第 %d 段：", i+1) + strings.Repeat("正文内容铺够长度。", 5), Strategy: "paragraph_balanced"}
		line, _ := json.Marshal(seg)
		b.Write(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(cleaned, store.SegmentsFile), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("写段落: %v", err)
	}
	return dir
}

func newTestRunner(t *testing.T, projectDir string, client contract.GenClient, resume bool, out *bytes.Buffer) *Runner {
	t.Helper()
	em := progress.NewEmitter(out)
	logger := diag.NewLoggerTo(io.Discard, "test", "error")
	return NewRunner(Options{
		ProjectDir: projectDir,
		Mode:       contract.ModeQA,
		Model:      "test-model",
		Resume:     resume,
	}, client, "run-test", em, logger)
}

// 解析进度协议行，返回指定类型的事件。
func eventsOf(t *testing.T, out *bytes.Buffer, typ string) []map[string]any {
	t.Helper()
	var evs []map[string]any
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("协议行不是 JSON: %q", line)
		}
		if m["type"] == typ {
			evs = append(evs, m)
		}
	}
	return evs
}

func TestRunHappyPath(t *testing.T) {
	dir := setupProject(t, 3)
	fc := &fakeClient{}
	var out bytes.Buffer
	r := newTestRunner(t, dir, fc, false, &out)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 1 次连通检查 + 3 段
	if fc.calls != 4 {
		t.Fatalf("calls = %d, want 4", fc.calls)
	}
	comps := eventsOf(t, &out, "complete")
	if len(comps) != 1 {
		t.Fatalf("complete 事件数 = %d", len(comps))
	}
	if comps[0]["train_count"].(float64) != 3 || comps[0]["failed"].(float64) != 0 {
		t.Fatalf("complete = %v", comps[0])
	}
	// 9:1 切分：3 条 → 2/1
	trainData, err := os.ReadFile(filepath.Join(dir, "dataset", store.TrainFile))
	if err != nil {
		t.Fatalf("读 train: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(trainData)), "\n")); n != 2 {
		t.Fatalf("train 行数 = %d, want 2", n)
	}
	validData, err := os.ReadFile(filepath.Join(dir, "dataset", store.ValFile))
	if err != nil {
		t.Fatalf("读 valid: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(validData)), "\n")); n != 1 {
		t.Fatalf("valid 行数 = %d, want 1", n)
	}
}

// 断点续跑：已有 N 条则只处理 [N, total) 的段。
func TestRunResumeSkipsDone(t *testing.T) {
	dir := setupProject(t, 4)
	dataset := filepath.Join(dir, "dataset")
	if err := os.MkdirAll(dataset, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	done := `{"messages": [{"role": "user", "content": "旧"}, {"role": "assistant", "content": "样本"}]}` + "\n"
	if err := os.WriteFile(filepath.Join(dataset, store.TrainFile), []byte(done+done), 0o644); err != nil {
		t.Fatalf("预置进度: %v", err)
	}
	fc := &fakeClient{}
	var out bytes.Buffer
	r := newTestRunner(t, dir, fc, true, &out)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 1 连通 + 剩余 2 段
	if fc.calls != 3 {
		t.Fatalf("calls = %d, want 3", fc.calls)
	}
	// 已跳过的段不应出现在请求里
	for _, req := range fc.reqs[1:] {
		if strings.Contains(req.UserMessage, "第 1 段") || strings.Contains(req.UserMessage, "第 2 段") {
			t.Fatalf("已完成的段被重复处理: %q", req.UserMessage)
		}
	}
}

// 单段失败只计数，后续段继续。
func TestRunSegmentFailureContinues(t *testing.T) {
	dir := setupProject(t, 3)
	fc := &fakeClient{steps: []func() (contract.GenResponse, error){
		okStep("连接正常"),
		errStep(errors.New("connection refused")),
		okStep(`{"question": "Q2", "answer": "A2"}`),
		okStep("不是 JSON 的散文回复"),
	}}
	var out bytes.Buffer
	r := newTestRunner(t, dir, fc, false, &out)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	comps := eventsOf(t, &out, "complete")
	if comps[0]["train_count"].(float64) != 1 || comps[0]["failed"].(float64) != 2 {
		t.Fatalf("complete = %v", comps[0])
	}
}

// 全军覆没：零收成是致命错误，不产出数据集。
func TestRunZeroAccepted(t *testing.T) {
	dir := setupProject(t, 2)
	fc := &fakeClient{steps: []func() (contract.GenResponse, error){
		okStep("连接正常"),
		okStep("散文一"),
		okStep("散文二"),
	}}
	var out bytes.Buffer
	r := newTestRunner(t, dir, fc, false, &out)
	err := r.Run(context.Background())
	if !errors.Is(err, contract.ErrNoAccepted) {
		t.Fatalf("err = %v, want ErrNoAccepted", err)
	}
	if evs := eventsOf(t, &out, "error"); len(evs) == 0 {
		t.Fatal("缺少 error 事件")
	}
}

// 连通检查 404：发专用路径不匹配标记并终止。
func TestRunConnectCheck404(t *testing.T) {
	dir := setupProject(t, 2)
	fc := &fakeClient{steps: []func() (contract.GenResponse, error){
		errStep(fmt.Errorf("ollama upstream 404: %w", contract.ErrModelUnknown)),
	}}
	var out bytes.Buffer
	r := newTestRunner(t, dir, fc, false, &out)
	err := r.Run(context.Background())
	if !errors.Is(err, contract.ErrModelUnknown) {
		t.Fatalf("err = %v, want ErrModelUnknown", err)
	}
	evs := eventsOf(t, &out, "error")
	if len(evs) != 1 {
		t.Fatalf("error 事件数 = %d", len(evs))
	}
	if evs[0]["is_path_mismatch"] != true {
		t.Fatalf("缺少路径不匹配标记: %v", evs[0])
	}
	if fc.calls != 1 {
		t.Fatalf("连通失败后不应再调用端点, calls = %d", fc.calls)
	}
}

// 取消后返回 ctx 错误，并在收尾报告已收计数（样本已逐条落盘）。
func TestRunCancelReportsCounts(t *testing.T) {
	dir := setupProject(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeClient{steps: []func() (contract.GenResponse, error){
		okStep("连接正常"),
		okStep(`{"question": "Q1", "answer": "A1"}`),
		func() (contract.GenResponse, error) {
			cancel()
			return contract.GenResponse{Content: `{"question": "Q2", "answer": "A2"}`, DoneReason: "stop"}, nil
		},
	}}
	var out bytes.Buffer
	r := newTestRunner(t, dir, fc, false, &out)
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	found := false
	for _, ev := range eventsOf(t, &out, "log") {
		if msg, _ := ev["message"].(string); strings.Contains(msg, "已中断") {
			found = true
		}
	}
	if !found {
		t.Fatal("缺少中断收尾日志")
	}
	// 取消前接受的样本已在 train.jsonl 里
	data, err := os.ReadFile(filepath.Join(dir, "dataset", store.TrainFile))
	if err != nil {
		t.Fatalf("读 train: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n < 1 {
		t.Fatalf("train 行数 = %d", n)
	}
}

// 无段落文件是致命错误。
func TestRunNoSegments(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := newTestRunner(t, dir, &fakeClient{}, false, &out)
	err := r.Run(context.Background())
	if !errors.Is(err, contract.ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}
}

// 采样参数按模式取值：style 温度更高、对话类输出预算更大。
func TestModeSamplingParams(t *testing.T) {
	if temperatureFor(contract.ModeStyle) != 0.9 || temperatureFor(contract.ModeQA) != 0.7 {
		t.Fatal("温度取值不对")
	}
	if numPredictFor(contract.ModeChat) != 4096 || numPredictFor(contract.ModeInstruct) != 2048 {
		t.Fatal("输出预算取值不对")
	}
}

// 用户消息按符文截断并带语言约束后缀。
func TestBuildUserMessage(t *testing.T) {
	long := strings.Repeat("超长段落。", 1000)
	msg := BuildUserMessage(contract.ModeQA, long)
	if !strings.Contains(msg, keepLanguageSuffix) {
		t.Fatal("缺少语言约束后缀")
	}
	if len([]rune(msg)) > previewRunes+200 {
		t.Fatalf("截断失效，长度 %d", len([]rune(msg)))
	}
}
