// Package generate 驱动逐段生成流程：装载段落、连通检查、顺序调用
// 生成端点、恢复与质检、增量落盘与收尾切分。
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"dsgen/internal/diag"
	"dsgen/internal/progress"
	"dsgen/internal/quality"
	"dsgen/internal/recovery"
	"dsgen/internal/schema"
	"dsgen/internal/store"
	"dsgen/pkg/contract"
)

// Options 一次生成运行的全部参数。
type Options struct {
	ProjectDir      string
	OutputDir       string // 为空时取 ProjectDir/dataset
	Model           string
	Mode            contract.Mode
	Resume          bool
	MinSegmentChars int
	Quality         quality.Config
}

func (o *Options) defaults() {
	if o.OutputDir == "" {
		o.OutputDir = filepath.Join(o.ProjectDir, "dataset")
	}
	if o.MinSegmentChars <= 0 {
		o.MinSegmentChars = 20
	}
	o.Quality = quality.New(o.Quality)
}

// Tracker 计数器：每次尝试恰好进入其中一类。
type Tracker struct {
	Success            int
	Failed             int
	SimilarityRejected int
}

// Runner 顺序执行生成流程。不并发：上游端点按请求串行推理，
// 顺序循环同时保证断点游标语义。
type Runner struct {
	opts   Options
	client contract.GenClient
	runID  string
	em     *progress.Emitter
	log    zerolog.Logger
}

// NewRunner 构造生成流程执行器。
func NewRunner(opts Options, client contract.GenClient, runID string, em *progress.Emitter, log zerolog.Logger) *Runner {
	opts.defaults()
	return &Runner{opts: opts, client: client, runID: runID, em: em, log: log}
}

// Run 执行完整流程。致命错误（无段落、连通失败、零收成）返回错误，
// 段级失败记入计数后继续。
func (r *Runner) Run(ctx context.Context) error {
	segsPath := filepath.Join(r.opts.ProjectDir, "cleaned", store.SegmentsFile)
	segs, err := store.LoadSegments(segsPath, r.opts.MinSegmentChars)
	if err != nil {
		r.em.Error("未找到段落文件，请先执行清洗", false)
		return fmt.Errorf("generate: %w", contract.ErrNoSegments)
	}
	if len(segs) == 0 {
		r.em.Error("没有可用的有效段落", false)
		return fmt.Errorf("generate: %w", contract.ErrNoSegments)
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("generate: 创建输出目录: %w", err)
	}
	ts, err := store.OpenTrain(r.opts.OutputDir, r.opts.Resume)
	if err != nil {
		return err
	}
	defer ts.Close()

	skip := 0
	if r.opts.Resume {
		skip = ts.Count()
		if skip > 0 {
			r.em.Log(fmt.Sprintf("检测到已有 %d 条进度，从第 %d 段继续", skip, skip+1))
		}
	}
	total := len(segs)
	r.em.Progress(skip, total, fmt.Sprintf("正在启动生成（模型 %s）", r.opts.Model))
	r.em.Log(fmt.Sprintf("连接模型 %s，模式 %s，共 %d 段，跳过 %d 段", r.opts.Model, r.opts.Mode, total, skip))
	r.log.Info().Str("model", r.opts.Model).Str("mode", string(r.opts.Mode)).
		Int("total", total).Int("skip", skip).Msg("生成开始")

	if err := r.connectCheck(ctx); err != nil {
		return err
	}

	tr := Tracker{Success: skip}
	for i := skip; i < total; i++ {
		if err := ctx.Err(); err != nil {
			r.reportInterrupted(&tr, total)
			return err
		}
		r.handleSegment(ctx, segs[i], i, total, ts, &tr)
		if err := ctx.Err(); err != nil {
			r.reportInterrupted(&tr, total)
			return err
		}
	}

	r.em.Log(fmt.Sprintf("生成完成：成功 %d，失败 %d，共 %d 段", tr.Success, tr.Failed, total))
	if tr.Success == 0 {
		r.em.Error(fmt.Sprintf("全部 %d 段均未产出有效数据", total), false)
		return fmt.Errorf("generate: %w", contract.ErrNoAccepted)
	}

	trainN, valN, err := store.FinalizeSplit(r.opts.OutputDir)
	if err != nil {
		return err
	}
	r.em.Log(fmt.Sprintf("已保存：训练集 %d 条，验证集 %d 条", trainN, valN))

	if err := store.WriteManifest(r.opts.OutputDir, store.DatasetManifest{
		RunID:       r.runID,
		Model:       r.opts.Model,
		Mode:        string(r.opts.Mode),
		GeneratedAt: diag.NowUTC(),
		Counts: map[string]int{
			"train_count":         trainN,
			"valid_count":         valN,
			"failed":              tr.Failed,
			"similarity_rejected": tr.SimilarityRejected,
			"total":               total,
		},
	}); err != nil {
		r.log.Warn().Err(err).Msg("写数据集清单失败")
	}

	r.em.Complete(map[string]int{
		"train_count": tr.Success,
		"failed":      tr.Failed,
		"total":       total,
	})
	return nil
}

// reportInterrupted 中断收尾：已收样本已逐条落盘，报告截至目前的计数。
func (r *Runner) reportInterrupted(tr *Tracker, total int) {
	r.em.Log(fmt.Sprintf("已中断：成功 %d，失败 %d，共 %d 段；已收样本均已落盘", tr.Success, tr.Failed, total))
	r.log.Info().Int("success", tr.Success).Int("failed", tr.Failed).Int("total", total).Msg("生成中断")
}

// connectCheck 先发一次试探请求确认端点与模型可用。
// 模型未知（404）单独标记，前端可据此提示模型路径配置问题。
func (r *Runner) connectCheck(ctx context.Context) error {
	resp, err := r.client.Invoke(ctx, contract.GenRequest{
		Model:           r.opts.Model,
		SystemPrompt:    "你好",
		UserMessage:     "请简短回复一句话。",
		Temperature:     0.7,
		MaxOutputTokens: 64,
	})
	if err != nil {
		r.em.Log(fmt.Sprintf("连接测试失败：%v", err))
		if errors.Is(err, contract.ErrModelUnknown) {
			r.em.Error(fmt.Sprintf("服务端不认识模型 %s，请检查模型存储路径配置", r.opts.Model), true)
		} else {
			r.em.Error(fmt.Sprintf("无法连接生成端点：%v", err), false)
		}
		return fmt.Errorf("generate: 连通检查: %w", err)
	}
	preview := oneLine(resp.Text(), 80)
	r.em.Log(fmt.Sprintf("连接正常，测试回复：%s（结束原因 %s）", preview, orUnknown(resp.DoneReason)))
	return nil
}

// handleSegment 处理单段：一次尝试恰好进入一个计数器。
// 网络类错误只记失败不中断，后续段照常尝试。
func (r *Runner) handleSegment(ctx context.Context, seg contract.Segment, i, total int, ts *store.TrainStore, tr *Tracker) {
	r.em.Log(fmt.Sprintf("[%d/%d] 段落：%s", i+1, total, oneLine(seg.Text, 80)))
	defer func() {
		r.em.Progress(i+1, total, fmt.Sprintf("成功 %d / 失败 %d", tr.Success, tr.Failed))
	}()

	resp, err := r.client.Invoke(ctx, contract.GenRequest{
		Model:           r.opts.Model,
		SystemPrompt:    SystemPrompt(r.opts.Mode),
		UserMessage:     BuildUserMessage(r.opts.Mode, seg.Text),
		Temperature:     temperatureFor(r.opts.Mode),
		MaxOutputTokens: numPredictFor(r.opts.Mode),
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		tr.Failed++
		r.em.Log(fmt.Sprintf("调用失败：%v", err))
		r.log.Warn().Err(err).Int("segment", i).Msg("端点调用失败")
		return
	}

	text := resp.Text()
	if text == "" {
		tr.Failed++
		r.em.Log(fmt.Sprintf("端点返回空内容（结束原因 %s）", orUnknown(resp.DoneReason)))
		return
	}
	r.em.Log(fmt.Sprintf("收到回复 %d 字：%s", len([]rune(text)), oneLine(text, 300)))

	res, err := recovery.Parse(text, r.opts.Mode)
	if err != nil {
		tr.Failed++
		r.em.Log(fmt.Sprintf("JSON 解析失败：%s", oneLine(text, 400)))
		return
	}
	data := schema.Normalize(res.Data, r.opts.Mode)

	// 脚本对齐闸：输出语言须跟随原文，小样本批次放行但记日志
	out := schema.CollectOutputText(data, r.opts.Mode)
	if ok, exempted := r.opts.Quality.ScriptAligned(seg.Text, out, total); !ok {
		tr.Failed++
		r.em.Log("输出语言与原文不一致，已丢弃")
		return
	} else if exempted {
		r.em.Log("输出语言与原文不一致，小批次保留")
	}

	// 风格模式防复述闸
	if r.opts.Mode == contract.ModeStyle {
		output, _ := data["output"].(string)
		if sim, bad := r.opts.Quality.TooSimilar(seg.Text, output); bad {
			tr.Failed++
			tr.SimilarityRejected++
			r.em.Log(fmt.Sprintf("风格样本与原文过于相似（%.0f%%），已丢弃", sim*100))
			return
		}
	}

	ex, ok := schema.ToTrainExample(data, r.opts.Mode)
	if !ok {
		tr.Failed++
		r.em.Log("解析结果字段不完整，已丢弃")
		return
	}
	if err := ts.Append(ex); err != nil {
		tr.Failed++
		r.em.Log(fmt.Sprintf("写入失败：%v", err))
		r.log.Error().Err(err).Msg("样本落盘失败")
		return
	}
	tr.Success++
	r.em.Log(fmt.Sprintf("第 %d 条入库（恢复层 %s）：%s", tr.Success, res.Tier, oneLine(firstValue(data), 60)))
}

func firstValue(data map[string]any) string {
	for _, keys := range [][]string{{"question"}, {"instruction"}, {"conversations"}} {
		for _, k := range keys {
			if v, ok := data[k]; ok {
				return fmt.Sprintf("%v", v)
			}
		}
	}
	for _, v := range data {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func oneLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	rs := []rune(s)
	if len(rs) > max {
		return string(rs[:max])
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
