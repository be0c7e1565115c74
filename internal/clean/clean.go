// Package clean 实现清洗阶段：编码识别、降噪、段落去重、最小长度过滤，
// 再交由 segment 切分，最终产出片段清单与清洗统计。
package clean

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dsgen/internal/progress"
	"dsgen/internal/segment"
	"dsgen/pkg/contract"
)

// Options: 清洗参数。
type Options struct {
	// MinParagraphChars: 段落最小字符数（去重后再过滤）。
	MinParagraphChars int `json:"min_paragraph_chars"`
	// Segment: 切分参数，透传给 segment 包。
	Segment segment.Options `json:"segment"`
}

func (o *Options) defaults() {
	if o.MinParagraphChars <= 0 {
		o.MinParagraphChars = 20
	}
}

// Stats: 清洗阶段累计统计，全部写入 complete 事件。
type Stats struct {
	TotalFiles    int
	RawChars      int
	CleanedChars  int
	Segments      int
	RemovedDupes  int
	RemovedShort  int
	RejectedFiles int
}

// Runner 驱动整个清洗阶段。所有状态均为运行局部，不跨运行共享。
type Runner struct {
	opts    Options
	runID   string
	emitter *progress.Emitter
	log     zerolog.Logger
}

func NewRunner(opts *Options, runID string, em *progress.Emitter, log zerolog.Logger) *Runner {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.defaults()
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Runner{opts: o, runID: runID, emitter: em, log: log}
}

// 由专用抽取器负责的扩展名：本阶段只认定边界（产出纯文本或失败），
// 未接入抽取器时发 warning 并跳过。
var extractorExts = map[string]struct{}{".docx": {}, ".pdf": {}}

// Run 清洗 projectDir/raw 下的全部文件并写出 cleaned/ 产物。
// 单文件失败（解码、读取）计数后继续；无输入文件为致命错误。
func (r *Runner) Run(ctx context.Context, projectDir string) (Stats, error) {
	var stats Stats

	rawDir := filepath.Join(projectDir, "raw")
	cleanedDir := filepath.Join(projectDir, "cleaned")
	if err := os.MkdirAll(cleanedDir, 0o755); err != nil {
		r.emitter.Error(fmt.Sprintf("无法创建输出目录: %v", err), false)
		return stats, err
	}

	entries, err := os.ReadDir(rawDir)
	if err != nil {
		r.emitter.Error(fmt.Sprintf("无法读取原始目录 %s: %v", rawDir, err), false)
		return stats, fmt.Errorf("raw dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		r.emitter.Error(fmt.Sprintf("原始目录 %s 中没有任何文件", rawDir), false)
		return stats, fmt.Errorf("%w: no raw files in %s", contract.ErrInvalidInput, rawDir)
	}

	stats.TotalFiles = len(names)
	r.emitter.Progress(0, len(names), fmt.Sprintf("cleaning %d files", len(names)))

	var allSegments []contract.Segment
	var rawManifest []rawFileInfo

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		path := filepath.Join(rawDir, name)
		rawManifest = append(rawManifest, statFile(path, name))

		segs, fstat, err := r.cleanFile(path, name)
		if err != nil {
			stats.RejectedFiles++
			r.emitter.Warning(fmt.Sprintf("skipped %s: %v", name, err))
			r.log.Warn().Str("comp", "clean").Str("file", name).Err(err).Msg("file rejected")
			r.emitter.Progress(i+1, len(names), fmt.Sprintf("skipped %s", name))
			continue
		}
		stats.RawChars += fstat.rawChars
		stats.CleanedChars += fstat.cleanedChars
		stats.RemovedDupes += fstat.removedDupes
		stats.RemovedShort += fstat.removedShort
		stats.Segments += len(segs)
		allSegments = append(allSegments, segs...)

		r.emitter.Progress(i+1, len(names), fmt.Sprintf("cleaned %s: %d segments", name, len(segs)))
	}

	if err := r.writeOutputs(cleanedDir, allSegments, rawManifest, stats.Segments); err != nil {
		r.emitter.Error(fmt.Sprintf("写清洗产物失败: %v", err), false)
		return stats, err
	}

	r.emitter.Complete(map[string]int{
		"total_files":   stats.TotalFiles,
		"raw_chars":     stats.RawChars,
		"cleaned_chars": stats.CleanedChars,
		"segments":      stats.Segments,
		"removed_dupes": stats.RemovedDupes,
		"removed_short": stats.RemovedShort,
	})
	return stats, nil
}

type fileStats struct {
	rawChars     int
	cleanedChars int
	removedDupes int
	removedShort int
}

// cleanFile 清洗单个文件：解码 → 降噪 → 去重 → 过滤 → 切分。
func (r *Runner) cleanFile(path, name string) ([]contract.Segment, fileStats, error) {
	var fstat fileStats
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := extractorExts[ext]; ok {
		return nil, fstat, fmt.Errorf("no extractor wired for %s", ext)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fstat, err
	}
	text, encName, err := DecodeBytes(raw)
	if err != nil {
		return nil, fstat, fmt.Errorf("decode: %w", err)
	}
	r.log.Debug().Str("comp", "clean").Str("file", name).Str("encoding", encName).Msg("decoded")

	fstat.rawChars = len([]rune(text))
	text = fixEncoding(text)
	text = RemoveNoise(text)

	paragraphs := strings.Split(text, "\n\n")
	paragraphs, fstat.removedDupes = DedupParagraphs(paragraphs)
	paragraphs, fstat.removedShort = FilterShort(paragraphs, r.opts.MinParagraphChars)
	if len(paragraphs) == 0 {
		return nil, fstat, nil
	}

	cleaned := strings.Join(paragraphs, "\n\n")
	strategy, pieces := segment.Split(cleaned, ext, &r.opts.Segment)

	segs := make([]contract.Segment, 0, len(pieces))
	for _, p := range pieces {
		fstat.cleanedChars += len([]rune(p))
		segs = append(segs, contract.Segment{
			Text:       p,
			Strategy:   string(strategy),
			SourceFile: name,
		})
	}
	return segs, fstat, nil
}

type rawFileInfo struct {
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedTS int64  `json:"modified_ts"`
}

func statFile(path, name string) rawFileInfo {
	info := rawFileInfo{Name: name}
	if st, err := os.Stat(path); err == nil {
		info.SizeBytes = st.Size()
		info.ModifiedTS = st.ModTime().Unix()
	}
	return info
}

// writeOutputs 写出三件产物：合并文本、片段清单（行序即生成顺序）、清单元数据。
func (r *Runner) writeOutputs(dir string, segs []contract.Segment, raws []rawFileInfo, total int) error {
	var joined strings.Builder
	for i, s := range segs {
		if i > 0 {
			joined.WriteString("\n\n---\n\n")
		}
		joined.WriteString(s.Text)
	}
	if err := os.WriteFile(filepath.Join(dir, "cleaned_all.txt"), []byte(joined.String()), 0o644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "segments.jsonl"))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for i := range segs {
		segs[i].ID = i
		if err := enc.Encode(&segs[i]); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}

	manifest := struct {
		RunID         string        `json:"run_id"`
		GeneratedAt   int64         `json:"generated_at"`
		RawFiles      []rawFileInfo `json:"raw_files"`
		TotalSegments int           `json:"total_segments"`
	}{r.runID, time.Now().Unix(), raws, total}
	b, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "segments_manifest.json"), b, 0o644)
}
