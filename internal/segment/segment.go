// Package segment 将清洗后的文本切分为接近目标字符预算的有序片段。
// 策略按声明的内容类别（扩展名）选择，不做内容嗅探；任一策略产出为空时
// 无条件回落到定长窗口策略（保证非空输入必有产出的终端策略）。
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Strategy: 切分策略标签，随片段写入清单，仅用于观测。
type Strategy string

const (
	StrategyMarkdown  Strategy = "markdown_recursive"
	StrategyCode      Strategy = "code_aware"
	StrategyFixed     Strategy = "fixed_length"
	StrategyParagraph Strategy = "paragraph_balanced"
)

// Options: 切分参数。零值字段采用默认。
type Options struct {
	// MaxTokens: 目标 token 预算；字符预算由 CharsPerToken 换算。
	MaxTokens int `json:"max_tokens"`
	// CharsPerToken: 经验换算系数（混合中英文语料下约 2.5 字符/词元）。
	CharsPerToken float64 `json:"chars_per_token"`
	// OverlapRatio: 定长窗口策略相邻窗口的重叠比例。
	OverlapRatio float64 `json:"overlap_ratio"`
	// MinSegmentChars: 片段最小字符数，低于该值的产出被丢弃。
	MinSegmentChars int `json:"min_segment_chars"`
}

func (o *Options) defaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1024
	}
	if o.CharsPerToken <= 0 {
		o.CharsPerToken = 2.5
	}
	if o.OverlapRatio <= 0 || o.OverlapRatio >= 1 {
		o.OverlapRatio = 0.12
	}
	if o.MinSegmentChars <= 0 {
		o.MinSegmentChars = 20
	}
}

func (o *Options) maxChars() int {
	return int(float64(o.MaxTokens) * o.CharsPerToken)
}

// 扩展名 → 策略映射表。未命中者归入段落均衡策略。
var (
	markdownExts = map[string]struct{}{
		".md": {}, ".markdown": {},
	}
	codeExts = map[string]struct{}{
		".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".java": {},
		".c": {}, ".cpp": {}, ".h": {}, ".hpp": {}, ".go": {}, ".rs": {},
		".swift": {}, ".kt": {}, ".sql": {}, ".sh": {}, ".bash": {}, ".zsh": {},
	}
	structuredExts = map[string]struct{}{
		".json": {}, ".jsonl": {}, ".csv": {}, ".tsv": {}, ".xml": {},
		".yaml": {}, ".yml": {},
	}
)

// ForExtension 返回扩展名（含点，大小写不敏感）对应的策略。
func ForExtension(ext string) Strategy {
	e := strings.ToLower(ext)
	if _, ok := markdownExts[e]; ok {
		return StrategyMarkdown
	}
	if _, ok := codeExts[e]; ok {
		return StrategyCode
	}
	if _, ok := structuredExts[e]; ok {
		return StrategyFixed
	}
	return StrategyParagraph
}

// Split 按扩展名选择策略切分文本，返回实际使用的策略与片段序列。
// 约束：任何 UTF-8 输入都不报错；空输入产出空序列；所选策略产出为空时
// 回落定长窗口策略。
func Split(text, ext string, opts *Options) (Strategy, []string) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.defaults()

	strategy := ForExtension(ext)
	var segs []string
	switch strategy {
	case StrategyMarkdown:
		segs = splitMarkdown(text, &o)
	case StrategyCode:
		segs = splitCode(text, &o)
	case StrategyFixed:
		segs = splitFixed(text, &o)
	default:
		segs = packUnits(blankLineUnits(text), &o)
	}

	if len(segs) == 0 {
		strategy = StrategyFixed
		segs = splitFixed(text, &o)
	}
	return strategy, filterMin(segs, o.MinSegmentChars)
}

// 标题标记：#..###### 或 CJK 编号章节（第N章/节/部分）。
var headingRe = regexp.MustCompile(`^\s*(#{1,6}\s+\S+|第[一二三四五六七八九十\d]+[章节部分])`)

// splitMarkdown 优先按标题切出单元；无标题时退回空行段落，再统一打包。
func splitMarkdown(text string, o *Options) []string {
	var units []string
	var buf []string
	for _, line := range strings.Split(text, "\n") {
		if headingRe.MatchString(line) && len(buf) > 0 {
			units = append(units, strings.TrimSpace(strings.Join(buf, "\n")))
			buf = []string{line}
		} else {
			buf = append(buf, line)
		}
	}
	if len(buf) > 0 {
		units = append(units, strings.TrimSpace(strings.Join(buf, "\n")))
	}
	// 剔除纯空单元；全部为空时以段落为单元
	nonEmpty := units[:0]
	for _, u := range units {
		if u != "" {
			nonEmpty = append(nonEmpty, u)
		}
	}
	if len(nonEmpty) == 0 {
		nonEmpty = blankLineUnits(text)
	}
	return packUnits(nonEmpty, o)
}

var fenceRe = regexp.MustCompile("(?s)```.*?```")

// splitCode 保持围栏代码块原子（绝不中途切开），围栏之间的散文按空行再切单元。
func splitCode(text string, o *Options) []string {
	var units []string
	last := 0
	for _, loc := range fenceRe.FindAllStringIndex(text, -1) {
		if prose := text[last:loc[0]]; strings.TrimSpace(prose) != "" {
			units = append(units, blankLineUnits(prose)...)
		}
		units = append(units, strings.TrimSpace(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	if tail := text[last:]; strings.TrimSpace(tail) != "" {
		units = append(units, blankLineUnits(tail)...)
	}
	return packUnits(units, o)
}

// splitFixed 对原始字符流施加定长滑动窗口；结构化内容没有可靠的段落
// 边界，相邻窗口保留约 12% 的重叠以免在窗口缝隙处丢失上下文。
// 这是保证性的终端策略：非空输入必有产出。
func splitFixed(text string, o *Options) []string {
	content := []rune(strings.TrimSpace(text))
	if len(content) == 0 {
		return nil
	}
	maxChars := o.maxChars()
	step := int(float64(maxChars) * (1 - o.OverlapRatio))
	if step < 200 {
		step = 200
	}
	var segs []string
	start := 0
	for start < len(content) {
		end := start + maxChars
		if end > len(content) {
			end = len(content)
		}
		if piece := strings.TrimSpace(string(content[start:end])); piece != "" {
			segs = append(segs, piece)
		}
		if start+maxChars >= len(content) {
			break
		}
		start += step
	}
	return segs
}

var blankLinesRe = regexp.MustCompile(`\n{2,}`)

// blankLineUnits 按空行切出非空段落单元。
func blankLineUnits(text string) []string {
	var units []string
	for _, p := range blankLinesRe.Split(text, -1) {
		if t := strings.TrimSpace(p); t != "" {
			units = append(units, t)
		}
	}
	return units
}

// packUnits 将单元累积进缓冲：当再加入下一单元将超出字符预算时，先冲刷
// 缓冲为一个完成片段，再以该单元开启新缓冲；否则以空行分隔追加。
// 单元自身超预算时绝不截断——轮到它时整体作为一个超长片段冲刷。
// 长度以 rune 计（与字符预算的 CJK 语义一致）。
func packUnits(units []string, o *Options) []string {
	maxChars := o.maxChars()
	var segs []string
	var cur strings.Builder
	curLen := 0

	for _, unit := range units {
		part := strings.TrimSpace(unit)
		if part == "" {
			continue
		}
		n := utf8.RuneCountInString(part)
		if curLen == 0 {
			cur.WriteString(part)
			curLen = n
			continue
		}
		if curLen+n+2 > maxChars {
			segs = append(segs, strings.TrimSpace(cur.String()))
			cur.Reset()
			cur.WriteString(part)
			curLen = n
		} else {
			cur.WriteString("\n\n")
			cur.WriteString(part)
			curLen += n + 2
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		segs = append(segs, s)
	}
	return segs
}

func filterMin(segs []string, min int) []string {
	out := segs[:0]
	for _, s := range segs {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) >= min {
			out = append(out, s)
		}
	}
	return out
}
