// Package quality 提供生成样本的质量闸门：脚本对齐检查与风格模式的
// 原文复述检查。阈值全部可配。
package quality

import "strings"

// Script 为文本的主导文字类别。
type Script string

const (
	ScriptCJK   Script = "cjk"
	ScriptLatin Script = "latin"
	ScriptMixed Script = "mixed"
)

// Config 质量闸门阈值。
type Config struct {
	// SimilarityMax 风格模式下输出与原段的二元组相似度上限，超过即拒收
	SimilarityMax float64 `json:"similarity_max"`
	// CJKMin 判定 CJK 主导所需的最少汉字数
	CJKMin int `json:"cjk_min"`
	// LatinMin 判定拉丁主导所需的最少字母数
	LatinMin int `json:"latin_min"`
	// SmallBatchMax 段总数不超过此值时脚本不齐仍放行（小样本豁免）
	SmallBatchMax int `json:"small_batch_max"`
}

func (c *Config) defaults() {
	if c.SimilarityMax <= 0 {
		c.SimilarityMax = 0.6
	}
	if c.CJKMin <= 0 {
		c.CJKMin = 20
	}
	if c.LatinMin <= 0 {
		c.LatinMin = 40
	}
	if c.SmallBatchMax <= 0 {
		c.SmallBatchMax = 3
	}
}

// New 返回补齐默认值后的配置。
func New(c Config) Config {
	c.defaults()
	return c
}

// DominantScript 统计文本主导文字：
// 汉字数达阈值且超拉丁两倍判 CJK；拉丁数达阈值且超汉字两倍判拉丁；
// 其余判混合。
func (c Config) DominantScript(text string) Script {
	cjk, latin := 0, 0
	for _, r := range text {
		switch {
		case r >= 0x4e00 && r <= 0x9fff:
			cjk++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			latin++
		}
	}
	switch {
	case cjk >= c.CJKMin && cjk > 2*latin:
		return ScriptCJK
	case latin >= c.LatinMin && latin > 2*cjk:
		return ScriptLatin
	default:
		return ScriptMixed
	}
}

// ScriptAligned 判断输出脚本是否与原段对齐。
// 任一侧为混合视为对齐；totalSegments 不超过小样本上限时强制放行，
// exempted 置真供调用方记日志。
func (c Config) ScriptAligned(source, output string, totalSegments int) (ok, exempted bool) {
	ss := c.DominantScript(source)
	os := c.DominantScript(output)
	if ss == ScriptMixed || os == ScriptMixed || ss == os {
		return true, false
	}
	if totalSegments <= c.SmallBatchMax {
		return true, true
	}
	return false, false
}

// BigramSimilarity 计算去空白后两文本字符二元组集合的 Jaccard 相似度。
// 长度不足 2 的文本以整体为单元素集合参与比较。
func BigramSimilarity(a, b string) float64 {
	sa := bigrams(a)
	sb := bigrams(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for g := range sa {
		if _, ok := sb[g]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func bigrams(s string) map[string]struct{} {
	s = strings.NewReplacer(" ", "", "\n", "", "\t", "", "\r", "").Replace(s)
	rs := []rune(s)
	set := make(map[string]struct{})
	if len(rs) <= 1 {
		if len(rs) == 1 || s != "" {
			set[s] = struct{}{}
		}
		return set
	}
	for i := 0; i+1 < len(rs); i++ {
		set[string(rs[i:i+2])] = struct{}{}
	}
	return set
}

// TooSimilar 风格模式闸门：输出与原段相似度超上限即判复述。
func (c Config) TooSimilar(source, output string) (float64, bool) {
	sim := BigramSimilarity(source, output)
	return sim, sim > c.SimilarityMax
}
