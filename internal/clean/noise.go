package clean

import (
	"crypto/sha256"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	urlRe       = regexp.MustCompile(`https?://\S+`)
	hspaceRe    = regexp.MustCompile(`[ \t]+`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// RemoveNoise 按固定顺序清除常见噪声：
// 标签 → URL → 横向空白折叠 → 连续空行折叠（3+ → 2）→ 逐行裁剪。
func RemoveNoise(text string) string {
	text = tagRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")
	text = hspaceRe.ReplaceAllString(text, " ")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// DedupParagraphs 以裁剪后文本的内容哈希为键去除完全重复段落，
// 原始顺序保留；返回幸存段落与被移除的重复计数。
func DedupParagraphs(paragraphs []string) ([]string, int) {
	seen := make(map[[sha256.Size]byte]struct{}, len(paragraphs))
	unique := make([]string, 0, len(paragraphs))
	removed := 0
	for _, p := range paragraphs {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		h := sha256.Sum256([]byte(t))
		if _, ok := seen[h]; ok {
			removed++
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, p)
	}
	return unique, removed
}

// FilterShort 丢弃裁剪后长度（rune 计）低于 minChars 的段落，返回被移除计数。
func FilterShort(paragraphs []string, minChars int) ([]string, int) {
	kept := paragraphs[:0]
	removed := 0
	for _, p := range paragraphs {
		if utf8.RuneCountInString(strings.TrimSpace(p)) >= minChars {
			kept = append(kept, p)
		} else {
			removed++
		}
	}
	return kept, removed
}
