package clean

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// 候选字符编码（有序）：首个无错解码者胜出。
// latin-1 位于末位且永不失败，作为兜底；GBK 覆盖 GB2312 的常见场景。
var candidateEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", nil}, // 以 utf8.Valid 严格校验
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"big5", traditionalchinese.Big5},
	{"latin-1", charmap.ISO8859_1},
}

// DecodeBytes 逐一尝试候选编码，返回解码文本与命中的编码名。
// 全部失败时返回错误（文档被拒绝，计数后继续处理其余文件）。
func DecodeBytes(b []byte) (string, string, error) {
	for _, cand := range candidateEncodings {
		if cand.enc == nil {
			if utf8.Valid(b) {
				return string(b), cand.name, nil
			}
			continue
		}
		out, err := cand.enc.NewDecoder().Bytes(b)
		// 这些解码器遇到无法映射的字节不报错，而是替换为 U+FFFD；
		// 输出含替换符即判该候选不命中，让后续编码有机会尝试。
		// latin-1 对任何字节都有映射，永不出现替换符，保持兜底语义。
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return string(out), cand.name, nil
	}
	return "", "", fmt.Errorf("no candidate encoding decodes %d bytes", len(b))
}

// fixEncoding 清除解码后残留的非法序列（替换为 U+FFFD），保证下游均为合法 UTF-8。
func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
