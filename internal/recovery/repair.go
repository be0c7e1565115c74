package recovery

import "strings"

// 中文弯引号到 ASCII 引号的替换表
var quoteRepl = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", `'`, "’", `'`,
)

// RepairString 修复模型输出里常见的 JSON 语法问题：
//   - 弯引号替换为直引号
//   - 字符串字面量内部的裸换行/制表符转义为 \n / \t
//
// 约束：逐字符扫描维护 in_string/escape 状态，字符串外的空白不动。
func RepairString(s string) string {
	s = quoteRepl.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escape := false
	for _, ch := range s {
		if escape {
			b.WriteRune(ch)
			escape = false
			continue
		}
		switch {
		case ch == '\\':
			b.WriteRune(ch)
			escape = true
		case ch == '"':
			inString = !inString
			b.WriteRune(ch)
		case inString && ch == '\n':
			b.WriteString(`\n`)
		case inString && ch == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// balancedSpans 扫描文本返回所有最外层花括号配对的子串。
// 深度计数：0→1 记起点，回到 0 记终点并重置。不配对的残段被忽略。
func balancedSpans(s string) []string {
	var spans []string
	depth := 0
	start := -1
	for i, ch := range s {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}
