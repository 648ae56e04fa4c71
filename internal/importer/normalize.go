package importer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeName 名称归一化，用于与用户表/公共代码表匹配
// 去空白、去括号，再去掉末尾单独的 T（顾问名后缀写法，如 "홍길동T"）
func NormalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsSpace(r):
		case r == '(' || r == ')' || r == '（' || r == '）':
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()

	if strings.HasSuffix(out, "T") && len(out) > 1 {
		prev, _ := utf8.DecodeLastRuneInString(out[:len(out)-1])
		if !isASCIILetter(prev) {
			out = out[:len(out)-1]
		}
	}
	return out
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
