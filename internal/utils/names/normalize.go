// Package names 姓名规范化与编辑距离工具。所有比较只用规范化后的键，原始姓名另存用于展示
package names

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// й 在 NFD 下会拆成 и + 短音符，去掉附加符号会把两个不同字母合并，所以先换成私用区字符保护起来
const shortIPlaceholder = "\ue000"

// Normalize 小写、折叠 ё->е 及拉丁附加符号、合并空白、去首尾空格。纯函数，空输入返回空
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "й", shortIPlaceholder)
	folded, _, err := transform.String(foldMarks(), s)
	if err == nil {
		s = folded
	}
	s = strings.ReplaceAll(s, shortIPlaceholder, "й")
	// ё 已被上面的折叠处理；这里兜住未分解的兼容写法
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}

// transform.Transformer 有状态，每次新建
func foldMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Tokens 返回前两个词（姓/名），不足时用空串补齐
func Tokens(normalized string) (first, second string) {
	parts := strings.Fields(normalized)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// Transliterate 规范化名的拉丁转写，用于跨文字（кириллица/latin）比对
func Transliterate(normalized string) string {
	if normalized == "" {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToLower(unidecode.Unidecode(normalized))), " ")
}

// Compact 去掉所有空白，用来识别只差一个词边界的写法
func Compact(normalized string) string {
	return strings.Join(strings.Fields(normalized), "")
}
