package names

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Threshold 随长度放宽的最大编辑距离。固定阈值会让短名字过度匹配，所以短名字容错更少
func Threshold(normalized string) int {
	n := utf8.RuneCountInString(normalized)
	switch {
	case n <= 8:
		return 2
	case n <= 14:
		return 3
	case n <= 22:
		return 4
	default:
		return 5
	}
}

// Distance 按 rune 计算的编辑距离
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Comparison 两个规范化姓名的逐词比对结果
type Comparison struct {
	Distance            int
	FirstTokenDistance  int
	SecondTokenDistance int
	BoundaryShift       bool // 去掉空白后完全相同，只是词边界挪了一个字符
}

// Compare 比较输入名与候选名（都应是 Normalize 的结果）
func Compare(input, candidate string) Comparison {
	f1, s1 := Tokens(input)
	f2, s2 := Tokens(candidate)
	return Comparison{
		Distance:            Distance(input, candidate),
		FirstTokenDistance:  Distance(f1, f2),
		SecondTokenDistance: Distance(s1, s2),
		BoundaryShift:       Compact(input) == Compact(candidate),
	}
}

// Plausible 全名距离在阈值内，并且差异集中在一个词里（两词距离都 <= 1），或者能用词边界移动解释。
// 两个不相干的人全名距离可能很小但每个词都不同，这里把这种情况挡掉
func (c Comparison) Plausible(threshold int) bool {
	if c.Distance > threshold {
		return false
	}
	if c.FirstTokenDistance <= 1 && c.SecondTokenDistance <= 1 {
		return true
	}
	return c.BoundaryShift
}

// Score 排序分，越小越像
func (c Comparison) Score() int {
	return 10*c.Distance + 3*c.FirstTokenDistance + 3*c.SecondTokenDistance
}
