package resolve

import "strings"

// similarity 返回两个标题的归一化相似度 [0,1]（忽略大小写）。
// 1 - 编辑距离/较长串长度；相同串恒为 1。
func similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein 计算编辑距离（插入/删除/替换各记 1），滚动单行 DP。
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cur := row[j]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}
	return row[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// bestMatch 在候选集中找相似度最高且不低于 cutoff 的标题。
// 并列时先出现的候选胜出（枚举顺序即库内顺序，保持确定性）。
func bestMatch(target string, candidates []string, cutoff float64) (string, bool) {
	best := ""
	bestScore := 0.0
	found := false
	for _, c := range candidates {
		s := similarity(target, c)
		if s < cutoff {
			continue
		}
		if !found || s > bestScore {
			best = c
			bestScore = s
			found = true
		}
	}
	return best, found
}
