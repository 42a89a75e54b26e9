// Package services implements the translation engine: feature
// extraction, value classification, multi-strategy inference, the
// learning controller, and schema discovery with its audit queue.
package services

// levenshteinDistance calculates the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}

// lcsLength returns the length of the longest common subsequence.
func lcsLength(s1, s2 string) int {
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] == s2[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	return prev[len(s2)]
}

// similarityRatio scores two strings in [0,1] as twice the matched
// character count over the combined length, the same measure difflib's
// SequenceMatcher reports. Identical strings score 1.
func similarityRatio(s1, s2 string) float64 {
	if s1 == s2 {
		return 1
	}
	total := len(s1) + len(s2)
	return 2 * float64(lcsLength(s1, s2)) / float64(total)
}
