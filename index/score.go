package index

import "strings"

// calculateScore adapts the corpus author's tool-search scoring (match a
// query against a name/description pair) to document search: title stands
// in for name, text stands in for description. A query word that appears
// nowhere falls back to a Levenshtein fuzzy match against the title so
// near-miss spellings still surface results.
func calculateScore(queryLower, title, text string) float64 {
	titleLower := strings.ToLower(title)
	textLower := strings.ToLower(text)

	if titleLower == queryLower {
		return 1.0
	}

	queryWords := strings.Fields(queryLower)
	if len(queryWords) <= 1 {
		return calculateSingleWordScore(queryLower, titleLower, textLower)
	}

	var totalScore float64
	matchedWords := 0

	for _, word := range queryWords {
		wordScore := calculateSingleWordScore(word, titleLower, textLower)
		if wordScore > 0 {
			matchedWords++
			totalScore += wordScore
		}
	}

	if matchedWords == 0 {
		return 0
	}

	avgScore := totalScore / float64(len(queryWords))
	matchRatio := float64(matchedWords) / float64(len(queryWords))

	if matchedWords == len(queryWords) {
		return avgScore * 0.9
	}
	return avgScore * matchRatio
}

func calculateSingleWordScore(word, titleLower, textLower string) float64 {
	var score float64

	if strings.HasPrefix(titleLower, word) {
		score = max(score, 0.9)
	}
	if strings.Contains(titleLower, word) {
		score = max(score, 0.8)
	}

	if containsWord(textLower, word) {
		score = max(score, 0.6)
	} else if strings.Contains(textLower, word) {
		score = max(score, 0.5)
	}

	if score == 0 {
		if fuzzyScore := fuzzyMatch(word, titleLower); fuzzyScore > 0.6 {
			score = max(score, fuzzyScore*0.7)
		}
	}

	return score
}

func containsWord(text, query string) bool {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if strings.ToLower(word) == query {
			return true
		}
	}
	return false
}

func fuzzyMatch(query, target string) float64 {
	if len(query) == 0 || len(target) == 0 {
		return 0
	}
	distance := levenshteinDistance(query, target)
	maxLen := max(len(query), len(target))
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}
