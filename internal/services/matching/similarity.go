package matching

import (
	"math"
	"strings"
)

// normalizeText uppercases and strips punctuation so bank descriptions like
// "ACME, Inc." and ledger memos like "ACME INC" tokenize the same way.
func normalizeText(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, "*", " ")
	return strings.TrimSpace(s)
}

// tokenSimilarity scores how well the entry-side tokens are covered by the
// transaction-side tokens, 0-100. Each entry token contributes its best
// edit-distance similarity against any transaction token.
func tokenSimilarity(txText, entryText string) float64 {
	txTokens := strings.Fields(normalizeText(txText))
	entryTokens := strings.Fields(normalizeText(entryText))

	if len(entryTokens) == 0 || len(txTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, et := range entryTokens {
		best := 0.0
		for _, tt := range txTokens {
			dist := levenshtein(et, tt)
			maxLen := math.Max(float64(len(et)), float64(len(tt)))
			sim := 1 - float64(dist)/maxLen
			if sim > best {
				best = sim
			}
		}
		total += best
	}

	return (total / float64(len(entryTokens))) * 100
}

// jaccardSimilarity is the shared-token ratio of the two texts, 0-100.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for tok := range setA {
		if setB[tok] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union) * 100
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalizeText(s)) {
		set[tok] = true
	}
	return set
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}
	for i := 0; i <= len(a); i++ {
		dp[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[i][j] = min(dp[i-1][j]+1, dp[i][j-1]+1, dp[i-1][j-1]+cost)
		}
	}
	return dp[len(a)][len(b)]
}
