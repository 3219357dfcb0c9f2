package geocode

import "math"

// NGramSize picks the shingle length for an address: longer inputs use
// longer shingles so common short substrings stop dominating the score.
func NGramSize(address string) int {
	n := int(math.Round(math.Sqrt(float64(len(address)) / 2)))
	if n < 5 {
		n = 5
	}
	return n
}

// JaccardNGram scores two strings by the Jaccard index of their character
// n-gram sets. 1 means identical shingle sets, 0 means disjoint.
func JaccardNGram(a, b string, n int) float64 {
	setA := shingles(a, n)
	setB := shingles(b, n)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func shingles(s string, n int) map[string]struct{} {
	out := make(map[string]struct{})
	runes := []rune(s)
	if len(runes) < n {
		if len(runes) > 0 {
			out[string(runes)] = struct{}{}
		}
		return out
	}
	for i := 0; i+n <= len(runes); i++ {
		out[string(runes[i:i+n])] = struct{}{}
	}
	return out
}

// Ratio is a whole-string similarity on a 0-100 scale based on edit
// distance, used for the service-area match where shingles are too loose.
func Ratio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein(ra, rb)
	return int(math.Round(100 * (1 - float64(dist)/float64(longest))))
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
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
