package game

import "unicode"

// Distance returns the case-insensitive Levenshtein edit distance between
// two strings, counted in runes.
func Distance(a, b string) int {
	ra := foldRunes(a)
	rb := foldRunes(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(ra)+1)
	cur := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		cur[0] = j
		for i := 1; i <= len(ra); i++ {
			if ra[i-1] == rb[j-1] {
				cur[i] = prev[i-1]
			} else {
				cur[i] = 1 + min(cur[i-1], prev[i], prev[i-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(ra)]
}

func foldRunes(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, unicode.ToLower(r))
	}
	return out
}
