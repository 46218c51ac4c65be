// Package levenshtein measures edit distance between short identifiers and
// suggests the closest match for a misspelled one.
package levenshtein

// Distance returns the minimum number of single-rune insertions, deletions
// and substitutions turning a into b. It keeps two rows of the matrix.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}

	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}

	for i, ca := range ra {
		curr[0] = i + 1

		for j, cb := range rb {
			cost := 1
			if ca == cb {
				cost = 0
			}

			curr[j+1] = min(prev[j+1]+1, curr[j]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Closest returns the candidate nearest to word when its distance is at most
// maxDistance. Ties go to the earlier candidate.
func Closest(word string, candidates []string, maxDistance int) (string, bool) {
	best, bestDistance := "", maxDistance+1

	for _, c := range candidates {
		if d := Distance(word, c); d < bestDistance {
			best, bestDistance = c, d
		}
	}

	return best, best != "" && bestDistance <= maxDistance
}
